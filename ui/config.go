package ui

// Config contains TUI-specific configuration.
type Config struct {
	ShowAllFiles     bool
	GlamourMaxWidth  uint
	GlamourStyle     string `env:"GLAMOUR_STYLE"`
	EnableMouse      bool
	PreserveNewLines bool

	// Files or directories to list. Empty means the working directory.
	Paths []string

	// Content is an article read from stdin. When set, Paths is ignored.
	Content string

	// Open an article in the pager as soon as its playback starts.
	AutoExpand bool `env:"LISTEN_AUTO_EXPAND" envDefault:"true"`

	// For debugging the UI
	GlamourEnabled bool `env:"LISTEN_ENABLE_GLAMOUR" envDefault:"true"`
}
