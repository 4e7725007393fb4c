// Package main provides the entry point for the listen CLI application.
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/listen/internal/config"
	"github.com/dgnsrekt/listen/ui"
	"github.com/dgnsrekt/listen/utils"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile       string
	style            string
	width            uint
	showAllFiles     bool
	preserveNewLines bool
	mouse            bool
	noExpand         bool
	debug            bool

	rootCmd = &cobra.Command{
		Use:   "listen [FILE|DIR|-]...",
		Short: "Listen to markdown articles in the terminal",
		Long: paragraph(
			fmt.Sprintf("\nBrowse markdown articles and %s, streamed sentence by sentence.", keyword("hear them read aloud")),
		),
		Example: paragraph("listen\nlisten notes/\nlisten post.md other.md\ncat post.md | listen"),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveDefault
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

// validateStyle checks if the style is a default style, if not, checks that
// the custom style exists.
func validateStyle(style string) error {
	if style != "auto" && styles.DefaultStyles[style] == nil {
		style = utils.ExpandPath(style)
		if _, err := os.Stat(style); errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("specified style does not exist: %s", style)
		} else if err != nil {
			return fmt.Errorf("unable to stat file: %w", err)
		}
	}
	return nil
}

func validateOptions(cmd *cobra.Command) error {
	if debug || viper.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	}

	// grab config values from Viper
	width = viper.GetUint("width")
	mouse = viper.GetBool("mouse")
	showAllFiles = viper.GetBool("all")
	preserveNewLines = viper.GetBool("preserveNewLines")
	noExpand = viper.GetBool("noExpand")

	// validate the glamour style
	style = viper.GetString("style")
	if err := validateStyle(style); err != nil {
		return err
	}

	// Detect terminal width
	if !cmd.Flags().Changed("width") && width == 0 {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			w, _, err := term.GetSize(int(os.Stdout.Fd()))
			if err == nil {
				width = uint(w) //nolint:gosec
			}
		}
		if width > 120 {
			width = 120
		}
		if width == 0 {
			width = 80
		}
	}
	return nil
}

// loadConfig builds the player configuration from viper, flags and the
// environment.
func loadConfig() (config.Config, error) {
	cfg, err := config.LoadFromViper()
	if err != nil {
		return cfg, fmt.Errorf("unable to load configuration: %w", err)
	}
	return cfg, nil
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

// readStdin returns piped input when there is any, or when "-" is the only
// argument.
func readStdin(args []string) (string, bool, error) {
	explicit := len(args) == 1 && args[0] == "-"
	if !explicit {
		if len(args) > 0 {
			return "", false, nil
		}
		if yes, err := stdinIsPipe(); err != nil || !yes {
			return "", false, err
		}
	}
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", false, fmt.Errorf("unable to read from stdin: %w", err)
	}
	return string(b), true, nil
}

func execute(_ *cobra.Command, args []string) error {
	content, piped, err := readStdin(args)
	if err != nil {
		return err
	}
	if piped {
		return runTUI(nil, content)
	}
	return runTUI(args, "")
}

func runTUI(paths []string, content string) error {
	// Read environment to get debugging stuff
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %w", err)
	}

	// use style set in env, or the flag if unset or invalid
	if cfg.GlamourStyle == "" || validateStyle(cfg.GlamourStyle) != nil {
		cfg.GlamourStyle = style
	}

	cfg.Paths = paths
	cfg.Content = content
	cfg.ShowAllFiles = showAllFiles
	cfg.GlamourMaxWidth = width
	cfg.EnableMouse = mouse
	cfg.PreserveNewLines = preserveNewLines
	if noExpand {
		cfg.AutoExpand = false
	}

	playerCfg, err := loadConfig()
	if err != nil {
		return err
	}
	rt, err := newRuntime(playerCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.Warn("shutdown", "error", err)
		}
	}()

	// Run Bubble Tea program
	if _, err := ui.NewProgram(cfg, rt.engine, rt.store).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "write debug output to the log file")
	rootCmd.PersistentFlags().StringP("engine", "e", "", "speech engine: http, edge, piper or mock")
	rootCmd.PersistentFlags().String("device", "", "audio output: oto or simulated")
	rootCmd.Flags().StringVarP(&style, "style", "s", styles.AutoStyle, "style name or JSON path")
	rootCmd.Flags().UintVarP(&width, "width", "w", 0, "word-wrap at width (set to 0 to disable)")
	rootCmd.Flags().BoolVarP(&showAllFiles, "all", "a", false, "show system files and directories")
	rootCmd.Flags().BoolVarP(&preserveNewLines, "preserve-new-lines", "n", false, "preserve newlines in the output")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse wheel")
	rootCmd.Flags().BoolVar(&noExpand, "no-expand", false, "don't open an article when it starts playing")
	_ = rootCmd.Flags().MarkHidden("mouse")

	// Config bindings
	_ = viper.BindPFlag("style", rootCmd.Flags().Lookup("style"))
	_ = viper.BindPFlag("width", rootCmd.Flags().Lookup("width"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))
	_ = viper.BindPFlag("preserveNewLines", rootCmd.Flags().Lookup("preserve-new-lines"))
	_ = viper.BindPFlag("all", rootCmd.Flags().Lookup("all"))
	_ = viper.BindPFlag("noExpand", rootCmd.Flags().Lookup("no-expand"))
	_ = viper.BindPFlag("synth.engine", rootCmd.PersistentFlags().Lookup("engine"))
	_ = viper.BindPFlag("audio.device", rootCmd.PersistentFlags().Lookup("device"))

	viper.SetDefault("style", styles.AutoStyle)
	viper.SetDefault("width", 0)
	viper.SetDefault("all", false)
	if err := config.SetDefaults(viper.GetViper()); err != nil {
		log.Error("Could not register configuration defaults", "error", err)
	}

	rootCmd.AddCommand(configCmd, manCmd, sayCmd, chunksCmd, cacheCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "listen")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "listen")}, dirs...)
	}

	if c := os.Getenv("LISTEN_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("listen")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("listen")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "listen.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
