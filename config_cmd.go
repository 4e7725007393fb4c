package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# style name or JSON path (default "auto")
style: "auto"
# mouse support
mouse: false
# word-wrap at width
width: 80
# show all files, including hidden and ignored.
all: false
# don't open an article when it starts playing
noExpand: false

synth:
  # speech engine: http, edge, piper or mock
  engine: "edge"
  timeout: "30s"
  requests_per_minute: 120
  ffmpeg: "ffmpeg"
  http:
    endpoint: "http://localhost:5050/stream_audio"
    rate: "+15%"
  edge:
    binary: "edge-tts"
    voice: "en-US-AvaNeural"
    rate: "+12%"
  piper:
    binary: "piper"
    model: "en_US-lessac-medium"
    sample_rate: 22050
  mock:
    delay: "150ms"
    words_per_minute: 180

audio:
  # oto plays through the sound card, simulated plays silently
  device: "oto"
  sample_rate: 44100
  channels: 1
  volume: 1.0

chunker:
  max_chars: 5000
  first_max_words: 14
  min_words: 20
  max_words: 42

playback:
  prefetch_window: 6
  prefetch_concurrency: 2
  error_reset_delay: "3s"

cache:
  memory_size: "64MiB"
  # disk, nats or none
  backing: "disk"
  # dir: "~/.cache/listen/audio"
  disk_size: "512MiB"
  compression_level: 3
  max_age: "168h"
  # nats_url: "nats://127.0.0.1:4222"
  # nats_bucket: "listen-audio"
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the listen config file",
	Long:    paragraph(fmt.Sprintf("\n%s the listen config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("listen config\nlisten config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Listen", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
