package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
)

func getLogFilePath() (string, error) {
	dir, err := gap.NewScope(gap.User, "listen").CacheDir()
	if err != nil {
		return "", fmt.Errorf("unable to find cache directory: %w", err)
	}
	return filepath.Join(dir, "listen.log"), nil
}

// setupLog sends the default logger to a file so it never draws over the
// TUI. LISTEN_DEBUG raises the level to debug.
func setupLog() (func() error, error) {
	log.SetOutput(io.Discard)

	logFile, err := getLogFilePath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil { //nolint:gosec
		// log disabled
		return func() error { return nil }, nil
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		// log disabled
		return func() error { return nil }, nil
	}
	log.SetOutput(f)
	log.SetTimeFormat("15:04:05.000")
	log.SetReportTimestamp(true)
	log.SetLevel(log.InfoLevel)
	if os.Getenv("LISTEN_DEBUG") != "" {
		log.SetLevel(log.DebugLevel)
	}
	return f.Close, nil
}
