package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dgnsrekt/listen/internal/chunker"
	"github.com/dgnsrekt/listen/utils"
)

var errNoInput = errors.New("nothing to read: pass text, a file, or pipe into stdin")

// readInput returns the speakable text named by args: stdin for "-" or no
// arguments, a file when the only argument names one, otherwise the
// arguments themselves. Markdown is flattened to plain text.
func readInput(args []string, stdin io.Reader) (string, error) {
	var raw []byte
	switch {
	case len(args) == 0 || (len(args) == 1 && args[0] == "-"):
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("unable to read from stdin: %w", err)
		}
		raw = b
	case len(args) == 1 && isFile(args[0]):
		b, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("unable to read file: %w", err)
		}
		raw = b
	default:
		raw = []byte(strings.Join(args, " "))
	}

	text := chunker.PlainText(string(utils.RemoveFrontmatter(raw)))
	if strings.TrimSpace(text) == "" {
		return "", errNoInput
	}
	return text, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
