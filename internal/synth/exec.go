package synth

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// maxOutputSize guards against runaway tools.
const maxOutputSize = 100 * 1024 * 1024

// runCommand runs name with stdin fed from input and returns its stdout. A
// cancelled ctx interrupts the process, then kills it.
func runCommand(ctx context.Context, timeout time.Duration, input []byte, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(input)
	// CommandContext kills on cancel; give the process a chance to exit first.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = 100 * time.Millisecond

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s failed: %w, stderr: %s", name, err, strings.TrimSpace(stderr.String()))
	}

	out := stdout.Bytes()
	if len(out) > maxOutputSize {
		return nil, fmt.Errorf("%s output too large: %d bytes (max %d)", name, len(out), maxOutputSize)
	}
	return out, nil
}
