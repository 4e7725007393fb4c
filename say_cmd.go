package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/lipgloss"
	"github.com/dgnsrekt/listen/internal/playback"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var errSpeechFailed = errors.New("speech synthesis failed, run with --debug and check the log")

var (
	sayStateStyle = lipgloss.NewStyle().Width(8).Bold(true)
	sayChunkStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"})
)

var sayCmd = &cobra.Command{
	Use:   "say [TEXT|FILE|-]",
	Short: "Read text aloud without the TUI",
	Long: paragraph(fmt.Sprintf("\n%s text, a markdown file, or stdin, and print progress as it plays.", keyword("Speak"))),
	Example: paragraph("listen say \"Hello there.\"\nlisten say post.md\ncat post.md | listen say"),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(args, os.Stdin)
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		rt, err := newRuntime(cfg)
		if err != nil {
			return err
		}
		defer rt.Close() //nolint:errcheck

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		fancy := term.IsTerminal(int(os.Stdout.Fd()))
		return say(ctx, rt.engine, text, cmd.OutOrStdout(), fancy)
	},
}

// say plays text to the end and reports each state change on w. When fancy
// is set the report rewrites a single terminal line.
func say(ctx context.Context, engine *playback.Engine, text string, w io.Writer, fancy bool) error {
	var (
		played atomic.Bool
		done   = make(chan playback.Snapshot, 1)
		out    = termenv.NewOutput(w)
	)

	finish := func(snap playback.Snapshot) {
		select {
		case done <- snap:
		default:
		}
	}

	sess := engine.NewSession(text,
		playback.WithPlaybackStarted(func() {
			played.Store(true)
		}),
		playback.WithStateChange(func(snap playback.Snapshot) {
			reportSnapshot(out, snap, fancy)
			switch snap.State {
			case playback.StateError:
				finish(snap)
			case playback.StateIdle:
				if played.Load() {
					finish(snap)
				}
			}
		}),
	)
	defer sess.Close()

	if err := sess.Start(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		sess.Stop()
		if fancy {
			fmt.Fprintln(w)
		}
		return nil
	case snap := <-done:
		if fancy {
			fmt.Fprintln(w)
		}
		if snap.State == playback.StateError {
			return errSpeechFailed
		}
		return nil
	}
}

func reportSnapshot(out *termenv.Output, snap playback.Snapshot, fancy bool) {
	if !fancy {
		fmt.Fprintln(out, snapshotLine(snap, 0))
		return
	}
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}
	out.ClearLine()
	fmt.Fprint(out, "\r"+
		sayStateStyle.Render(snap.State.String())+
		sayChunkStyle.Render(truncate.StringWithTail(snapshotDetail(snap), uint(max(0, width-8)), "…"))) //nolint:gosec
}

// snapshotLine renders snap as "state   i/n   chunk text", cut to width
// cells when width is positive.
func snapshotLine(snap playback.Snapshot, width int) string {
	line := strings.TrimSpace(fmt.Sprintf("%-8s%s", snap.State, snapshotDetail(snap)))
	if width > 0 {
		line = truncate.StringWithTail(line, uint(width), "…") //nolint:gosec
	}
	return line
}

func snapshotDetail(snap playback.Snapshot) string {
	if snap.State == playback.StateIdle || snap.State == playback.StateError {
		return snap.Progress()
	}
	return fmt.Sprintf("%-6s %s", snap.Progress(), strings.Join(strings.Fields(snap.Chunk), " "))
}
