package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dgnsrekt/listen/internal/playback"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"
)

var (
	highlightStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("226")).
			Foreground(lipgloss.Color("0")).
			Bold(true)

	readingIndicatorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("226")).
				Bold(true)
)

// nowReadingLine is the chunk being read, squeezed onto one line of width
// cells. It is empty unless audio is playing or paused.
func nowReadingLine(snap playback.Snapshot, width int) string {
	if snap.State != playback.StatePlaying && snap.State != playback.StatePaused {
		return ""
	}
	text := strings.Join(strings.Fields(snap.Chunk), " ")
	if text == "" {
		return ""
	}

	prefix := "♪ " + formatOffset(snap.Offset) + " "
	room := width - runewidth.StringWidth(prefix)
	if room < 2 {
		return ""
	}
	text = truncate.StringWithTail(text, uint(room), ellipsis) //nolint:gosec
	return prefix + text
}

// nowReadingView styles nowReadingLine for the pager.
func nowReadingView(snap playback.Snapshot, width int) string {
	line := nowReadingLine(snap, width)
	if line == "" {
		return ""
	}
	glyph, rest, _ := strings.Cut(line, " ")
	return readingIndicatorStyle.Render(glyph) + " " + highlightStyle.Render(rest)
}
