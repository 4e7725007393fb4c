package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dgnsrekt/listen/internal/playback"
)

// controlLabel is the text of an article's listen control for a session
// snapshot. spin is the current spinner frame.
func controlLabel(snap playback.Snapshot, spin string) string {
	switch snap.State {
	case playback.StateLoading:
		return spin + " Loading"
	case playback.StatePlaying:
		return withProgress("❚❚ Pause", snap)
	case playback.StatePaused:
		return withProgress("▶ Resume", snap)
	case playback.StateError:
		return "✕ Error"
	default:
		return "▶ Listen"
	}
}

func withProgress(label string, snap playback.Snapshot) string {
	if p := snap.Progress(); p != "" {
		return label + " " + p
	}
	return label
}

func controlColor(state playback.State) lipgloss.TerminalColor {
	switch state {
	case playback.StateLoading:
		return blue
	case playback.StatePlaying:
		return green
	case playback.StatePaused:
		return yellow
	case playback.StateError:
		return red
	default:
		return gray
	}
}

// controlView renders the listen control.
func controlView(snap playback.Snapshot, spin string) string {
	return lipgloss.NewStyle().
		Foreground(controlColor(snap.State)).
		Render(controlLabel(snap, spin))
}

// formatOffset renders d as m:ss.
func formatOffset(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Truncate(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
