package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	normalDim = lipgloss.AdaptiveColor{Light: "#A49FA5", Dark: "#777777"}
	gray      = lipgloss.AdaptiveColor{Light: "#909090", Dark: "#626262"}
	midGray   = lipgloss.AdaptiveColor{Light: "#B2B2B2", Dark: "#4A4A4A"}
	cream     = lipgloss.AdaptiveColor{Light: "#FFFDF5", Dark: "#FFFDF5"}
	fuchsia   = lipgloss.Color("#EE6FF8")
	green     = lipgloss.Color("#04B575")
	yellow    = lipgloss.AdaptiveColor{Light: "#C99A00", Dark: "#ECFD65"}
	red       = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#ED567A"}
	blue      = lipgloss.AdaptiveColor{Light: "#0A7ACA", Dark: "#00AAFF"}
)

var (
	errorTitleStyle = lipgloss.NewStyle().
			Foreground(cream).
			Background(red).
			Padding(0, 1)

	subtleStyle = lipgloss.NewStyle().
			Foreground(gray)

	logoStyle = lipgloss.NewStyle().
			Foreground(cream).
			Background(fuchsia).
			Padding(0, 1)

	selectedTitleStyle = lipgloss.NewStyle().
				Foreground(fuchsia).
				Bold(true)

	selectedNoteStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "#F793FF", Dark: "#AD58B4"})

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#1a1a1a", Dark: "#dddddd"})

	noteStyle = lipgloss.NewStyle().
			Foreground(normalDim)

	filterPromptStyle = lipgloss.NewStyle().
				Foreground(yellow)
)

func listenLogoView() string {
	return logoStyle.Render("Listen")
}
