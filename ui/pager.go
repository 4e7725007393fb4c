package ui

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/listen/internal/playback"
	"github.com/dgnsrekt/listen/utils"
	"github.com/fsnotify/fsnotify"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/termenv"
)

const (
	statusBarHeight  = 1
	nowReadingHeight = 1
)

var (
	pagerHelpHeight int

	mintGreen = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}

	statusBarNoteFg = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}
	statusBarBg     = lipgloss.AdaptiveColor{Light: "#E6E6E6", Dark: "#242424"}

	statusBarScrollPosStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "#949494", Dark: "#5A5A5A"}).
				Background(statusBarBg).
				Render

	statusBarNoteStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(statusBarBg).
				Render

	statusBarHelpStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(lipgloss.AdaptiveColor{Light: "#DCDCDC", Dark: "#323232"}).
				Render

	statusBarMessageStyle = lipgloss.NewStyle().
				Foreground(mintGreen).
				Background(darkGreen).
				Render

	statusBarMessageScrollPosStyle = lipgloss.NewStyle().
					Foreground(mintGreen).
					Background(darkGreen).
					Render

	statusBarMessageHelpStyle = lipgloss.NewStyle().
					Foreground(lipgloss.Color("#B6FFE4")).
					Background(green).
					Render

	statusBarControlStyle = lipgloss.NewStyle().
				Background(statusBarBg).
				Padding(0, 1)

	helpViewStyle = lipgloss.NewStyle().
			Foreground(statusBarNoteFg).
			Background(lipgloss.AdaptiveColor{Light: "#f2f2f2", Dark: "#1B1B1B"}).
			Render
)

type (
	contentRenderedMsg string
	reloadMsg          struct{ path string }
	editorFinishedMsg  struct{ err error }
)

type pagerState int

const (
	pagerStateBrowse pagerState = iota
	pagerStateStatusMessage
)

type pagerModel struct {
	common   *commonModel
	viewport viewport.Model
	state    pagerState
	showHelp bool

	statusMessage      string
	statusMessageTimer *time.Timer

	// Article being shown. Its raw markdown is kept so it can be
	// re-rendered on resize.
	current *article

	watcher *fsnotify.Watcher
	watched bool
}

func newPagerModel(common *commonModel) pagerModel {
	vp := viewport.New(0, 0)
	vp.YPosition = 0

	m := pagerModel{
		common:   common,
		state:    pagerStateBrowse,
		viewport: vp,
	}
	m.initWatcher()
	return m
}

func (m *pagerModel) setSize(w, h int) {
	m.viewport.Width = w
	m.viewport.Height = h - statusBarHeight - nowReadingHeight

	if m.showHelp {
		if pagerHelpHeight == 0 {
			pagerHelpHeight = strings.Count(m.helpView(), "\n")
		}
		m.viewport.Height -= (statusBarHeight + pagerHelpHeight)
	}
}

func (m *pagerModel) setContent(s string) {
	m.viewport.SetContent(s)
}

func (m *pagerModel) toggleHelp() {
	m.showHelp = !m.showHelp
	m.setSize(m.common.width, m.common.height)
	if m.viewport.PastBottom() {
		m.viewport.GotoBottom()
	}
}

type pagerStatusMessage struct {
	message string
	isError bool
}

func (m *pagerModel) showStatusMessage(msg pagerStatusMessage) tea.Cmd {
	m.state = pagerStateStatusMessage
	m.statusMessage = msg.message
	if msg.isError {
		log.Warn("status", "message", msg.message)
	}
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.statusMessageTimer = time.NewTimer(statusMessageTimeout)

	return waitForStatusMessageTimeout(pagerContext, m.statusMessageTimer)
}

// load shows a, which must already carry its content.
func (m *pagerModel) load(a *article) {
	m.current = a
	m.watched = false
	m.state = pagerStateBrowse
	m.viewport.SetContent("")
	m.viewport.YOffset = 0
}

// unload leaves the article. Its session keeps playing.
func (m *pagerModel) unload() {
	log.Debug("unload")
	if m.showHelp {
		m.toggleHelp()
	}
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.state = pagerStateBrowse
	m.viewport.SetContent("")
	m.viewport.YOffset = 0
	m.unwatchFile()
	m.current = nil
	m.watched = false
}

func (m pagerModel) update(msg tea.Msg) (pagerModel, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", keyEsc:
			if m.state != pagerStateBrowse {
				m.state = pagerStateBrowse
				return m, nil
			}
		case "home", "g":
			m.viewport.GotoTop()
		case "end", "G":
			m.viewport.GotoBottom()
		case "d":
			m.viewport.HalfViewDown()
		case "u":
			m.viewport.HalfViewUp()

		case " ":
			if m.current != nil {
				return m, toggleCmd(m.current)
			}

		case "s":
			if m.current != nil {
				m.current.session.Stop()
			}

		case "e":
			if m.current == nil || m.current.localPath == "" || m.current.localPath == stdinPath {
				return m, nil
			}
			lineno := int(math.RoundToEven(float64(m.viewport.TotalLineCount()) * m.viewport.ScrollPercent()))
			if m.viewport.AtTop() {
				lineno = 0
			}
			log.Info(
				"opening editor",
				"file", m.current.localPath,
				"line", fmt.Sprintf("%d/%d", lineno, m.viewport.TotalLineCount()),
			)
			return m, openEditor(m.current.localPath)

		case "c":
			if m.current == nil {
				return m, nil
			}
			// Copy using OSC 52
			termenv.Copy(m.current.Body)
			// Copy using native system clipboard
			_ = clipboard.WriteAll(m.current.Body)
			cmds = append(cmds, m.showStatusMessage(pagerStatusMessage{"Copied contents", false}))

		case "r":
			if m.current != nil {
				return m, reloadArticle(m.current.localPath)
			}

		case "?":
			m.toggleHelp()
		}

	case contentRenderedMsg:
		log.Info("content rendered", "state", m.state)

		m.setContent(string(msg))
		if !m.watched && m.current != nil && m.current.localPath != "" && m.current.localPath != stdinPath {
			m.watched = true
			cmds = append(cmds, m.watchFile)
		}

	case editorFinishedMsg:
		if msg.err != nil {
			cmds = append(cmds, m.showStatusMessage(pagerStatusMessage{"Editor failed: " + msg.err.Error(), true}))
		} else if m.current != nil {
			return m, reloadArticle(m.current.localPath)
		}

	case tea.WindowSizeMsg:
		if m.current != nil {
			return m, renderWithGlamour(m, m.current.Body)
		}

	case sessionUpdateMsg:
		if m.current != nil && msg.ID == m.current.id() && msg.State == playback.StateError {
			cmds = append(cmds, m.showStatusMessage(pagerStatusMessage{"Couldn't synthesize audio", true}))
		}

	case statusMessageTimeoutMsg:
		if applicationContext(msg) == pagerContext {
			m.state = pagerStateBrowse
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m pagerModel) View() string {
	var b strings.Builder
	fmt.Fprint(&b, m.viewport.View()+"\n")

	if m.current != nil {
		fmt.Fprint(&b, nowReadingView(m.current.session.Snapshot(), m.common.width))
	}
	fmt.Fprint(&b, "\n")

	// Footer
	m.statusBarView(&b)

	if m.showHelp {
		fmt.Fprint(&b, "\n"+m.helpView())
	}

	return b.String()
}

func (m pagerModel) statusBarView(b *strings.Builder) {
	const (
		minPercent               float64 = 0.0
		maxPercent               float64 = 1.0
		percentToStringMagnitude float64 = 100.0
	)

	showStatusMessage := m.state == pagerStateStatusMessage

	// Logo
	logo := listenLogoView()

	// Listen control
	var control string
	if m.current != nil {
		snap := m.current.session.Snapshot()
		control = statusBarControlStyle.
			Foreground(controlColor(snap.State)).
			Render(controlLabel(snap, m.common.spinner.View()))
	}

	// Scroll percent
	percent := math.Max(minPercent, math.Min(maxPercent, m.viewport.ScrollPercent()))
	scrollPercent := fmt.Sprintf(" %3.f%% ", percent*percentToStringMagnitude)
	if showStatusMessage {
		scrollPercent = statusBarMessageScrollPosStyle(scrollPercent)
	} else {
		scrollPercent = statusBarScrollPosStyle(scrollPercent)
	}

	// "Help" note
	var helpNote string
	if showStatusMessage {
		helpNote = statusBarMessageHelpStyle(" ? Help ")
	} else {
		helpNote = statusBarHelpStyle(" ? Help ")
	}

	// Note
	var note string
	switch {
	case showStatusMessage:
		note = m.statusMessage
	case m.current != nil:
		note = m.current.Note
		if note == "" || note == stdinPath {
			note = m.current.Title
		}
	}
	note = truncate.StringWithTail(" "+note+" ", uint(max(0, //nolint:gosec
		m.common.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(control)-
			ansi.PrintableRuneWidth(scrollPercent)-
			ansi.PrintableRuneWidth(helpNote),
	)), ellipsis)
	if showStatusMessage {
		note = statusBarMessageStyle(note)
	} else {
		note = statusBarNoteStyle(note)
	}

	// Empty space
	padding := max(0,
		m.common.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(note)-
			ansi.PrintableRuneWidth(control)-
			ansi.PrintableRuneWidth(scrollPercent)-
			ansi.PrintableRuneWidth(helpNote),
	)
	emptySpace := strings.Repeat(" ", padding)
	if showStatusMessage {
		emptySpace = statusBarMessageStyle(emptySpace)
	} else {
		emptySpace = statusBarNoteStyle(emptySpace)
	}

	fmt.Fprintf(b, "%s%s%s%s%s%s",
		logo,
		note,
		emptySpace,
		control,
		scrollPercent,
		helpNote,
	)
}

func (m pagerModel) helpView() (s string) {
	col1 := []string{
		"space   listen / pause",
		"s       stop listening",
		"c       copy contents",
		"e       edit this article",
		"r       reload this article",
		"esc     back to articles",
		"q       quit",
	}

	s += "\n"
	s += "k/↑      up                  " + col1[0] + "\n"
	s += "j/↓      down                " + col1[1] + "\n"
	s += "b/pgup   page up             " + col1[2] + "\n"
	s += "f/pgdn   page down           " + col1[3] + "\n"
	s += "u        ½ page up           " + col1[4] + "\n"
	s += "d        ½ page down         " + col1[5] + "\n"
	s += "g/G      top / bottom        " + col1[6]

	s = indent(s, 2)

	// Fill up empty cells with spaces for background coloring
	if m.common.width > 0 {
		lines := strings.Split(s, "\n")
		for i := 0; i < len(lines); i++ {
			l := runewidth.StringWidth(lines[i])
			n := max(m.common.width-l, 0)
			lines[i] += strings.Repeat(" ", n)
		}

		s = strings.Join(lines, "\n")
	}

	return helpViewStyle(s)
}

// COMMANDS

func renderWithGlamour(m pagerModel, md string) tea.Cmd {
	return func() tea.Msg {
		s, err := glamourRender(m, md)
		if err != nil {
			log.Error("error rendering with Glamour", "error", err)
			return errMsg{err}
		}
		return contentRenderedMsg(s)
	}
}

func glamourRender(m pagerModel, markdown string) (string, error) {
	if !m.common.cfg.GlamourEnabled {
		return markdown, nil
	}

	width := max(0, min(int(m.common.cfg.GlamourMaxWidth), m.viewport.Width)) //nolint:gosec
	options := []glamour.TermRendererOption{
		utils.GlamourStyle(m.common.cfg.GlamourStyle),
		glamour.WithWordWrap(width),
	}
	if m.common.cfg.PreserveNewLines {
		options = append(options, glamour.WithPreservedNewLines())
	}
	if m.current != nil && m.current.localPath != "" && m.current.localPath != stdinPath {
		options = append(options, glamour.WithBaseURL(filepath.Dir(m.current.localPath)))
	}

	r, err := glamour.NewTermRenderer(options...)
	if err != nil {
		return "", fmt.Errorf("error creating glamour renderer: %w", err)
	}

	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("error rendering markdown: %w", err)
	}
	return strings.TrimRight(out, "\n"), nil
}

func reloadArticle(path string) tea.Cmd {
	return func() tea.Msg {
		return reloadMsg{path: path}
	}
}

func (m *pagerModel) initWatcher() {
	var err error
	m.watcher, err = fsnotify.NewWatcher()
	if err != nil {
		log.Error("error creating fsnotify watcher", "error", err)
	}
}

func (m *pagerModel) watchFile() tea.Msg {
	if m.watcher == nil || m.current == nil {
		return nil
	}
	path := m.current.localPath
	dir := filepath.Dir(path)

	if err := m.watcher.Add(dir); err != nil {
		log.Error("error adding dir to fsnotify watcher", "error", err)
		return nil
	}

	log.Info("fsnotify watching dir", "dir", dir)

	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			log.Debug("fsnotify event", "file", event.Name, "event", event.Op)
			return reloadMsg{path: path}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			log.Debug("fsnotify error", "dir", dir, "error", err)
		}
	}
}

func (m *pagerModel) unwatchFile() {
	if m.watcher == nil || m.current == nil || m.current.localPath == "" || m.current.localPath == stdinPath {
		return
	}
	dir := filepath.Dir(m.current.localPath)

	err := m.watcher.Remove(dir)
	if err == nil {
		log.Debug("fsnotify dir unwatched", "dir", dir)
	} else {
		log.Debug("fsnotify fail to unwatch dir", "dir", dir, "error", err)
	}
}
