package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/truncate"
	runewidth "github.com/mattn/go-runewidth"
)

const (
	listHeaderHeight = 3
	listFooterHeight = 3
	listItemHeight   = 3
)

type listState int

const (
	listStateBrowse listState = iota
	listStateFiltering
	listStateStatusMessage
)

type openArticleMsg struct{ article *article }

type listModel struct {
	common      *commonModel
	state       listState
	articles    []*article
	filtered    []*article
	cursor      int
	searching   bool
	showHelp    bool
	filterInput textinput.Model

	statusMessage      string
	statusMessageTimer *time.Timer
}

func newListModel(common *commonModel) listModel {
	ti := textinput.New()
	ti.Prompt = "Find: "
	ti.PromptStyle = filterPromptStyle
	ti.Cursor.Style = filterPromptStyle
	ti.CharLimit = 256

	return listModel{
		common:      common,
		filterInput: ti,
	}
}

// visible is the list shown to the user, narrowed by the filter.
func (m listModel) visible() []*article {
	if m.filterInput.Value() == "" {
		return m.articles
	}
	return m.filtered
}

func (m listModel) selected() *article {
	items := m.visible()
	if m.cursor < 0 || m.cursor >= len(items) {
		return nil
	}
	return items[m.cursor]
}

// find returns the article whose session has id.
func (m listModel) find(id string) *article {
	for _, a := range m.articles {
		if a.id() == id {
			return a
		}
	}
	return nil
}

func (m *listModel) addArticles(articles ...*article) {
	m.articles = append(m.articles, articles...)
	sortArticles(m.articles)
	m.applyFilter()
}

// reset closes every session and empties the list.
func (m *listModel) reset() {
	for _, a := range m.articles {
		if a.session != nil {
			a.session.Close()
		}
	}
	m.articles = nil
	m.filtered = nil
	m.cursor = 0
}

func (m *listModel) applyFilter() {
	m.filtered = filterArticles(m.filterInput.Value(), m.articles)
	m.cursor = min(m.cursor, max(0, len(m.visible())-1))
}

func (m *listModel) moveCursor(delta int) {
	n := len(m.visible())
	if n == 0 {
		m.cursor = 0
		return
	}
	m.cursor = max(0, min(n-1, m.cursor+delta))
}

func (m listModel) perPage() int {
	h := m.common.height - listHeaderHeight - listFooterHeight
	if m.showHelp {
		h -= strings.Count(m.helpView(), "\n") + 1
	}
	return max(1, h/listItemHeight)
}

func (m *listModel) showStatusMessage(msg string) tea.Cmd {
	m.state = listStateStatusMessage
	m.statusMessage = msg
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.statusMessageTimer = time.NewTimer(statusMessageTimeout)
	return waitForStatusMessageTimeout(listContext, m.statusMessageTimer)
}

func (m listModel) update(msg tea.Msg) (listModel, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.state == listStateFiltering {
			return m.updateFilter(msg)
		}

		switch msg.String() {
		case "k", "up", "ctrl+k":
			m.moveCursor(-1)
		case "j", "down", "ctrl+j":
			m.moveCursor(1)
		case "left", "b", "pgup":
			m.moveCursor(-m.perPage())
		case "right", "f", "pgdown":
			m.moveCursor(m.perPage())
		case "home", "g":
			m.cursor = 0
		case "end", "G":
			m.moveCursor(len(m.visible()))

		case " ":
			if a := m.selected(); a != nil {
				cmds = append(cmds, toggleCmd(a))
			}

		case "enter", "o":
			if a := m.selected(); a != nil {
				cmds = append(cmds, func() tea.Msg { return openArticleMsg{a} })
			}

		case "s":
			m.common.engine.StopAll()

		case "x":
			n := m.common.clips.Purge()
			cmds = append(cmds, m.showStatusMessage(fmt.Sprintf("Cleared %d cached %s", n, plural(n, "clip"))))

		case "/":
			m.state = listStateFiltering
			cmds = append(cmds, m.filterInput.Focus())

		case keyEsc:
			if m.filterInput.Value() != "" {
				m.filterInput.Reset()
				m.applyFilter()
			}
			m.state = listStateBrowse

		case "?":
			m.showHelp = !m.showHelp
		}

	case statusMessageTimeoutMsg:
		if applicationContext(msg) == listContext && m.state == listStateStatusMessage {
			m.state = listStateBrowse
		}
	}

	return m, tea.Batch(cmds...)
}

func (m listModel) updateFilter(msg tea.KeyMsg) (listModel, tea.Cmd) {
	switch msg.String() {
	case keyEsc:
		m.filterInput.Reset()
		m.filterInput.Blur()
		m.state = listStateBrowse
		m.applyFilter()
		return m, nil
	case "enter", "tab", "shift+tab", "ctrl+k", "up", "ctrl+j", "down":
		m.filterInput.Blur()
		m.state = listStateBrowse
		if strings.TrimSpace(m.filterInput.Value()) == "" {
			m.filterInput.Reset()
		}
		m.applyFilter()
		return m, nil
	}

	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	m.cursor = 0
	m.applyFilter()
	return m, cmd
}

func (m listModel) view() string {
	var b strings.Builder

	b.WriteString("\n  " + listenLogoView() + "  " + m.headerView() + "\n\n")

	items := m.visible()
	per := m.perPage()
	start := (m.cursor / per) * per
	end := min(len(items), start+per)
	for i := start; i < end; i++ {
		b.WriteString(m.itemView(items[i], i == m.cursor))
	}

	// Keep the footer at the bottom
	used := listHeaderHeight + (end-start)*listItemHeight
	if m.showHelp {
		used += strings.Count(m.helpView(), "\n") + 1
	}
	if pad := m.common.height - used - listFooterHeight; pad > 0 {
		b.WriteString(strings.Repeat("\n", pad))
	}

	b.WriteString("\n  " + m.footerView(start, end, len(items)))
	if m.showHelp {
		b.WriteString("\n" + m.helpView())
	}
	return b.String()
}

func (m listModel) headerView() string {
	switch {
	case m.state == listStateFiltering || m.filterInput.Value() != "":
		return m.filterInput.View()
	case m.state == listStateStatusMessage:
		return statusBarMessageStyle(" " + m.statusMessage + " ")
	case m.searching && len(m.articles) == 0:
		return m.common.spinner.View() + subtleStyle.Render(" Looking for articles…")
	case len(m.articles) == 0:
		return subtleStyle.Render("No articles found.")
	case len(m.articles) == 1:
		return subtleStyle.Render("1 article")
	default:
		return subtleStyle.Render(fmt.Sprintf("%d articles", len(m.articles)))
	}
}

func (m listModel) itemView(a *article, selected bool) string {
	snap := a.session.Snapshot()
	spin := m.common.spinner.View()
	label := controlLabel(snap, spin)

	title := truncate.StringWithTail(a.Title, uint(max(0, m.common.width-8-runewidth.StringWidth(label))), ellipsis) //nolint:gosec
	pad := strings.Repeat(" ", max(1, m.common.width-6-runewidth.StringWidth(title)-runewidth.StringWidth(label)))

	note := a.Note
	if t := a.relativeTime(); t != "" {
		note += " · " + t
	}
	note = truncate.StringWithTail(note, uint(max(0, m.common.width-6)), ellipsis) //nolint:gosec

	gutter := "  "
	if selected {
		gutter = selectedTitleStyle.Render("│ ")
		title = selectedTitleStyle.Render(title)
		note = selectedNoteStyle.Render(note)
	} else {
		title = titleStyle.Render(title)
		note = noteStyle.Render(note)
	}

	return fmt.Sprintf("  %s%s%s%s\n  %s%s\n\n", gutter, title, pad, controlView(snap, spin), gutter, note)
}

func (m listModel) footerView(start, end, total int) string {
	stats := m.common.clips.Stats()
	parts := []string{}
	if total > 0 {
		parts = append(parts, fmt.Sprintf("%d-%d of %d", start+1, end, total))
	}
	parts = append(parts, fmt.Sprintf("cache %s · %d clips · %.0f%% hits",
		humanize.IBytes(uint64(max(0, stats.Size))), //nolint:gosec
		stats.Items,
		stats.HitRate()*100,
	))
	parts = append(parts, "? help")
	return subtleStyle.Render(strings.Join(parts, " • "))
}

func (m listModel) helpView() string {
	s := "k/↑      up                  space   listen / pause\n" +
		"j/↓      down                enter   open article\n" +
		"b/pgup   page up             s       stop playback\n" +
		"f/pgdn   page down           /       filter\n" +
		"g/home   first article       r       rescan\n" +
		"G/end    last article        x       clear audio cache\n" +
		"?        toggle help         q       quit"
	return subtleStyle.Render(indent(s, 2))
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
