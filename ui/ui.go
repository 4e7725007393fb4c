// Package ui is the terminal interface: a list of articles, each with a
// listen control, and a pager that shows one article rendered with glamour.
package ui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/x/editor"
	"github.com/dgnsrekt/listen/internal/cache"
	"github.com/dgnsrekt/listen/internal/playback"
	"github.com/muesli/gitcha"
	"github.com/muesli/reflow/wordwrap"
	te "github.com/muesli/termenv"
)

const (
	statusMessageTimeout = time.Second * 3 // how long to show status messages like "copied!"
	refreshInterval      = 250 * time.Millisecond
	updateBuffer         = 64
	ellipsis             = "…"
	keyEsc               = "esc"
)

var markdownExtensions = []string{
	"*.md", "*.mdown", "*.mkdn", "*.mkd", "*.markdown",
}

// AudioCache is the part of the synthesis cache the list reports on and
// clears.
type AudioCache interface {
	Stats() cache.Stats
	Purge() int
}

type noCache struct{}

func (noCache) Stats() cache.Stats { return cache.Stats{} }
func (noCache) Purge() int         { return 0 }

// NewProgram returns a new Tea program.
func NewProgram(cfg Config, engine *playback.Engine, clips AudioCache) *tea.Program {
	log.Debug(
		"Starting listen",
		"glamour",
		cfg.GlamourEnabled,
		"auto_expand",
		cfg.AutoExpand,
	)

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	m := newModel(cfg, engine, clips)
	return tea.NewProgram(m, opts...)
}

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

type (
	initLocalFileSearchMsg struct {
		cwd   string
		ch    chan gitcha.SearchResult
		rest  []string
		files []*article
	}
	foundArticlesMsg        []*article
	localFileSearchFinished struct{}
	statusMessageTimeoutMsg applicationContext

	// sessionUpdateMsg carries a session's state change.
	sessionUpdateMsg playback.Snapshot

	// playbackStartedMsg is sent when a session is about to be heard.
	playbackStartedMsg struct{ id string }

	toggledMsg struct {
		id    string
		state playback.State
	}

	refreshMsg time.Time
)

// applicationContext indicates the area of the application something applies
// to. Occasionally used as an argument to commands and messages.
type applicationContext int

const (
	listContext applicationContext = iota
	pagerContext
)

// state is the top-level application state.
type state int

const (
	stateShowList state = iota
	stateShowDocument
)

func (s state) String() string {
	return map[state]string{
		stateShowList:     "showing article list",
		stateShowDocument: "showing article",
	}[s]
}

// Common stuff we'll need to access in all models.
type commonModel struct {
	cfg     Config
	engine  *playback.Engine
	clips   AudioCache
	cwd     string
	width   int
	height  int
	spinner spinner.Model

	// updates carries session callbacks into the program.
	updates  chan tea.Msg
	done     chan struct{}
	doneOnce sync.Once
}

// attach gives a its session.
func (c *commonModel) attach(a *article) {
	id := a.id()
	a.session = c.engine.NewSession(a.speech(),
		playback.WithID(id),
		playback.WithPlaybackStarted(func() {
			go c.deliver(playbackStartedMsg{id: id})
		}),
		playback.WithStateChange(func(snap playback.Snapshot) {
			c.offer(sessionUpdateMsg(snap))
		}),
	)
}

// offer sends msg unless the program is behind. Views read sessions
// directly, so a dropped update only delays a repaint.
func (c *commonModel) offer(msg tea.Msg) {
	select {
	case c.updates <- msg:
	default:
	}
}

// deliver blocks until the program takes msg or shuts down.
func (c *commonModel) deliver(msg tea.Msg) {
	select {
	case c.updates <- msg:
	case <-c.done:
	}
}

func (c *commonModel) shutdown() {
	c.doneOnce.Do(func() {
		close(c.done)
		c.engine.Close()
	})
}

type model struct {
	common   *commonModel
	state    state
	fatalErr error

	// Sub-models
	list  listModel
	pager pagerModel

	spinning   bool
	refreshing bool

	// Channel that receives paths to local markdown files
	// (via the github.com/muesli/gitcha package)
	localFileFinder chan gitcha.SearchResult
	pendingDirs     []string
}

// unloadDocument goes back to the list. Playback carries on.
func (m *model) unloadDocument() {
	m.state = stateShowList
	m.pager.unload()
	m.pager.showHelp = false
}

// openDocument shows a in the pager.
func (m *model) openDocument(a *article) tea.Cmd {
	if m.state == stateShowDocument && m.pager.current == a {
		return nil
	}
	if m.state == stateShowDocument {
		m.pager.unload()
	}
	m.state = stateShowDocument
	m.pager.load(a)
	m.pager.setSize(m.common.width, m.common.height)
	return renderWithGlamour(m.pager, a.Body)
}

func newModel(cfg Config, engine *playback.Engine, clips AudioCache) model {
	if cfg.GlamourStyle == styles.AutoStyle {
		if te.HasDarkBackground() {
			cfg.GlamourStyle = styles.DarkStyle
		} else {
			cfg.GlamourStyle = styles.LightStyle
		}
	}
	if clips == nil {
		clips = noCache{}
	}

	sp := spinner.New()
	sp.Spinner = spinner.Line
	sp.Style = subtleStyle

	common := &commonModel{
		cfg:     cfg,
		engine:  engine,
		clips:   clips,
		spinner: sp,
		updates: make(chan tea.Msg, updateBuffer),
		done:    make(chan struct{}),
	}
	common.cwd, _ = os.Getwd()

	m := model{
		common: common,
		state:  stateShowList,
		list:   newListModel(common),
		pager:  newPagerModel(common),
	}

	if cfg.Content != "" {
		a := &article{localPath: stdinPath, Note: stdinPath}
		a.setContent([]byte(cfg.Content))
		common.attach(a)
		m.list.addArticles(a)
		m.state = stateShowDocument
		m.pager.load(a)
		return m
	}

	m.list.searching = true
	m.spinning = true
	return m
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{waitForUpdate(m.common.updates)}

	switch {
	case m.state == stateShowDocument:
		cmds = append(cmds, renderWithGlamour(m.pager, m.pager.current.Body))
	default:
		cmds = append(cmds, findLocalFiles(m.common.cfg, m.common.cwd), m.common.spinner.Tick)
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// If there's been an error, any key exits
	if m.fatalErr != nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			m.common.shutdown()
			return m, tea.Quit
		}
	}

	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case keyEsc:
			if m.state == stateShowDocument {
				m.unloadDocument()
				return m, nil
			}

		case "r":
			if m.state == stateShowList && m.list.state != listStateFiltering {
				m.list.reset()
				m.localFileFinder = nil
				m.pendingDirs = nil
				m.list.searching = true
				return m, tea.Batch(findLocalFiles(m.common.cfg, m.common.cwd), m.startSpinner())
			}

		case "q":
			if m.state == stateShowList && m.list.state == listStateFiltering {
				var cmd tea.Cmd
				m.list, cmd = m.list.update(msg)
				return m, cmd
			}
			m.common.shutdown()
			return m, tea.Quit

		case "h", "delete":
			if m.state == stateShowDocument {
				m.unloadDocument()
				return m, nil
			}

		case "ctrl+z":
			return m, tea.Suspend

		// Ctrl+C always quits no matter where in the application you are.
		case "ctrl+c":
			m.common.shutdown()
			return m, tea.Quit
		}

	// Window size is received when starting up and on every resize
	case tea.WindowSizeMsg:
		m.common.width = msg.Width
		m.common.height = msg.Height
		m.pager.setSize(msg.Width, msg.Height)

	case errMsg:
		m.fatalErr = msg.err
		return m, nil

	case initLocalFileSearchMsg:
		m.localFileFinder = msg.ch
		m.common.cwd = msg.cwd
		m.pendingDirs = msg.rest
		m.list.searching = true
		m.list.addArticles(m.attachAll(msg.files)...)
		cmds = append(cmds, findNextLocalFile(m.localFileFinder, m.common.cwd))

	case foundArticlesMsg:
		m.list.addArticles(m.attachAll(msg)...)
		cmds = append(cmds, findNextLocalFile(m.localFileFinder, m.common.cwd))

	case localFileSearchFinished:
		if len(m.pendingDirs) > 0 {
			dir := m.pendingDirs[0]
			m.pendingDirs = m.pendingDirs[1:]
			return m, searchDir(dir, m.common.cfg.ShowAllFiles)
		}
		m.list.searching = false
		m.localFileFinder = nil
		if len(m.list.articles) == 1 && m.state == stateShowList {
			return m, m.openDocument(m.list.articles[0])
		}

	case openArticleMsg:
		return m, m.openDocument(msg.article)

	case reloadMsg:
		return m, m.reload(msg.path)

	case articleReloadedMsg:
		a := m.list.find(msg.path)
		if a == nil {
			return m, nil
		}
		a.setContent(msg.content)
		a.Modtime = msg.modtime
		a.session.SetText(a.speech())
		if m.state == stateShowDocument && m.pager.current == a {
			m.pager.watched = false
			return m, renderWithGlamour(m.pager, a.Body)
		}
		return m, nil

	case sessionUpdateMsg:
		log.Debug("session", "id", msg.ID, "state", msg.State, "progress", playback.Snapshot(msg).Progress())
		cmds = append(cmds, waitForUpdate(m.common.updates))
		if msg.State.Active() && !m.refreshing {
			m.refreshing = true
			cmds = append(cmds, refresh())
		}
		if msg.State == playback.StateLoading {
			cmds = append(cmds, m.startSpinner())
		}

	case playbackStartedMsg:
		cmds = append(cmds, waitForUpdate(m.common.updates))
		if m.common.cfg.AutoExpand && m.state == stateShowList {
			if a := m.list.find(msg.id); a != nil {
				cmds = append(cmds, m.openDocument(a))
			}
		}
		return m, tea.Batch(cmds...)

	case toggledMsg:
		log.Debug("toggled", "id", msg.id, "state", msg.state)
		return m, nil

	case refreshMsg:
		if m.anyActive() {
			return m, refresh()
		}
		m.refreshing = false
		return m, nil

	case spinner.TickMsg:
		if !m.shouldSpin() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.common.spinner, cmd = m.common.spinner.Update(msg)
		return m, cmd
	}

	switch m.state {
	case stateShowList:
		newListModel, cmd := m.list.update(msg)
		m.list = newListModel
		cmds = append(cmds, cmd)

	case stateShowDocument:
		newPagerModel, cmd := m.pager.update(msg)
		m.pager = newPagerModel
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m model) View() string {
	if m.fatalErr != nil {
		return errorView(m.fatalErr, true, m.common.width)
	}

	switch m.state { //nolint:exhaustive
	case stateShowDocument:
		return m.pager.View()
	default:
		return m.list.view()
	}
}

func (m model) attachAll(articles []*article) []*article {
	for _, a := range articles {
		m.common.attach(a)
	}
	return articles
}

func (m model) anyActive() bool {
	for _, a := range m.list.articles {
		if a.session.State().Active() {
			return true
		}
	}
	return false
}

func (m model) shouldSpin() bool {
	if m.list.searching {
		return true
	}
	for _, a := range m.list.articles {
		if a.session.State() == playback.StateLoading {
			return true
		}
	}
	return false
}

func (m *model) startSpinner() tea.Cmd {
	if m.spinning {
		return nil
	}
	m.spinning = true
	return m.common.spinner.Tick
}

type articleReloadedMsg struct {
	path    string
	content []byte
	modtime time.Time
}

func (m model) reload(path string) tea.Cmd {
	if path == "" || path == stdinPath {
		return nil
	}
	return func() tea.Msg {
		info, err := os.Stat(path)
		if err != nil {
			log.Warn("reload failed", "file", path, "error", err)
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			log.Warn("reload failed", "file", path, "error", err)
			return nil
		}
		return articleReloadedMsg{path: path, content: content, modtime: info.ModTime()}
	}
}

func errorView(err error, fatal bool, width int) string {
	exitMsg := "press any key to "
	if fatal {
		exitMsg += "exit"
	} else {
		exitMsg += "return"
	}
	text := err.Error()
	if width > 6 {
		text = wordwrap.String(text, width-6)
	}
	s := fmt.Sprintf("%s\n\n%s\n\n%s",
		errorTitleStyle.Render("ERROR"),
		text,
		subtleStyle.Render(exitMsg),
	)
	return "\n" + indent(s, 3)
}

// COMMANDS

func waitForUpdate(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

func refresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

// toggleCmd runs the listen control of a. Starting blocks until the first
// chunk plays, so it runs off the update loop.
func toggleCmd(a *article) tea.Cmd {
	sess := a.session
	return func() tea.Msg {
		return toggledMsg{id: sess.ID(), state: sess.Toggle()}
	}
}

func openEditor(path string) tea.Cmd {
	cb := func(err error) tea.Msg {
		return editorFinishedMsg{err}
	}

	cmd, err := editor.Cmd("Listen", path)
	if err != nil {
		return func() tea.Msg { return cb(err) }
	}
	return tea.ExecProcess(cmd, cb)
}

// findLocalFiles reads the files named on the command line and starts a
// search of the first directory.
func findLocalFiles(cfg Config, cwd string) tea.Cmd {
	return func() tea.Msg {
		log.Info("findLocalFiles")
		paths := cfg.Paths
		if len(paths) == 0 {
			paths = []string{"."}
		}

		var (
			files []*article
			dirs  []string
		)
		for _, p := range paths {
			info, err := os.Stat(p)
			if err != nil {
				log.Error("unable to stat file", "file", p, "error", err)
				return errMsg{err}
			}
			if info.IsDir() {
				abs, err := filepath.Abs(p)
				if err != nil {
					return errMsg{err}
				}
				dirs = append(dirs, abs)
				continue
			}
			a, err := readArticle(p, cwd)
			if err != nil {
				return errMsg{err}
			}
			files = append(files, a)
		}

		if len(dirs) == 0 {
			return initLocalFileSearchMsg{cwd: cwd, files: files}
		}

		ch, err := gitchaSearch(dirs[0], cfg.ShowAllFiles)
		if err != nil {
			log.Error("error finding local files", "error", err)
			return errMsg{err}
		}
		return initLocalFileSearchMsg{cwd: dirs[0], ch: ch, rest: dirs[1:], files: files}
	}
}

func searchDir(dir string, showAll bool) tea.Cmd {
	return func() tea.Msg {
		ch, err := gitchaSearch(dir, showAll)
		if err != nil {
			log.Error("error finding local files", "dir", dir, "error", err)
			return localFileSearchFinished{}
		}
		return initLocalFileSearchMsg{cwd: dir, ch: ch}
	}
}

func gitchaSearch(dir string, showAll bool) (chan gitcha.SearchResult, error) {
	log.Debug("local directory is", "cwd", dir)

	// Switch between FindFiles and FindAllFiles to bypass .gitignore rules
	if showAll {
		return gitcha.FindAllFilesExcept(dir, markdownExtensions, nil)
	}
	return gitcha.FindFilesExcept(dir, markdownExtensions, ignorePatterns(dir))
}

// ignorePatterns skips hidden directories and vendored code.
func ignorePatterns(dir string) []string {
	return []string{
		filepath.Join(dir, "node_modules"),
		filepath.Join(dir, "vendor"),
		".*",
	}
}

func findNextLocalFile(ch chan gitcha.SearchResult, cwd string) tea.Cmd {
	return func() tea.Msg {
		if ch == nil {
			return localFileSearchFinished{}
		}
		for res := range ch {
			a, err := readArticle(res.Path, cwd)
			if err != nil {
				log.Warn("skipping article", "file", res.Path, "error", err)
				continue
			}
			return foundArticlesMsg{a}
		}
		// We're done
		log.Debug("local file search finished")
		return localFileSearchFinished{}
	}
}

func waitForStatusMessageTimeout(appCtx applicationContext, t *time.Timer) tea.Cmd {
	return func() tea.Msg {
		<-t.C
		return statusMessageTimeoutMsg(appCtx)
	}
}

// ETC

func stripAbsolutePath(fullPath, cwd string) string {
	fp, _ := filepath.EvalSymlinks(fullPath)
	cp, _ := filepath.EvalSymlinks(cwd)
	if fp == "" {
		fp = fullPath
	}
	if cp == "" {
		cp = cwd
	}
	return strings.ReplaceAll(fp, cp+string(os.PathSeparator), "")
}

// Lightweight version of reflow's indent function.
func indent(s string, n int) string {
	if n <= 0 || s == "" {
		return s
	}
	l := strings.Split(s, "\n")
	b := strings.Builder{}
	i := strings.Repeat(" ", n)
	for _, v := range l {
		fmt.Fprintf(&b, "%s%s\n", i, v)
	}
	return b.String()
}
