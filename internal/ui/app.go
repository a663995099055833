package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/posttree/internal/posts"
	"github.com/five82/posttree/internal/prefs"
	"github.com/five82/posttree/internal/state"
)

// View represents the current active view.
type View int

const (
	ViewPosts View = iota
	ViewLogs
)

// Controller is the navigation surface the UI drives. *session.Session
// implements it.
type Controller interface {
	Open(ctx context.Context, id string) error
	Back(ctx context.Context) error
	LoadMore(ctx context.Context) error
	Refresh(ctx context.Context) error
	Submit(ctx context.Context, valueText, opText string) (posts.Post, error)
	Reset(ctx context.Context) error
	Hover(id string)
	FocusID() string
	Author() string
}

// Options configures the UI.
type Options struct {
	Context   context.Context
	Session   Controller
	State     *state.Store
	Prefs     prefs.Prefs
	PrefsPath string
	LogPath   string
	PollTick  time.Duration
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	session   Controller
	store     *state.Store
	prefs     prefs.Prefs
	prefsPath string
	logPath   string
	pollTick  time.Duration

	// UI state
	keys        keyMap
	theme       Theme
	currentView View
	width       int
	height      int
	ready       bool
	showHelp    bool

	// Data state
	snapshot    state.Snapshot
	selectedRow int
	busy        bool
	flash       string
	flashErr    bool

	// Compose form
	composing   bool
	inputs      [2]textinput.Model // value, operation
	focusIdx    int
	composeErr  string
	composeRoot bool

	// Log pane
	logViewport viewport.Model
	logLines    []string
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	pollTick := opts.PollTick
	if pollTick <= 0 {
		pollTick = DefaultUIInterval
	}

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	m := Model{
		ctx:         ctx,
		session:     opts.Session,
		store:       opts.State,
		prefs:       opts.Prefs,
		prefsPath:   prefsPath,
		logPath:     opts.LogPath,
		pollTick:    pollTick,
		keys:        DefaultKeyMap(),
		theme:       GetTheme(opts.Prefs.Theme),
		currentView: ViewPosts,
	}
	m.initComposeInputs()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(m.pollTick)}
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.updateLogViewport()
		return m, nil

	case tickMsg:
		return m.handleTick()

	case snapshotMsg:
		m.applySnapshot(state.Snapshot(msg))
		return m, nil

	case actionDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.setFlash(msg.err.Error(), true)
		} else if msg.note != "" {
			m.setFlash(msg.note, false)
		}
		if msg.resetRow {
			m.selectedRow = 0
		}
		if m.store != nil {
			return m, fetchSnapshotCmd(m.store)
		}
		return m, nil

	case createdMsg:
		m.busy = false
		if msg.err != nil {
			m.composeErr = msg.err.Error()
			return m, nil
		}
		m.closeCompose()
		m.setFlash("posted "+msg.post.Label()+" = "+posts.FormatNumber(msg.post.Result), false)
		if m.store != nil {
			return m, fetchSnapshotCmd(m.store)
		}
		return m, nil

	case logTailMsg:
		m.logLines = msg.lines
		m.updateLogViewport()
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	if m.composing {
		return m.renderCompose()
	}
	return m.renderMain()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}
	if m.composing {
		return m.handleComposeKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.prefs.Theme = m.theme.Name
		if m.prefsPath != "" {
			_ = prefs.Save(m.prefsPath, m.prefs)
		}
		return m, nil

	case key.Matches(msg, m.keys.ViewLogs):
		if m.currentView == ViewLogs {
			m.currentView = ViewPosts
			return m, nil
		}
		m.currentView = ViewLogs
		return m, tailLogCmd(m.logPath)
	}

	switch m.currentView {
	case ViewLogs:
		return m.handleLogsKey(msg)
	default:
		return m.handlePostsKey(msg)
	}
}

// handlePostsKey handles keys for the post list.
func (m Model) handlePostsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	count := len(m.snapshot.Posts)

	switch {
	case key.Matches(msg, m.keys.Down):
		return m, m.moveSelection(m.selectedRow + 1)
	case key.Matches(msg, m.keys.Up):
		return m, m.moveSelection(m.selectedRow - 1)
	case key.Matches(msg, m.keys.Top):
		return m, m.moveSelection(0)
	case key.Matches(msg, m.keys.Bottom):
		return m, m.moveSelection(count - 1)

	case key.Matches(msg, m.keys.Open):
		post := m.selectedPost()
		if post == nil || m.session == nil {
			return m, nil
		}
		return m.runAction(func(ctx context.Context) error {
			return m.session.Open(ctx, post.ID)
		}, "", true)

	case key.Matches(msg, m.keys.Back):
		if m.session == nil || (m.snapshot.Focus == nil && !m.snapshot.NotFound) {
			return m, nil
		}
		return m.runAction(m.session.Back, "", true)

	case key.Matches(msg, m.keys.LoadMore):
		if m.session == nil || !m.snapshot.HasMore {
			return m, nil
		}
		return m.runAction(m.session.LoadMore, "", false)

	case key.Matches(msg, m.keys.Refresh):
		if m.session == nil {
			return m, nil
		}
		return m.runAction(m.session.Refresh, "refreshed", false)

	case key.Matches(msg, m.keys.Reset):
		if m.session == nil {
			return m, nil
		}
		return m.runAction(m.session.Reset, "caches cleared", true)

	case key.Matches(msg, m.keys.Compose):
		if m.snapshot.NotFound {
			return m, nil
		}
		if m.session != nil && m.session.Author() == "" {
			m.setFlash("set author_id in prefs to post", true)
			return m, nil
		}
		m.openCompose()
		return m, textinput.Blink
	}

	return m, nil
}

// moveSelection clamps the cursor and warms the replies of the newly
// selected post.
func (m *Model) moveSelection(row int) tea.Cmd {
	count := len(m.snapshot.Posts)
	if count == 0 {
		m.selectedRow = 0
		return nil
	}
	row = max(0, min(row, count-1))
	if row == m.selectedRow {
		return nil
	}
	m.selectedRow = row
	post := m.snapshot.Posts[row]
	if m.session == nil || post.ChildCount == 0 {
		return nil
	}
	session := m.session
	id := post.ID
	return func() tea.Msg {
		session.Hover(id)
		return nil
	}
}

func (m Model) selectedPost() *posts.Post {
	if m.selectedRow < 0 || m.selectedRow >= len(m.snapshot.Posts) {
		return nil
	}
	p := m.snapshot.Posts[m.selectedRow]
	return &p
}

// runAction runs fn off the update loop and reports completion.
func (m Model) runAction(fn func(context.Context) error, note string, resetRow bool) (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	m.busy = true
	ctx := m.ctx
	return m, func() tea.Msg {
		err := fn(ctx)
		return actionDoneMsg{err: err, note: note, resetRow: resetRow}
	}
}

func (m *Model) applySnapshot(snap state.Snapshot) {
	scopeChanged := snap.Scope != m.snapshot.Scope
	m.snapshot = snap
	if scopeChanged {
		m.selectedRow = 0
	}
	if m.selectedRow >= len(snap.Posts) {
		m.selectedRow = max(0, len(snap.Posts)-1)
	}
}

func (m *Model) setFlash(text string, isErr bool) {
	m.flash = strings.TrimSpace(text)
	m.flashErr = isErr
}

// handleTick processes periodic refresh ticks.
func (m Model) handleTick() (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	if m.currentView == ViewLogs {
		cmds = append(cmds, tailLogCmd(m.logPath))
	}
	cmds = append(cmds, tickCmd(m.pollTick))
	return m, tea.Batch(cmds...)
}

// renderMain renders the full UI.
func (m Model) renderMain() string {
	var b strings.Builder

	// Header line 1: title + status
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	// Header line 2: command bar
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")

	// Main content
	b.WriteString(m.renderContent())

	return b.String()
}

// renderContent renders the main content area based on current view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewLogs:
		return m.renderLogs()
	default:
		return m.renderPosts()
	}
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

type actionDoneMsg struct {
	err      error
	note     string
	resetRow bool
}

type createdMsg struct {
	post posts.Post
	err  error
}

type logTailMsg struct {
	lines []string
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

var errNoSession = errors.New("no session")

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	if opts.Session == nil || opts.State == nil {
		return errNoSession
	}
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		return nil
	}
	return err
}

// placeCenter centers content in the content area below the two header lines.
func (m Model) placeCenter(content string, height int) string {
	return lipgloss.Place(m.width, height, lipgloss.Center, lipgloss.Center, content)
}
