package ui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/skiff/internal/apistore"
	"github.com/five82/skiff/internal/prefs"
	"github.com/five82/skiff/internal/state"
)

// View represents the active pane.
type View int

const (
	ViewQueries View = iota
	ViewLogs
)

const (
	logLimit      = 300
	flashDuration = 4 * time.Second
)

// logSource supplies recent log lines; *logtail.Buffer satisfies it.
type logSource interface {
	Lines(maxLines int) []string
}

// Options configures the UI.
type Options struct {
	Context context.Context
	Store   *apistore.Store
	Logs    logSource
	// Health, when set, annotates watched queries with their poll record.
	Health *state.Store
	// Refresh refetches the query behind cacheKey without consulting the
	// persistent cache.
	Refresh func(ctx context.Context, cacheKey string) error
	// Invalidated delivers keys invalidated anywhere in the store.
	Invalidated <-chan apistore.QueryKey
	PollTick    time.Duration
	ThemeName   string
	// Prefs restores the theme and pane from a previous run; SavePrefs, when
	// set, persists them whenever either changes.
	Prefs     prefs.Prefs
	SavePrefs func(prefs.Prefs) error
	Now       func() time.Time
}

// Model is the root application state for Bubble Tea.
type Model struct {
	ctx         context.Context
	store       *apistore.Store
	logs        logSource
	health      *state.Store
	refresh     func(ctx context.Context, cacheKey string) error
	invalidated <-chan apistore.QueryKey
	savePrefs   func(prefs.Prefs) error
	pollTick    time.Duration
	now         func() time.Time
	keys        keyMap

	theme       Theme
	currentView View
	width       int
	height      int
	ready       bool
	showHelp    bool

	snapshot    snapshot
	selectedRow int

	detailViewport viewport.Model
	logViewport    viewport.Model

	flash     string
	flashErr  bool
	flashedAt time.Time
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	pollTick := opts.PollTick
	if pollTick <= 0 {
		pollTick = time.Second
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	themeName := opts.ThemeName
	if opts.Prefs.Theme != "" {
		themeName = opts.Prefs.Theme
	}
	view := ViewQueries
	if opts.Prefs.View == prefs.ViewLogs {
		view = ViewLogs
	}
	return Model{
		ctx:         ctx,
		store:       opts.Store,
		logs:        opts.Logs,
		health:      opts.Health,
		refresh:     opts.Refresh,
		invalidated: opts.Invalidated,
		savePrefs:   opts.SavePrefs,
		pollTick:    pollTick,
		now:         now,
		keys:        DefaultKeyMap(),
		theme:       GetTheme(themeName),
		currentView: view,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tickCmd(m.pollTick),
		m.snapshotCmd(),
	}
	if m.invalidated != nil {
		cmds = append(cmds, waitInvalidatedCmd(m.invalidated))
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
		m.resizeViewports()
		m.ready = true
		m.updateViewports()
		return m, nil

	case tickMsg:
		if !m.flashedAt.IsZero() && m.now().Sub(m.flashedAt) > flashDuration {
			m.flash = ""
			m.flashedAt = time.Time{}
		}
		return m, tea.Batch(m.snapshotCmd(), tickCmd(m.pollTick))

	case snapshotMsg:
		m.snapshot = snapshot(msg)
		m.clampSelection()
		m.updateViewports()
		return m, nil

	case invalidatedMsg:
		m.setFlash("invalidated "+apistore.CacheKey(msg.key), false)
		return m, tea.Batch(m.snapshotCmd(), waitInvalidatedCmd(m.invalidated))

	case prefsSavedMsg:
		if msg.err != nil {
			m.setFlash("save prefs failed: "+msg.err.Error(), true)
		}
		return m, nil

	case actionDoneMsg:
		if msg.err != nil {
			m.setFlash(msg.label+" failed: "+errorText(msg.err), true)
		} else {
			m.setFlash(msg.label+" done", false)
		}
		return m, m.snapshotCmd()
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
	return m.renderMain()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.updateViewports()
		return m, m.savePrefsCmd()
	case key.Matches(msg, m.keys.Tab):
		if m.currentView == ViewQueries {
			m.currentView = ViewLogs
			m.logViewport.GotoBottom()
		} else {
			m.currentView = ViewQueries
		}
		return m, m.savePrefsCmd()
	}

	if m.currentView == ViewLogs {
		var cmd tea.Cmd
		m.logViewport, cmd = m.logViewport.Update(msg)
		return m, cmd
	}
	return m.handleQueriesKey(msg)
}

func (m Model) handleQueriesKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.moveSelection(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveSelection(1)
	case key.Matches(msg, m.keys.Top):
		m.selectedRow = 0
		m.updateViewports()
	case key.Matches(msg, m.keys.Bottom):
		m.selectedRow = len(m.snapshot.queries) - 1
		m.clampSelection()
		m.updateViewports()
	case key.Matches(msg, m.keys.PageUp):
		m.detailViewport.HalfPageUp()
	case key.Matches(msg, m.keys.PageDown):
		m.detailViewport.HalfPageDown()
	case key.Matches(msg, m.keys.Refresh):
		return m, m.refreshCmd()
	case key.Matches(msg, m.keys.Invalidate):
		return m, m.invalidateCmd()
	}
	return m, nil
}

func (m *Model) moveSelection(delta int) {
	m.selectedRow += delta
	m.clampSelection()
	m.detailViewport.GotoTop()
	m.updateViewports()
}

func (m *Model) clampSelection() {
	if m.selectedRow >= len(m.snapshot.queries) {
		m.selectedRow = len(m.snapshot.queries) - 1
	}
	if m.selectedRow < 0 {
		m.selectedRow = 0
	}
}

func (m Model) selectedQuery() (apistore.QueryEntry, bool) {
	if m.selectedRow < 0 || m.selectedRow >= len(m.snapshot.queries) {
		return apistore.QueryEntry{}, false
	}
	return m.snapshot.queries[m.selectedRow], true
}

func (m *Model) setFlash(text string, isErr bool) {
	m.flash = text
	m.flashErr = isErr
	m.flashedAt = m.now()
}

// Messages

type tickMsg time.Time

type snapshotMsg snapshot

type invalidatedMsg struct {
	key apistore.QueryKey
}

type prefsSavedMsg struct {
	err error
}

type actionDoneMsg struct {
	label string
	err   error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) snapshotCmd() tea.Cmd {
	store, health, logs, now := m.store, m.health, m.logs, m.now
	return func() tea.Msg {
		return snapshotMsg(takeSnapshot(store, health, logs, logLimit, now()))
	}
}

func waitInvalidatedCmd(ch <-chan apistore.QueryKey) tea.Cmd {
	return func() tea.Msg {
		key, ok := <-ch
		if !ok {
			return nil
		}
		return invalidatedMsg{key: key}
	}
}

func (m Model) currentPrefs() prefs.Prefs {
	p := prefs.Prefs{Theme: m.theme.Name, View: prefs.ViewQueries}
	if m.currentView == ViewLogs {
		p.View = prefs.ViewLogs
	}
	return p
}

func (m Model) savePrefsCmd() tea.Cmd {
	if m.savePrefs == nil {
		return nil
	}
	save, p := m.savePrefs, m.currentPrefs()
	return func() tea.Msg {
		return prefsSavedMsg{err: save(p)}
	}
}

func (m Model) refreshCmd() tea.Cmd {
	entry, ok := m.selectedQuery()
	if !ok || m.refresh == nil {
		return nil
	}
	ctx, refresh := m.ctx, m.refresh
	return func() tea.Msg {
		return actionDoneMsg{label: "refresh", err: refresh(ctx, entry.CacheKey)}
	}
}

func (m Model) invalidateCmd() tea.Cmd {
	entry, ok := m.selectedQuery()
	if !ok || m.store == nil {
		return nil
	}
	ctx, store := m.ctx, m.store
	return func() tea.Msg {
		key, err := apistore.ParseCacheKey(entry.CacheKey)
		if err == nil {
			err = store.InvalidateQueries(ctx, key)
		}
		return actionDoneMsg{label: "invalidate", err: err}
	}
}

// Run starts the Bubble Tea program and blocks until it exits or ctx ends.
func Run(ctx context.Context, opts Options) error {
	if opts.Context == nil {
		opts.Context = ctx
	}
	p := tea.NewProgram(New(opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
