package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/termstack/internal/action"
	"github.com/five82/termstack/internal/config"
	"github.com/five82/termstack/internal/logtail"
	"github.com/five82/termstack/internal/nav"
	"github.com/five82/termstack/internal/prefs"
	"github.com/five82/termstack/internal/projection"
	"github.com/five82/termstack/internal/provider"
	"github.com/five82/termstack/internal/scope"
	"github.com/five82/termstack/internal/state"
	"github.com/five82/termstack/internal/template"
	"github.com/five82/termstack/internal/value"
)

// Options configures the UI.
type Options struct {
	Context  context.Context
	Config   *config.Config
	Engine   *template.Engine
	Resolver *scope.Resolver
	Pipeline *provider.Pipeline
	Store    *state.Store
	Logger   *slog.Logger

	Prefs     prefs.Prefs
	PrefsPath string
	// LogFile is shown by the diagnostics overlay.
	LogFile string
}

// trailEntry is the dataset a page showed when the user navigated away
// from it, kept for instant back navigation.
type trailEntry struct {
	rows      value.Dataset
	fetchedAt time.Time
	ok        bool
}

type noticeLevel int

const (
	noticeInfo noticeLevel = iota
	noticeSuccess
	noticeWarning
	noticeError
)

// notice is a transient notification shown in the status line.
type notice struct {
	id    int
	text  string
	level noticeLevel
}

// arrival says how a page became active.
type arrival int

const (
	arriveStart arrival = iota
	arriveForward
	arriveBack
)

// Model is the root application state for Bubble Tea.
type Model struct {
	// Engine
	ctx      context.Context
	cfg      *config.Config
	engine   *template.Engine
	resolver *scope.Resolver
	pipeline *provider.Pipeline
	store    *state.Store
	nav      *nav.Navigator
	actions  *action.Executor
	cells    cells
	logger   *slog.Logger

	prefs     prefs.Prefs
	prefsPath string
	logFile   string

	// UI state
	theme   Theme
	keys    keyMap
	spinner spinner.Model
	width   int
	height  int
	ready   bool

	pages map[string]*pageView
	trail []trailEntry

	showHelp  bool
	modal     Modal
	notice    notice
	noticeSeq int
}

// New creates a new Bubble Tea model positioned on the start page.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	store := opts.Store
	if store == nil {
		store = &state.Store{}
	}

	themeName := opts.Prefs.Theme
	if themeName == "" {
		themeName = opts.Config.App.Theme
	}

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	m := Model{
		ctx:       ctx,
		cfg:       opts.Config,
		engine:    opts.Engine,
		resolver:  opts.Resolver,
		pipeline:  opts.Pipeline,
		store:     store,
		nav:       nav.NewNavigator(opts.Config, opts.Resolver, opts.Engine, logger),
		actions:   action.New(opts.Engine, opts.Resolver, opts.Pipeline, logger),
		cells:     cells{engine: opts.Engine, resolver: opts.Resolver, logger: logger},
		logger:    logger,
		prefs:     opts.Prefs,
		prefsPath: opts.PrefsPath,
		logFile:   opts.LogFile,
		theme:     GetTheme(themeName),
		keys:      DefaultKeyMap(),
		spinner:   sp,
		pages:     make(map[string]*pageView),
	}
	m.spinner.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Accent))
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		m.spinner.Tick,
		m.activate(arriveStart, nil, trailEntry{}),
	)
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
		if pv := m.current(); pv != nil {
			pv.rendered = 0
			m.syncPage(pv)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case fetchedMsg:
		return m.handleFetched(msg)

	case refreshMsg:
		return m.handleRefresh(msg)

	case streamStartedMsg:
		return m.handleStreamStarted(msg)

	case streamMsg:
		return m.handleStream(msg)

	case actionMsg:
		return m.handleActionDone(msg)

	case confirmedMsg:
		return m, m.runAction(msg.action, msg.row)

	case diagnosticsMsg:
		m.modal = newLogModal(m.logFile, msg.lines, msg.err, m.width, m.height)
		return m, nil

	case noticeExpiredMsg:
		if msg.id == m.notice.id {
			m.notice = notice{}
		}
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
	if m.modal != nil {
		return m.modal.View(m.theme, m.width, m.height)
	}
	return m.renderMain()
}

// current returns the view state of the active page.
func (m Model) current() *pageView {
	return m.pages[m.nav.Current()]
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.ForceQuit) {
		m.store.CancelAll()
		return m, tea.Quit
	}

	if m.modal != nil {
		modal, cmd, closed := m.modal.Update(msg, m.keys)
		if closed {
			m.modal = nil
		} else {
			m.modal = modal
		}
		return m, cmd
	}

	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}

	pv := m.current()
	if pv == nil {
		return m, nil
	}
	if pv.searching {
		return m.handleSearchInput(pv, msg)
	}

	// Page actions take precedence over view keys.
	if a, ok := pv.page.Action(msg.String()); ok {
		return m, m.startAction(pv, a)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.store.CancelAll()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.spinner.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Accent))
		m.prefs.Theme = m.theme.Name
		m.savePrefs()
		pv.rendered = 0
		m.syncPage(pv)
		return m, nil

	case key.Matches(msg, m.keys.Diagnostics):
		if m.logFile == "" {
			return m, m.notify("No log file configured", noticeWarning)
		}
		return m, diagnosticsCmd(m.logFile)

	case key.Matches(msg, m.keys.Refresh):
		return m, m.fetch(pv, true)

	case key.Matches(msg, m.keys.Back):
		return m.handleBack(pv)

	case key.Matches(msg, m.keys.Search) && pv.page.View.Kind != config.ViewText:
		pv.searching = true
		pv.input.SetValue(pv.proj.Query().Text)
		pv.input.CursorEnd()
		return m, pv.input.Focus()

	case key.Matches(msg, m.keys.CaseToggle):
		m.toggleCase(pv)
		return m, nil
	}

	switch pv.page.View.Kind {
	case config.ViewLogs, config.ViewText:
		return m.handleScrollKey(pv, msg)
	default:
		return m.handleTableKey(pv, msg)
	}
}

// handleBack dismisses the error panel, then clears the search, then
// returns to the previous page.
func (m Model) handleBack(pv *pageView) (tea.Model, tea.Cmd) {
	if showsError(pv, m.store.Snapshot(pv.page.ID)) {
		pv.errDismissed = true
		return m, nil
	}
	if !pv.proj.Query().Empty() {
		pv.input.SetValue("")
		pv.setQuery("")
		m.syncPage(pv)
		return m, nil
	}
	return m, m.back()
}

// handleTableKey processes keyboard input for table pages.
func (m Model) handleTableKey(pv *pageView, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	page := m.tableHeight()
	switch {
	case key.Matches(msg, m.keys.Down):
		pv.move(1)
	case key.Matches(msg, m.keys.Up):
		pv.move(-1)
	case key.Matches(msg, m.keys.Top):
		pv.selected = 0
	case key.Matches(msg, m.keys.Bottom):
		pv.selected = pv.proj.Len() - 1
	case key.Matches(msg, m.keys.PageDown):
		pv.move(page)
	case key.Matches(msg, m.keys.PageUp):
		pv.move(-page)
	case key.Matches(msg, m.keys.HalfPageDown):
		pv.move(max(page/2, 1))
	case key.Matches(msg, m.keys.HalfPageUp):
		pv.move(-max(page/2, 1))
	case key.Matches(msg, m.keys.NextSort):
		pv.cycleSort()
		m.rememberSort(pv)
	case key.Matches(msg, m.keys.FlipSort):
		pv.flipSort()
		m.rememberSort(pv)
	case key.Matches(msg, m.keys.Select):
		return m, m.follow(pv)
	default:
		return m, nil
	}
	pv.clamp(page)
	return m, nil
}

// handleScrollKey processes keyboard input for logs and text pages.
func (m Model) handleScrollKey(pv *pageView, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	vp := &pv.viewport
	switch {
	case key.Matches(msg, m.keys.ToggleFollow) && pv.page.View.Kind == config.ViewLogs:
		pv.follow = !pv.follow
		if pv.follow {
			vp.GotoBottom()
		}
		return m, nil
	case key.Matches(msg, m.keys.ToggleWrap):
		pv.wrap = !pv.wrap
		pv.version++
		m.syncPage(pv)
		return m, nil
	case key.Matches(msg, m.keys.Top):
		vp.GotoTop()
	case key.Matches(msg, m.keys.Bottom):
		vp.GotoBottom()
		pv.follow = pv.page.View.Kind == config.ViewLogs
		return m, nil
	case key.Matches(msg, m.keys.Down):
		vp.ScrollDown(1)
	case key.Matches(msg, m.keys.Up):
		vp.ScrollUp(1)
	case key.Matches(msg, m.keys.HalfPageDown):
		vp.HalfPageDown()
	case key.Matches(msg, m.keys.HalfPageUp):
		vp.HalfPageUp()
	case key.Matches(msg, m.keys.PageDown):
		vp.PageDown()
	case key.Matches(msg, m.keys.PageUp):
		vp.PageUp()
	default:
		return m, nil
	}
	pv.follow = pv.follow && vp.AtBottom()
	return m, nil
}

// handleSearchInput handles keyboard input while the search prompt is open.
// The query is applied as it is typed.
func (m Model) handleSearchInput(pv *pageView, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		pv.searching = false
		pv.input.Blur()
		return m, nil

	case key.Matches(msg, m.keys.Cancel):
		pv.searching = false
		pv.input.Blur()
		pv.input.SetValue("")
		pv.setQuery("")
		m.syncPage(pv)
		return m, nil

	case key.Matches(msg, m.keys.SearchCase):
		m.toggleCase(pv)
		return m, nil
	}

	var cmd tea.Cmd
	pv.input, cmd = pv.input.Update(msg)
	if pv.input.Value() != pv.proj.Query().Text {
		pv.setQuery(pv.input.Value())
		m.syncPage(pv)
	}
	return m, cmd
}

// toggleCase flips case-sensitive search for the page and remembers the
// choice as the default.
func (m *Model) toggleCase(pv *pageView) {
	pv.caseSensitive = !pv.caseSensitive
	pv.setQuery(pv.proj.Query().Text)
	m.syncPage(pv)
	m.prefs.CaseSensitive = pv.caseSensitive
	m.savePrefs()
}

// rememberSort stores the page's sort choice in the preferences.
func (m *Model) rememberSort(pv *pageView) {
	k := prefs.SortKey(m.cfg.App.Name, pv.page.ID)
	if pv.sortCol < 0 {
		delete(m.prefs.Sort, k)
	} else {
		if m.prefs.Sort == nil {
			m.prefs.Sort = make(map[string]prefs.SortPref)
		}
		m.prefs.Sort[k] = prefs.SortPref{Column: pv.sortTitle(), Desc: pv.sortDesc}
	}
	m.savePrefs()
}

func (m *Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	if err := prefs.Save(m.prefsPath, m.prefs); err != nil {
		m.logger.Warn("save preferences failed", "path", m.prefsPath, "error", err)
	}
}

// notify shows a transient notification.
func (m *Model) notify(text string, level noticeLevel) tea.Cmd {
	m.noticeSeq++
	m.notice = notice{id: m.noticeSeq, text: text, level: level}
	return noticeExpiryCmd(m.noticeSeq)
}

// Navigation

// activate makes the navigator's current page the active one. Arriving
// forward starts from a fresh view; arriving back restores vs and shows the
// dataset the page had when it was left while a refresh runs.
func (m *Model) activate(how arrival, vs *nav.ViewState, prev trailEntry) tea.Cmd {
	page := m.nav.Page()
	if page == nil {
		return nil
	}
	pv := newPageView(page, m.cells, m.prefs.CaseSensitive)
	m.pages[page.ID] = pv
	m.initialSort(pv)

	m.store.Forget(page.ID)
	m.store.SetActive(page.ID)

	view := m.resolver.Freeze()
	if f := strings.TrimSpace(page.View.Filter); f != "" {
		pv.setFilter(projection.Condition(m.engine, view, f))
	}
	if vs != nil {
		pv.restore(*vs)
	}

	isStream := page.Data.Source != nil && page.Data.Source.Kind() == config.KindStream
	switch {
	case isStream:
	case prev.ok:
		m.store.Seed(page.ID, prev.rows, prev.fetchedAt)
		m.setRows(pv, prev.rows)
	default:
		if res, ok := m.pipeline.Cached(page.ID, page.Data, view); ok {
			m.store.Seed(page.ID, res.Rows, res.FetchedAt)
			m.setRows(pv, res.Rows)
		}
	}
	if vs != nil {
		restored := *vs
		pv.pending = &restored
		pv.placeCursor(m.tableHeight())
	}
	m.logger.Debug("page active", "page", page.ID, "arrival", int(how))
	return m.fetch(pv, false)
}

// initialSort picks the remembered sort of the page, or its configured one.
func (m *Model) initialSort(pv *pageView) {
	if p, ok := m.prefs.Sort[prefs.SortKey(m.cfg.App.Name, pv.page.ID)]; ok {
		pv.wantSort, pv.wantDesc = p.Column, p.Desc
	} else if s := pv.page.View.Sort; s != nil {
		pv.wantSort, pv.wantDesc = s.Column, s.Desc
	}
	pv.resolveSort()
}

// follow navigates along the page's routing rule for the selected row.
func (m *Model) follow(pv *pageView) tea.Cmd {
	if pv.page.Next == nil {
		return nil
	}
	row, ok := pv.selectedRow()
	if !ok {
		return nil
	}
	leaving := m.leaving(pv)
	t, err := m.nav.Next(row, pv.viewState())
	if err != nil {
		return m.routeFailed(err)
	}
	return m.arrive(t, leaving)
}

// goTo navigates to an explicit target, as page actions do.
func (m *Model) goTo(pv *pageView, target config.Target, row value.Value) tea.Cmd {
	leaving := m.leaving(pv)
	t, err := m.nav.Go(target, row, pv.viewState())
	if err != nil {
		return m.routeFailed(err)
	}
	return m.arrive(t, leaving)
}

func (m *Model) routeFailed(err error) tea.Cmd {
	if errors.Is(err, nav.ErrNoRoute) {
		return m.notify("No route for the selected row", noticeWarning)
	}
	return m.notify(err.Error(), noticeError)
}

// leaving captures the dataset of the page being left.
func (m *Model) leaving(pv *pageView) trailEntry {
	snap := m.store.Snapshot(pv.page.ID)
	if pv.stream != nil {
		return trailEntry{}
	}
	return trailEntry{rows: snap.Rows, fetchedAt: snap.FetchedAt, ok: snap.HasData}
}

// arrive records the left page on the trail and activates the new one.
func (m *Model) arrive(t nav.Transition, leaving trailEntry) tea.Cmd {
	m.trail = append(m.trail, leaving)
	if depth := m.nav.Stack().Len(); len(m.trail) > depth {
		m.trail = m.trail[len(m.trail)-depth:]
	}
	m.logger.Debug("transition", "from", t.From, "to", t.To, "evicted", t.Evicted)
	return m.activate(arriveForward, nil, trailEntry{})
}

// back returns to the previous page.
func (m *Model) back() tea.Cmd {
	frame, ok := m.nav.Back()
	if !ok {
		return nil
	}
	var prev trailEntry
	if n := len(m.trail); n > 0 {
		prev = m.trail[n-1]
		m.trail = m.trail[:n-1]
	}
	return m.activate(arriveBack, &frame.View, prev)
}

// Data

// fetch starts a request for the page's data. Streams are (re)started.
func (m *Model) fetch(pv *pageView, force bool) tea.Cmd {
	page := pv.page
	if page.Data.Source == nil {
		return nil
	}
	pv.epoch++
	pv.errDismissed = false
	view := m.resolver.Freeze()
	ctx, cancel := context.WithCancel(m.ctx)
	t := m.store.Begin(page.ID, cancel)

	if s, ok := page.Data.Source.(config.StreamSource); ok {
		size := s.BufferSize
		if size <= 0 {
			size = logtail.DefaultSize
		}
		pv.stream = &streamState{ticket: t, buf: logtail.New(size)}
		m.setRows(pv, nil)
		return startStreamCmd(ctx, m.pipeline, t, pv.epoch, page, view)
	}

	if force {
		m.pipeline.Invalidate(page.ID)
	}
	m.logger.Debug("fetch started", "page", page.ID, "seq", t.Seq, "force", force)
	return fetchCmd(ctx, m.pipeline, t, page, view)
}

// handleFetched applies a fetch result if it is still wanted.
func (m Model) handleFetched(msg fetchedMsg) (tea.Model, tea.Cmd) {
	if !m.store.Apply(msg.ticket, msg.result) {
		m.logger.Debug("discarded stale result", "page", msg.ticket.Page, "seq", msg.ticket.Seq)
		return m, nil
	}
	pv := m.pages[msg.ticket.Page]
	if pv == nil {
		return m, nil
	}
	if err := msg.result.Err; err != nil {
		m.logger.Warn("fetch failed", "page", msg.ticket.Page, "duration", msg.duration, "error", err)
	} else {
		m.logger.Debug("fetch finished", "page", msg.ticket.Page, "rows", len(msg.result.Rows),
			"cached", msg.result.Cached, "duration", msg.duration)
		m.setRows(pv, msg.result.Rows)
	}
	return m, m.scheduleRefresh(pv)
}

// handleStreamStarted begins reading a stream that started successfully.
func (m Model) handleStreamStarted(msg streamStartedMsg) (tea.Model, tea.Cmd) {
	pv := m.pages[msg.ticket.Page]
	if pv == nil || pv.stream == nil || msg.epoch != pv.epoch || !m.store.Current(msg.ticket) {
		return m, nil
	}
	if msg.err != nil {
		m.store.Apply(msg.ticket, state.Result{Err: msg.err})
		pv.stream.done, pv.stream.err = true, msg.err
		m.logger.Warn("stream failed to start", "page", msg.ticket.Page, "error", msg.err)
		return m, nil
	}
	return m, readStreamCmd(msg.ticket, msg.epoch, msg.lines)
}

// handleStream appends streamed lines and keeps reading.
func (m Model) handleStream(msg streamMsg) (tea.Model, tea.Cmd) {
	pv := m.pages[msg.ticket.Page]
	if pv == nil || pv.stream == nil || msg.epoch != pv.epoch || !m.store.Current(msg.ticket) {
		return m, nil
	}
	st := pv.stream
	for _, line := range msg.lines {
		st.buf.Append(line)
	}
	if len(msg.lines) > 0 {
		m.setRows(pv, lineRows(st.buf.Lines()))
	}
	if msg.done {
		st.done, st.err = true, msg.err
		m.store.Apply(msg.ticket, state.Result{Rows: pv.proj.Rows(), Err: msg.err})
		m.logger.Debug("stream ended", "page", msg.ticket.Page, "lines", st.buf.Len(), "error", msg.err)
		return m, nil
	}
	return m, readStreamCmd(msg.ticket, msg.epoch, msg.source)
}

// setRows installs a dataset into the page's projection.
func (m *Model) setRows(pv *pageView, rows value.Dataset) {
	switch pv.page.View.Kind {
	case config.ViewLogs:
		if pv.stream == nil {
			rows = lineRows(datasetLines(rows))
		}
	case config.ViewText:
	default:
		pv.inferColumns(m.cells, rows)
	}
	pv.proj.SetRows(rows)
	pv.version++
	pv.placeCursor(m.tableHeight())
	m.syncPage(pv)
}

// syncPage refreshes size-dependent state of the page.
func (m *Model) syncPage(pv *pageView) {
	if !m.ready {
		return
	}
	switch pv.page.View.Kind {
	case config.ViewLogs, config.ViewText:
		m.updateViewport(pv)
	default:
		pv.clamp(m.tableHeight())
	}
}

// Actions

// startAction runs a, asking for confirmation first when it has a prompt.
func (m *Model) startAction(pv *pageView, a config.Action) tea.Cmd {
	row, ok := pv.selectedRow()
	if !ok {
		row = value.Null()
	}
	if prompt, ask := m.actions.Confirmation(a, row); ask {
		m.modal = newConfirmModal(a, row, prompt)
		return nil
	}
	return m.runAction(a, row)
}

func (m *Model) runAction(a config.Action, row value.Value) tea.Cmd {
	pv := m.current()
	if pv == nil {
		return nil
	}
	if action.KindOf(a) == action.KindPage {
		out := m.actions.Run(m.ctx, a, row)
		if out.Err != nil || out.Navigate == nil {
			return m.notify(out.Message, noticeError)
		}
		return m.goTo(pv, *out.Navigate, row)
	}
	label := a.Name
	if label == "" {
		label = a.Key
	}
	return tea.Batch(
		m.notify(fmt.Sprintf("Running %s...", label), noticeInfo),
		runActionCmd(m.ctx, m.actions, pv.page.ID, a, row),
	)
}

// handleActionDone reports an action outcome and refreshes when asked.
func (m Model) handleActionDone(msg actionMsg) (tea.Model, tea.Cmd) {
	level := noticeSuccess
	if msg.outcome.Err != nil {
		level = noticeError
	}
	cmds := []tea.Cmd{m.notify(msg.outcome.Message, level)}
	if pv := m.current(); pv != nil && msg.outcome.Refresh && pv.page.ID == msg.page {
		cmds = append(cmds, m.fetch(pv, true))
	}
	return m, tea.Batch(cmds...)
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	m.store.CancelAll()
	if errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		return nil
	}
	return err
}
