// Package overlay drives the invoice overlay on a host page. All page work
// happens on the goroutine running Engine.Run; other goroutines hand work
// to it with Post.
package overlay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/odyssey-erp/invoice-overlay/internal/dom"
	jobmetrics "github.com/odyssey-erp/invoice-overlay/internal/jobs"
	"github.com/odyssey-erp/invoice-overlay/internal/kpi"
	"github.com/odyssey-erp/invoice-overlay/internal/observability"
	"github.com/odyssey-erp/invoice-overlay/internal/profile"
	"github.com/odyssey-erp/invoice-overlay/internal/records"
	"github.com/odyssey-erp/invoice-overlay/internal/state"
	"github.com/odyssey-erp/invoice-overlay/internal/view"
)

// DefaultHashChangeDelay is how long after a hash change the pass runs.
const DefaultHashChangeDelay = 60 * time.Millisecond

var (
	// ErrStopped is returned by Post once the engine loop has exited.
	ErrStopped = errors.New("overlay: engine stopped")
	// ErrDocumentClosed ends Run when the page event stream closes.
	ErrDocumentClosed = errors.New("overlay: document closed")
)

// Options wires an Engine.
type Options struct {
	Document    dom.Document
	Profile     *profile.Profile
	Store       *state.Store
	Fetcher     records.Fetcher
	Formatter   *kpi.MoneyFormatter
	Presenter   Presenter
	Templates   *view.Engine
	Diagnostics *observability.Diagnostics
	Metrics     *observability.Metrics
	Jobs        *jobmetrics.Metrics
	Logger      *slog.Logger

	MinRefresh      time.Duration
	Debounce        time.Duration
	MaxWait         time.Duration
	HashChangeDelay time.Duration
	Location        *time.Location
	Clock           func() time.Time
}

// Engine owns the overlay on one document.
type Engine struct {
	doc       dom.Document
	profile   *profile.Profile
	store     *state.Store
	fetcher   records.Fetcher
	formatter *kpi.MoneyFormatter
	presenter Presenter
	templates *view.Engine
	diag      *observability.Diagnostics
	metrics   *observability.Metrics
	jobs      *jobmetrics.Metrics
	logger    *slog.Logger
	location  *time.Location
	clock     func() time.Time
	hashDelay time.Duration

	sched *Scheduler
	guard *RefreshGuard
	swipe SwipeTracker

	ctx       context.Context
	tasks     chan func()
	done      chan struct{}
	dirty     atomic.Bool
	presented bool
	rows      []records.Row
	missing   map[string]bool
}

// New validates opts and builds an engine. It does not touch the page.
func New(opts Options) (*Engine, error) {
	if opts.Document == nil {
		return nil, errors.New("overlay: document is required")
	}
	if opts.Profile == nil {
		return nil, errors.New("overlay: profile is required")
	}
	if opts.Store == nil {
		return nil, errors.New("overlay: state store is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Templates == nil {
		tpl, err := view.NewEngine()
		if err != nil {
			return nil, fmt.Errorf("overlay: templates: %w", err)
		}
		opts.Templates = tpl
	}
	if opts.Formatter == nil {
		opts.Formatter = kpi.NewMoneyFormatter("", "")
	}
	if opts.Diagnostics == nil {
		opts.Diagnostics = observability.NewDiagnostics(observability.DiagnosticsOptions{
			Logger:  opts.Logger,
			Metrics: opts.Metrics,
		})
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.HashChangeDelay <= 0 {
		opts.HashChangeDelay = DefaultHashChangeDelay
	}

	e := &Engine{
		doc:       opts.Document,
		profile:   opts.Profile,
		store:     opts.Store,
		fetcher:   opts.Fetcher,
		formatter: opts.Formatter,
		presenter: opts.Presenter,
		templates: opts.Templates,
		diag:      opts.Diagnostics,
		metrics:   opts.Metrics,
		jobs:      opts.Jobs,
		logger:    opts.Logger,
		location:  opts.Location,
		clock:     opts.Clock,
		hashDelay: opts.HashChangeDelay,
		sched:     NewScheduler(opts.Debounce, opts.MaxWait),
		guard:     NewRefreshGuard(opts.MinRefresh),
		ctx:       context.Background(),
		tasks:     make(chan func(), 32),
		done:      make(chan struct{}),
		missing:   make(map[string]bool),
	}
	e.store.Subscribe(func(state.UiState) { e.dirty.Store(true) })
	return e, nil
}

// Run performs the first pass and then serves page events, scheduled
// passes and posted tasks until ctx is done or the document closes.
func (e *Engine) Run(ctx context.Context) error {
	e.ctx = ctx
	defer close(e.done)

	e.Bootstrap()
	e.flush()

	events := e.doc.Events()
	timer := time.NewTimer(time.Hour)
	stopTimer(timer)
	defer timer.Stop()

	for {
		var fire <-chan time.Time
		if e.sched.Pending() {
			wait := e.sched.Deadline().Sub(e.clock())
			if wait < 0 {
				wait = 0
			}
			timer.Reset(wait)
			fire = timer.C
		}

		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			stopTimer(timer)
			if !ok {
				return ErrDocumentClosed
			}
			e.HandleEvent(ev)
		case task := <-e.tasks:
			stopTimer(timer)
			task()
		case <-fire:
			if e.sched.Fire(e.clock()) {
				e.Bootstrap()
			}
		}
		e.flush()
	}
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

// Post runs fn on the engine loop.
func (e *Engine) Post(ctx context.Context, fn func()) error {
	select {
	case <-e.done:
		return ErrStopped
	default:
	}
	select {
	case e.tasks <- fn:
		return nil
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disabled reports whether the persisted disable flag is set.
func (e *Engine) Disabled() bool {
	v, _ := e.doc.Storage().Get(e.profile.Storage.DisableKey)
	return v == "1"
}

// ToggleDisabled flips the persisted disable flag and reloads the page.
func (e *Engine) ToggleDisabled() bool {
	next := "1"
	if e.Disabled() {
		next = "0"
	}
	e.doc.Storage().Set(e.profile.Storage.DisableKey, next)
	e.logger.Info("overlay disable flag toggled", slog.String("value", next))
	e.doc.Reload()
	return next == "1"
}

// Bootstrap runs one pass: clean up host chrome, ensure the rail and the
// switcher, mark active links, mount the dashboard and refresh records on
// invoice pages.
func (e *Engine) Bootstrap() MountState {
	tracker := e.jobs.Track(jobmetrics.JobBootstrap)
	if e.Disabled() {
		_ = tracker.End(nil)
		return Unmounted
	}

	e.RemoveStale()
	var passErr error
	if _, err := e.EnsureRail(); err != nil {
		e.report(observability.KindRuntime, "rail", err)
		passErr = err
	}
	if _, err := e.EnsureSwitcherPanel(); err != nil {
		e.report(observability.KindRuntime, "switcher", err)
		passErr = err
	}
	e.MarkActiveIcons()
	e.Mount()
	if InRecordContext(e.doc, e.profile) {
		e.Refresh()
	}
	_ = tracker.End(passErr)
	return e.MountState()
}

// Refresh starts a remote fetch unless one started less than the minimum
// interval ago. The result is applied on the engine loop.
func (e *Engine) Refresh() bool {
	if e.fetcher == nil {
		return false
	}
	if !e.guard.Allow(e.clock()) {
		e.metrics.RefreshThrottled()
		return false
	}
	e.store.Update(func(st *state.UiState) { st.Loading = true })

	ctx := e.ctx
	tracker := e.jobs.Track(jobmetrics.JobRefresh)
	go func() {
		rows, err := e.fetcher.FetchRecords(ctx)
		_ = tracker.End(err)
		_ = e.Post(ctx, func() { e.finishRefresh(rows, err) })
	}()
	return true
}

func (e *Engine) finishRefresh(rows []records.Row, err error) {
	e.store.Update(func(st *state.UiState) { st.Loading = false })
	if err != nil {
		e.report(observability.KindRemoteCall, "fetch_records", err)
		return
	}
	e.rows = rows
	e.jobs.SetRows(len(rows))
	e.logger.Debug("records refreshed", slog.Int("rows", len(rows)))
	e.ApplyMetrics()
}

// Rows returns the rows of the last successful fetch.
func (e *Engine) Rows() []records.Row {
	return e.rows
}

// ApplyMetrics recomputes the KPIs from the cached rows, updates the tip,
// projects the list and badges, and refreshes the checklist.
func (e *Engine) ApplyMetrics() state.UiState {
	active := e.store.ActiveFilter()
	snap, counts := kpi.Aggregate(e.rows, active, kpi.Today(e.clock().In(e.location)))
	card := e.formatter.Card(snap)
	text := e.store.Snapshot().Text
	tip := text.TipFor(string(active)) + " " + e.viewModeTip()

	e.store.Update(func(st *state.UiState) {
		st.KPIs = card
		st.Raw = snap
		st.Counts = counts
		st.Tip = tip
	})
	e.ApplyQuickFilter(active)
	e.StyleBadges()
	return e.store.RefreshChecklist(e.probe)
}

// SetActiveFilter switches the filter and reapplies metrics. Unknown names
// select all.
func (e *Engine) SetActiveFilter(f kpi.Filter) kpi.Filter {
	e.store.Update(func(st *state.UiState) { st.ActiveFilter = f })
	return e.ApplyMetrics().ActiveFilter
}

// RequestFilter sets the filter from another goroutine and waits for the
// engine loop to apply it.
func (e *Engine) RequestFilter(ctx context.Context, f kpi.Filter) (kpi.Filter, error) {
	result := make(chan kpi.Filter, 1)
	if err := e.Post(ctx, func() { result <- e.SetActiveFilter(f) }); err != nil {
		return "", err
	}
	select {
	case active := <-result:
		return active, nil
	case <-e.done:
		return "", ErrStopped
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (e *Engine) viewModeTip() string {
	text := e.store.Snapshot().Text
	sel := e.profile.Selectors
	switch {
	case sel.FormView != "" && e.doc.QueryOne(sel.FormView) != nil:
		return text.TipViewForm
	case sel.KanbanView != "" && e.doc.QueryOne(sel.KanbanView) != nil:
		return text.TipViewKanban
	case sel.ListView != "" && e.doc.QueryOne(sel.ListView) != nil:
		return text.TipViewList
	}
	return text.TipViewFallback
}

func (e *Engine) probe(id string) bool {
	sel := e.profile.Selectors
	var selector string
	switch id {
	case state.CheckSearch:
		selector = sel.SearchInput
	case state.CheckNew:
		selector = sel.NewRecordAction
	case state.CheckList:
		selector = sel.ListTable
	case state.CheckStatus:
		selector = sel.StatusBadges
	}
	return selector != "" && e.doc.QueryOne(selector) != nil
}

// HandleEvent reacts to one page event.
func (e *Engine) HandleEvent(ev dom.Event) {
	switch ev.Type {
	case dom.EventMutation:
		if ev.Self {
			e.metrics.ObserveMutation(observability.MutationSelf)
			return
		}
		e.metrics.ObserveMutation(observability.MutationForeign)
		if _, coalesced := e.sched.Notify(e.clock(), 0); coalesced {
			e.metrics.ObserveMutation(observability.MutationCoalesced)
		}
	case dom.EventHashChange:
		e.sched.Notify(e.clock(), e.hashDelay)
	case dom.EventKey:
		e.handleKey(ev.Key)
	case dom.EventClick:
		if e.Disabled() {
			return
		}
		e.handleClick(ev)
	case dom.EventTouchStart:
		if ev.Within(e.profile.UI.MountID) && e.gesturesBound() {
			e.swipe.Start(ev.X, ev.Y)
		}
	case dom.EventTouchEnd:
		if !ev.Within(e.profile.UI.MountID) || !e.gesturesBound() {
			return
		}
		if next, ok := e.swipe.End(ev.X, ev.Y, e.store.ActiveFilter()); ok {
			e.SetActiveFilter(next)
		}
	}
}

func (e *Engine) handleKey(k dom.KeyEvent) {
	action := MapKey(k, e.profile.Shortcuts.FilterMap)
	if action.Kind == ActionToggleDisabled {
		e.ToggleDisabled()
		return
	}
	if e.Disabled() {
		return
	}
	switch action.Kind {
	case ActionFocusSearch:
		e.FocusSearch()
	case ActionOpenPalette:
		e.OpenPalette()
	case ActionClosePalette:
		e.ClosePalette()
	case ActionNewRecord:
		e.NewRecord()
	case ActionSetFilter:
		e.SetActiveFilter(action.Filter)
	}
}

func (e *Engine) handleClick(ev dom.Event) {
	e.closeSwitcherOnOutsideClick(ev)
	switch ev.Action {
	case ClickSwitcherToggle:
		e.ToggleSwitcher()
	case ClickRailSearch:
		e.FocusSearch()
	case ClickRailCollapse:
		e.ToggleRailCollapsed()
	case ClickViewAll:
		e.doc.Navigate(e.profile.Navigation.AppsLandingHref)
	case ClickFilter:
		e.SetActiveFilter(kpi.ParseFilter(ev.Value))
	case ClickBadgeFilter:
		if f := kpi.Filter(ev.Value); f.Valid() && f != kpi.FilterAll {
			e.SetActiveFilter(f)
		}
	case ClickNewRecord:
		e.NewRecord()
	case ClickPaletteClose:
		e.ClosePalette()
	}
}

// FocusSearch focuses the host search input when present.
func (e *Engine) FocusSearch() bool {
	if e.profile.Selectors.SearchInput == "" {
		return false
	}
	input := e.doc.QueryOne(e.profile.Selectors.SearchInput)
	if input == nil {
		return false
	}
	input.Focus()
	return true
}

// NewRecord clicks the host's create button.
func (e *Engine) NewRecord() bool {
	sel := e.profile.Selectors.NewRecordAction
	if sel == "" {
		return false
	}
	btn := e.doc.QueryOne(sel)
	if btn == nil {
		e.unavailable("new_record_action", sel)
		return false
	}
	e.available("new_record_action")
	btn.Click()
	return true
}

// OpenPalette shows the command palette. Without a mounted presenter there
// is nothing to open.
func (e *Engine) OpenPalette() bool {
	if !e.presented {
		e.logger.Warn("command palette requested before the dashboard was mounted")
		return false
	}
	e.store.Update(func(st *state.UiState) { st.PaletteOpen = true })
	return true
}

// ClosePalette hides the command palette.
func (e *Engine) ClosePalette() {
	if !e.store.Snapshot().PaletteOpen {
		return
	}
	e.store.Update(func(st *state.UiState) { st.PaletteOpen = false })
}

// flush redraws the dashboard when the state changed since the last draw.
func (e *Engine) flush() {
	if !e.dirty.Swap(false) || !e.presented || e.presenter == nil {
		return
	}
	wrapper := e.doc.ByID(e.profile.UI.MountID)
	if wrapper == nil {
		return
	}
	if err := e.presenter.Render(wrapper, e.store.Snapshot()); err != nil {
		e.report(observability.KindRuntime, "render", err)
	}
}

func (e *Engine) report(kind, op string, err error) {
	e.diag.Report(e.ctx, kind, op, err)
}

// unavailable reports a missing host node once until it shows up again.
func (e *Engine) unavailable(name, selector string) {
	if e.missing[name] {
		return
	}
	e.missing[name] = true
	e.report(observability.KindDom, name, fmt.Errorf("no element matches %q", selector))
}

func (e *Engine) available(name string) {
	delete(e.missing, name)
}
