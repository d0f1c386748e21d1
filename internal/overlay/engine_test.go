package overlay

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/invoice-overlay/internal/dom"
	"github.com/odyssey-erp/invoice-overlay/internal/dom/memdom"
	"github.com/odyssey-erp/invoice-overlay/internal/i18n"
	"github.com/odyssey-erp/invoice-overlay/internal/kpi"
	"github.com/odyssey-erp/invoice-overlay/internal/observability"
	"github.com/odyssey-erp/invoice-overlay/internal/profile"
	"github.com/odyssey-erp/invoice-overlay/internal/records"
	"github.com/odyssey-erp/invoice-overlay/internal/state"
	"github.com/odyssey-erp/invoice-overlay/internal/view"
)

const invoiceURL = "https://odoo.local/web#model=account.move&action=account.action_move_out_invoice_type"

const invoicePage = `<html><head><title>Invoices - Odoo</title></head><body>
<nav class="o_main_navbar">menu</nav>
<div class="preview-rail"></div>
<div class="o_action_manager">
  <div class="o_control_panel_breadcrumbs">Customer Invoices</div>
  <input class="o_searchview_input">
  <button class="o_list_button_add">New</button>
  <div class="o_content">
    <div class="o_list_view"><table class="o_list_table"><tbody>
      <tr class="o_data_row" id="r-paid"><td><span class="badge">Paid</span></td></tr>
      <tr class="o_data_row" id="r-overdue"><td><span class="badge">Overdue</span></td></tr>
      <tr class="o_data_row" id="r-unpaid"><td><span class="badge">Not Paid</span></td></tr>
      <tr class="o_data_row" id="r-plain"><td>no status</td></tr>
      <tr class="o_group_header" id="r-group"><td>Group</td></tr>
      <tr class="o_data_row" id="r-draft"><td><span class="badge">Borrador</span></td></tr>
    </tbody></table></div>
  </div>
</div>
</body></html>`

type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	rows  []records.Row
	err   error
}

func (f *fakeFetcher) FetchRecords(context.Context) ([]records.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.rows, f.err
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type failingPresenter struct{}

func (failingPresenter) Mount(dom.Element, state.UiState) error {
	return errors.New("renderer offline")
}

func (failingPresenter) Render(dom.Element, state.UiState) error { return nil }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	engine  *Engine
	doc     *memdom.Document
	fetcher *fakeFetcher
	store   *state.Store
	clock   *fakeClock
	diag    *observability.Diagnostics
}

func sampleRows() []records.Row {
	return []records.Row{
		{State: records.StatePosted, AmountTotal: decimal.NewFromInt(100), AmountResidual: decimal.NewFromInt(100),
			DueDate: records.NewDate(2025, time.June, 14), PaymentState: "not_paid"},
		{State: records.StateDraft, AmountTotal: decimal.NewFromInt(50), AmountResidual: decimal.NewFromInt(50),
			PaymentState: "not_paid"},
		{State: records.StatePosted, AmountTotal: decimal.NewFromInt(80), AmountResidual: decimal.Zero,
			DueDate: records.NewDate(2025, time.June, 16), PaymentState: "paid"},
	}
}

func newHarness(t *testing.T, markup string, mutate ...func(*Options)) *harness {
	t.Helper()
	p, err := profile.Default()
	require.NoError(t, err)

	doc := memdom.MustParse(markup, memdom.Options{URL: invoiceURL, Buffer: 1024})
	clock := &fakeClock{now: time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)}
	text := i18n.BuildUiText(func(_, fallback string) string { return fallback })
	store := state.New(text, state.Options{Clock: clock.Now})
	fetcher := &fakeFetcher{rows: sampleRows()}
	diag := observability.NewDiagnostics(observability.DiagnosticsOptions{Clock: clock.Now})

	tpl, err := view.NewEngine()
	require.NoError(t, err)

	opts := Options{
		Document:    doc,
		Profile:     p,
		Store:       store,
		Fetcher:     fetcher,
		Presenter:   view.NewPresenter(tpl, p.Navigation.RailApps),
		Templates:   tpl,
		Diagnostics: diag,
		Location:    time.UTC,
		Clock:       clock.Now,
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	e, err := New(opts)
	require.NoError(t, err)
	return &harness{engine: e, doc: doc, fetcher: fetcher, store: store, clock: clock, diag: diag}
}

// runTask executes the next task posted to the engine loop.
func (h *harness) runTask(t *testing.T) {
	t.Helper()
	select {
	case task := <-h.engine.tasks:
		task()
	case <-time.After(2 * time.Second):
		t.Fatal("no task posted")
	}
}

func hidden(h *harness, id string) bool {
	return h.doc.ByID(id).HasClass("app-row-hidden")
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}

func TestBootstrapMountsOverlay(t *testing.T) {
	h := newHarness(t, invoicePage)

	assert.Equal(t, Unmounted, h.engine.MountState())
	got := h.engine.Bootstrap()
	assert.Equal(t, Mounted, got)

	assert.NotNil(t, h.doc.QueryOne(".o_main_navbar"), "host navbar kept by the default profile")
	assert.Nil(t, h.doc.QueryOne(".preview-rail"))
	assert.True(t, h.doc.Body().HasClass(ActiveBodyClass))

	rail := h.doc.ByID("app-rail")
	require.NotNil(t, rail)
	owner, ok := rail.Attr(dom.OwnedAttr)
	assert.True(t, ok)
	assert.NotEmpty(t, owner)
	assert.Len(t, rail.QueryAll("a[data-key]"), 5)
	accounting := rail.QueryOne(`a[data-key="accounting"]`)
	require.NotNil(t, accounting)
	assert.True(t, accounting.HasClass("is-active"))
	assert.False(t, rail.QueryOne(`a[data-key="settings"]`).HasClass("is-active"))

	require.NotNil(t, h.doc.ByID("app-switcher-panel"))
	mount := h.doc.ByID("app-record-root")
	require.NotNil(t, mount)
	assert.Equal(t, "1", dom.Data(mount, "appGestureBound"))
	assert.NotNil(t, h.doc.ByID("app-record-hub"), "presenter rendered")

	h.runTask(t)
	assert.Equal(t, 1, h.fetcher.Calls())
	st := h.store.Snapshot()
	assert.False(t, st.Loading)
	assert.Equal(t, 3, st.Counts.All)
	assert.Equal(t, 1, st.KPIs.OverdueCount)
	assert.Contains(t, st.Tip, st.Text.TipViewList)
	assert.Equal(t, 4, st.ChecklistCompleted)
	assert.False(t, st.ChecklistOpen)
}

func TestBootstrapIsIdempotent(t *testing.T) {
	h := newHarness(t, invoicePage)
	h.engine.Bootstrap()
	h.engine.Bootstrap()

	assert.Len(t, h.doc.QueryAll("#app-rail"), 1)
	assert.Len(t, h.doc.QueryAll("#app-switcher-panel"), 1)
	assert.Len(t, h.doc.QueryAll("#app-record-root"), 1)
	assert.Len(t, h.doc.QueryAll("#app-record-hub"), 1)
}

func TestTouchViewportSkipsRail(t *testing.T) {
	h := newHarness(t, invoicePage)
	h.doc.SetWidth(900)

	assert.Equal(t, Mounted, h.engine.Bootstrap())
	assert.Nil(t, h.doc.ByID("app-rail"))
	assert.NotNil(t, h.doc.ByID("app-switcher-panel"))
	assert.NotNil(t, h.doc.QueryOne(".o_main_navbar"), "host navigation stays without a rail")
}

func TestHostChromeRemovedOnlyWhenRailReplacesIt(t *testing.T) {
	withChrome := func(o *Options) {
		o.Profile.Selectors.Navbar = ".o_main_navbar"
	}

	touch := newHarness(t, invoicePage, withChrome)
	touch.doc.SetWidth(900)
	touch.engine.Bootstrap()
	assert.NotNil(t, touch.doc.QueryOne(".o_main_navbar"))
	assert.Nil(t, touch.doc.QueryOne(".preview-rail"), "preview nodes are removed on every viewport")

	desktop := newHarness(t, invoicePage, withChrome)
	desktop.engine.Bootstrap()
	assert.Nil(t, desktop.doc.QueryOne(".o_main_navbar"))
	assert.NotNil(t, desktop.doc.ByID("app-rail"))
}

func TestOutsideRecordContextNoDashboardNoFetch(t *testing.T) {
	h := newHarness(t, `<html><head><title>Discuss</title></head><body><div class="o_content"></div></body></html>`)
	h.doc.SetLocation("https://odoo.local/web#action=mail.discuss")

	assert.Equal(t, Mounted, h.engine.Bootstrap())
	assert.Nil(t, h.doc.ByID("app-record-root"))
	assert.Equal(t, 0, h.fetcher.Calls())
	assert.True(t, h.doc.ByID("app-rail").QueryOne(`a[data-key="conversations"]`).HasClass("is-active"))
}

func TestRemountAfterHostReplacesContent(t *testing.T) {
	h := newHarness(t, invoicePage)
	h.engine.Bootstrap()
	h.runTask(t)

	h.doc.HostMutate(func() {
		h.doc.QueryOne(".o_content").SetHTML(`<div class="o_list_view"></div>`)
	})
	assert.Nil(t, h.doc.ByID("app-record-root"))

	h.engine.Bootstrap()
	assert.NotNil(t, h.doc.ByID("app-record-root"))
	assert.NotNil(t, h.doc.ByID("app-record-hub"))
}

func TestQuickFilterVisibility(t *testing.T) {
	h := newHarness(t, invoicePage)

	assert.Equal(t, 5, h.engine.ApplyQuickFilter(kpi.FilterAll))

	assert.Equal(t, 2, h.engine.ApplyQuickFilter(kpi.FilterPending))
	assert.False(t, hidden(h, "r-unpaid"))
	assert.False(t, hidden(h, "r-plain"), "rows without status stay under pending")
	assert.True(t, hidden(h, "r-paid"))
	assert.False(t, hidden(h, "r-group"), "group headers are always shown")

	assert.Equal(t, 1, h.engine.ApplyQuickFilter(kpi.FilterPaid))
	assert.False(t, hidden(h, "r-paid"))
	assert.True(t, hidden(h, "r-plain"))
	assert.True(t, hidden(h, "r-draft"))

	body := h.doc.QueryOne(".o_list_view table tbody")
	count, _ := body.Attr(VisibleCountAttr)
	assert.Equal(t, "1", count)
	assert.Equal(t, 1, h.store.Snapshot().VisibleRows)
}

func TestQuickFilterWithoutList(t *testing.T) {
	h := newHarness(t, `<html><body><div class="o_form_view"></div></body></html>`)
	assert.Equal(t, -1, h.engine.ApplyQuickFilter(kpi.FilterPaid))
}

func TestStyleBadgesIsIdempotent(t *testing.T) {
	h := newHarness(t, invoicePage)
	assert.Equal(t, 4, h.engine.StyleBadges())
	first := h.doc.HTML()
	h.engine.StyleBadges()
	assert.Equal(t, first, h.doc.HTML())

	badge := h.doc.QueryOne("#r-overdue .badge")
	assert.True(t, badge.HasClass("app-status-interactive"))
	assert.True(t, badge.HasClass("app-status-overdue"))
	assert.False(t, badge.HasClass("app-status-paid"))
	title, _ := badge.Attr("title")
	assert.Equal(t, h.store.Snapshot().Text.RuntimeBadgeFilterTitle, title)
	action, _ := badge.Attr(dom.ActionAttr)
	assert.Equal(t, ClickBadgeFilter, action)

	unpaid := h.doc.QueryOne("#r-unpaid .badge")
	assert.True(t, unpaid.HasClass("app-status-pending"))
	assert.False(t, unpaid.HasClass("app-status-paid"))
}

func TestBadgeClickSetsFilter(t *testing.T) {
	h := newHarness(t, invoicePage)
	h.engine.StyleBadges()

	h.engine.HandleEvent(dom.Event{Type: dom.EventClick, Action: ClickBadgeFilter, Value: "overdue"})
	assert.Equal(t, kpi.FilterOverdue, h.store.ActiveFilter())
	assert.True(t, hidden(h, "r-paid"))

	h.engine.HandleEvent(dom.Event{Type: dom.EventClick, Action: ClickBadgeFilter, Value: "all"})
	assert.Equal(t, kpi.FilterOverdue, h.store.ActiveFilter(), "badges never select all")

	h.engine.HandleEvent(dom.Event{Type: dom.EventClick, Action: ClickFilter, Value: "all"})
	assert.Equal(t, kpi.FilterAll, h.store.ActiveFilter(), "chips may select all")

	h.engine.HandleEvent(dom.Event{Type: dom.EventClick, Action: ClickFilter, Value: "bogus"})
	assert.Equal(t, kpi.FilterAll, h.store.ActiveFilter())
}

func TestRefreshIsThrottled(t *testing.T) {
	h := newHarness(t, invoicePage)

	assert.True(t, h.engine.Refresh())
	assert.True(t, h.store.Snapshot().Loading)
	assert.False(t, h.engine.Refresh(), "second call inside the interval")
	h.runTask(t)
	assert.False(t, h.store.Snapshot().Loading)

	h.clock.Advance(10 * time.Second)
	assert.False(t, h.engine.Refresh())
	h.clock.Advance(5 * time.Second)
	assert.True(t, h.engine.Refresh())
	h.runTask(t)
	assert.Equal(t, 2, h.fetcher.Calls())
}

func TestFailedRefreshKeepsGuardAndRows(t *testing.T) {
	h := newHarness(t, invoicePage)
	require.True(t, h.engine.Refresh())
	h.runTask(t)
	require.Len(t, h.engine.Rows(), 3)

	h.fetcher.mu.Lock()
	h.fetcher.err = &records.RemoteCallError{Op: "search_read", Code: 500, Message: "boom"}
	h.fetcher.mu.Unlock()

	h.clock.Advance(20 * time.Second)
	require.True(t, h.engine.Refresh())
	h.runTask(t)

	assert.False(t, h.store.Snapshot().Loading)
	assert.Len(t, h.engine.Rows(), 3, "cached rows survive a failure")
	assert.Equal(t, 3, h.store.Snapshot().Counts.All)
	assert.False(t, h.engine.Refresh(), "failure does not reset the guard")

	recent := h.diag.Recent()
	require.Len(t, recent, 1)
	assert.Equal(t, observability.KindRemoteCall, recent[0].Kind)
}

func TestSelfMutationsAreIgnored(t *testing.T) {
	h := newHarness(t, invoicePage)
	h.engine.HandleEvent(dom.Event{Type: dom.EventMutation, Self: true, Nodes: 3})
	assert.False(t, h.engine.sched.Pending())

	h.engine.HandleEvent(dom.Event{Type: dom.EventMutation, Nodes: 1})
	assert.True(t, h.engine.sched.Pending())
	first := h.engine.sched.Deadline()

	h.clock.Advance(10 * time.Millisecond)
	h.engine.HandleEvent(dom.Event{Type: dom.EventMutation, Nodes: 1})
	assert.True(t, h.engine.sched.Deadline().After(first))
}

func TestHashChangeSchedulesPass(t *testing.T) {
	h := newHarness(t, invoicePage)
	h.engine.HandleEvent(dom.Event{Type: dom.EventHashChange})
	require.True(t, h.engine.sched.Pending())
	assert.Equal(t, h.clock.Now().Add(DefaultHashChangeDelay), h.engine.sched.Deadline())
}

func TestKeyboardShortcuts(t *testing.T) {
	h := newHarness(t, invoicePage)
	h.engine.Bootstrap()
	h.runTask(t)

	h.engine.HandleEvent(dom.Event{Type: dom.EventKey, Key: dom.KeyEvent{Key: "/", TargetTag: "BODY"}})
	focused := h.doc.Focused()
	require.NotNil(t, focused)
	assert.True(t, focused.HasClass("o_searchview_input"))

	h.engine.HandleEvent(dom.Event{Type: dom.EventKey, Key: dom.KeyEvent{Key: "4", Alt: true}})
	assert.Equal(t, kpi.FilterPending, h.store.ActiveFilter())

	h.engine.HandleEvent(dom.Event{Type: dom.EventKey, Key: dom.KeyEvent{Key: "i", Ctrl: true, Shift: true}})
	clicks := h.doc.Clicks()
	require.Len(t, clicks, 1)
	assert.True(t, clicks[0].HasClass("o_list_button_add"))

	h.engine.HandleEvent(dom.Event{Type: dom.EventKey, Key: dom.KeyEvent{Key: "k", Ctrl: true}})
	assert.True(t, h.store.Snapshot().PaletteOpen)
	h.engine.flush()
	assert.NotNil(t, h.doc.ByID("app-command-palette"))

	h.engine.HandleEvent(dom.Event{Type: dom.EventKey, Key: dom.KeyEvent{Key: "Escape"}})
	assert.False(t, h.store.Snapshot().PaletteOpen)
	h.engine.flush()
	assert.Nil(t, h.doc.ByID("app-command-palette"))
}

func TestToggleDisabledAndDisabledMode(t *testing.T) {
	h := newHarness(t, invoicePage)
	toggle := dom.Event{Type: dom.EventKey, Key: dom.KeyEvent{Key: "U", Shift: true, Alt: true}}

	h.engine.HandleEvent(toggle)
	v, _ := h.doc.Storage().Get("appUiDisabled")
	assert.Equal(t, "1", v)
	assert.Equal(t, 1, h.doc.Reloads())

	assert.Equal(t, Unmounted, h.engine.Bootstrap())
	assert.Nil(t, h.doc.ByID("app-rail"))
	assert.Equal(t, 0, h.fetcher.Calls())

	h.engine.HandleEvent(dom.Event{Type: dom.EventKey, Key: dom.KeyEvent{Key: "3", Alt: true}})
	assert.Equal(t, kpi.FilterAll, h.store.ActiveFilter(), "shortcuts ignored while disabled")

	h.engine.HandleEvent(toggle)
	v, _ = h.doc.Storage().Get("appUiDisabled")
	assert.Equal(t, "0", v)
	assert.Equal(t, 2, h.doc.Reloads())
}

func TestFallbackWhenPresenterFails(t *testing.T) {
	h := newHarness(t, invoicePage, func(o *Options) { o.Presenter = failingPresenter{} })
	h.engine.Bootstrap()

	hub := h.doc.ByID("app-APP_UI-record-hub")
	require.NotNil(t, hub)
	btn := hub.QueryOne(".app-new-record")
	require.NotNil(t, btn)
	assert.Equal(t, h.store.Snapshot().Text.NewRecordButton, btn.Text())

	recent := h.diag.Recent()
	require.NotEmpty(t, recent)
	assert.Equal(t, observability.KindRuntime, recent[0].Kind)

	h.engine.HandleEvent(dom.Event{Type: dom.EventClick, Action: ClickNewRecord})
	require.Len(t, h.doc.Clicks(), 1)

	assert.False(t, h.engine.OpenPalette(), "no palette in fallback mode")
}

func TestFallbackWithoutPresenter(t *testing.T) {
	h := newHarness(t, invoicePage, func(o *Options) { o.Presenter = nil })
	h.engine.Bootstrap()
	assert.NotNil(t, h.doc.ByID("app-APP_UI-record-hub"))
	assert.Empty(t, h.diag.Recent(), "a missing presenter is not a failure")
}

func TestSwitcherAndRailControls(t *testing.T) {
	h := newHarness(t, invoicePage)
	h.engine.Bootstrap()
	panel := h.doc.ByID("app-switcher-panel")

	h.doc.ByID("app-switcher-btn").Click()
	h.engine.HandleEvent(lastClick(t, h.doc))
	assert.True(t, panel.HasClass("is-open"))

	h.doc.QueryOne(".app-APP_UI-switcher-grid a").Click()
	h.engine.HandleEvent(lastClick(t, h.doc))
	assert.True(t, panel.HasClass("is-open"), "clicks inside the panel keep it open")

	h.doc.QueryOne(".o_content").Click()
	h.engine.HandleEvent(lastClick(t, h.doc))
	assert.False(t, panel.HasClass("is-open"), "outside click closes the panel")

	h.doc.QueryOne(".app-APP_UI-view-all").Click()
	h.engine.HandleEvent(lastClick(t, h.doc))
	assert.Equal(t, []string{"/odoo/apps"}, h.doc.Navigations())

	h.doc.QueryOne(`[data-overlay-action="rail-collapse"]`).Click()
	h.engine.HandleEvent(lastClick(t, h.doc))
	assert.True(t, h.doc.Body().HasClass(CollapsedBodyClass))

	h.doc.QueryOne(`[data-overlay-action="rail-search"]`).Click()
	h.engine.HandleEvent(lastClick(t, h.doc))
	require.NotNil(t, h.doc.Focused())
}

func TestSwipeOnMountChangesFilter(t *testing.T) {
	h := newHarness(t, invoicePage)
	h.engine.Bootstrap()

	path := []string{"app-record-hub", "app-record-root"}
	h.engine.HandleEvent(dom.Event{Type: dom.EventTouchStart, X: 300, Y: 100, Path: path})
	h.engine.HandleEvent(dom.Event{Type: dom.EventTouchEnd, X: 200, Y: 110, Path: path})
	assert.Equal(t, kpi.FilterPaid, h.store.ActiveFilter())

	h.engine.HandleEvent(dom.Event{Type: dom.EventTouchStart, X: 300, Y: 100, Path: []string{"elsewhere"}})
	h.engine.HandleEvent(dom.Event{Type: dom.EventTouchEnd, X: 100, Y: 100, Path: []string{"elsewhere"}})
	assert.Equal(t, kpi.FilterPaid, h.store.ActiveFilter(), "touches outside the mount are ignored")
}

func TestMissingNewRecordReportedOnce(t *testing.T) {
	h := newHarness(t, `<html><body><div class="o_content"></div></body></html>`)
	assert.False(t, h.engine.NewRecord())
	assert.False(t, h.engine.NewRecord())
	recent := h.diag.Recent()
	require.Len(t, recent, 1)
	assert.Equal(t, observability.KindDom, recent[0].Kind)
}

func TestRunCoalescesAndServesPosts(t *testing.T) {
	h := newHarness(t, invoicePage, func(o *Options) {
		o.Clock = time.Now
		o.Debounce = 5 * time.Millisecond
		o.MaxWait = 20 * time.Millisecond
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.engine.Run(ctx) }()

	require.Eventually(t, func() bool {
		return h.store.Snapshot().Counts.All == 3
	}, 2*time.Second, 5*time.Millisecond)

	result := make(chan kpi.Filter, 1)
	require.NoError(t, h.engine.Post(ctx, func() { result <- h.engine.SetActiveFilter(kpi.FilterDraft) }))
	assert.Equal(t, kpi.FilterDraft, <-result)

	h.doc.HostMutate(func() {
		h.doc.QueryOne("#app-rail").Remove()
	})
	require.Eventually(t, func() bool {
		return h.doc.ByID("app-rail") != nil
	}, 2*time.Second, 5*time.Millisecond, "foreign mutation triggers a new pass")

	require.Eventually(t, func() bool {
		return strings.Contains(h.doc.HTML(), `data-active-filter="draft"`)
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.ErrorIs(t, h.engine.Post(context.Background(), func() {}), ErrStopped)
}

// lastClick pops events until the most recent click.
func lastClick(t *testing.T, doc *memdom.Document) dom.Event {
	t.Helper()
	var click dom.Event
	found := false
	for {
		select {
		case ev := <-doc.Events():
			if ev.Type == dom.EventClick {
				click, found = ev, true
			}
		default:
			require.True(t, found, "no click event")
			return click
		}
	}
}
