package overlay

import (
	"strconv"

	"github.com/odyssey-erp/invoice-overlay/internal/dom"
	"github.com/odyssey-erp/invoice-overlay/internal/kpi"
	"github.com/odyssey-erp/invoice-overlay/internal/state"
)

// VisibleCountAttr is written on the list body after each projection.
const VisibleCountAttr = "data-overlay-visible-count"

// Badge classes.
const (
	badgeInteractiveClass = "app-status-interactive"
	badgeStatusPrefix     = "app-status-"
)

// listBody returns the list table body, trying the fallback selector next.
func (e *Engine) listBody() dom.Element {
	sel := e.profile.Selectors
	if body := e.doc.QueryOne(sel.ListTableBody); body != nil {
		return body
	}
	if sel.ListTableBodyFallback == "" {
		return nil
	}
	return e.doc.QueryOne(sel.ListTableBodyFallback)
}

// rowFilter infers the status of a list row from its first status node.
func (e *Engine) rowFilter(row dom.Element) kpi.Filter {
	node := row.QueryOne(e.profile.Selectors.StatusTextNode)
	if node == nil {
		return kpi.FilterAll
	}
	return kpi.InferFilter(node.Text())
}

func (e *Engine) isGroupRow(row dom.Element) bool {
	for _, class := range e.profile.GroupRowClasses {
		if row.HasClass(class) {
			return true
		}
	}
	return false
}

// rowVisible keeps rows without a recognised status under the pending filter.
func rowVisible(active, row kpi.Filter) bool {
	return active == kpi.FilterAll || row == active || (active == kpi.FilterPending && row == kpi.FilterAll)
}

// ApplyQuickFilter hides list rows that do not match active. It returns
// the number of visible data rows, or -1 when no list is on the page.
func (e *Engine) ApplyQuickFilter(active kpi.Filter) int {
	body := e.listBody()
	if body == nil {
		return -1
	}

	hidden := e.profile.UI.RowHiddenClass
	visible := 0
	for _, row := range body.QueryAll(e.profile.Selectors.ListTableRows) {
		if e.isGroupRow(row) {
			row.ToggleClass(hidden, false)
			continue
		}
		show := rowVisible(active, e.rowFilter(row))
		row.ToggleClass(hidden, !show)
		if show {
			visible++
		}
	}
	body.SetAttr(VisibleCountAttr, strconv.Itoa(visible))
	e.metrics.SetVisibleRows(visible)
	e.store.Update(func(st *state.UiState) { st.VisibleRows = visible })
	return visible
}

// StyleBadges classifies every status badge and binds the filter action
// on badges seen for the first time.
func (e *Engine) StyleBadges() int {
	badges := e.doc.QueryAll(e.profile.Selectors.StatusBadges)
	flag := e.profile.UI.BadgeBoundFlag
	title := e.store.Snapshot().Text.RuntimeBadgeFilterTitle
	for _, badge := range badges {
		filter := kpi.InferFilter(badge.Text())
		badge.ToggleClass(badgeInteractiveClass, true)
		for _, f := range kpi.StatusFilters {
			badge.ToggleClass(badgeStatusPrefix+string(f), f == filter)
		}
		if dom.Data(badge, flag) == "" {
			dom.SetData(badge, flag, "1")
			badge.SetAttr("title", title)
			dom.Bind(badge, ClickBadgeFilter, "")
		}
		// Status text can change under a bound badge; the value follows it.
		badge.SetAttr(dom.ValueAttr, string(filter))
	}
	return len(badges)
}
