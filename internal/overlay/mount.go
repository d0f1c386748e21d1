package overlay

import (
	"errors"
	"fmt"
	"html"

	"github.com/odyssey-erp/invoice-overlay/internal/dom"
	"github.com/odyssey-erp/invoice-overlay/internal/i18n"
	"github.com/odyssey-erp/invoice-overlay/internal/observability"
)

// mountedAttr marks a mount element that already holds the dashboard. Its
// value says who drew it.
const mountedAttr = "data-overlay-mounted"

const (
	mountedPresenter = "presenter"
	mountedFallback  = "fallback"
)

var errNoPresenter = errors.New("overlay: no presenter configured")

// MountState summarises which overlay parts are on the page.
type MountState int

const (
	Unmounted MountState = iota
	PartiallyMounted
	Mounted
)

func (s MountState) String() string {
	switch s {
	case PartiallyMounted:
		return "partially_mounted"
	case Mounted:
		return "mounted"
	default:
		return "unmounted"
	}
}

// mountPoint returns the dashboard wrapper, creating it at the top of the
// content area. Outside invoice pages there is no mount point.
func (e *Engine) mountPoint() dom.Element {
	if !InRecordContext(e.doc, e.profile) {
		return nil
	}
	content := e.doc.QueryOne(e.profile.Selectors.ContentRoot)
	if content == nil {
		e.unavailable("content_root", e.profile.Selectors.ContentRoot)
		return nil
	}
	e.available("content_root")
	wrapper := e.doc.ByID(e.profile.UI.MountID)
	if wrapper == nil {
		wrapper = e.doc.Create("div")
		wrapper.SetAttr("id", e.profile.UI.MountID)
		content.Prepend(wrapper)
	}
	return wrapper
}

// Mount draws the dashboard into a fresh mount point. A wrapper that already
// carries the mounted marker is left alone, so the host recreating the
// content area leads to exactly one remount.
func (e *Engine) Mount() bool {
	wrapper := e.mountPoint()
	if wrapper == nil {
		return false
	}
	if dom.Data(wrapper, "overlay-mounted") != "" {
		return true
	}
	e.bindGestures(wrapper)

	st := e.store.Snapshot()
	err := errNoPresenter
	if e.presenter != nil {
		err = e.presenter.Mount(wrapper, st)
	}
	if err == nil {
		wrapper.SetAttr(mountedAttr, mountedPresenter)
		e.presented = true
		return true
	}
	if e.presenter != nil {
		e.report(observability.KindRuntime, "mount", err)
	}
	wrapper.SetHTML(fallbackMarkup(st.Text))
	wrapper.SetAttr(mountedAttr, mountedFallback)
	e.presented = false
	return true
}

func (e *Engine) bindGestures(wrapper dom.Element) {
	flag := e.profile.UI.GestureBoundFlag
	if dom.Data(wrapper, flag) == "1" {
		return
	}
	dom.SetData(wrapper, flag, "1")
}

// gesturesBound reports whether touch events on the mount drive the filter.
func (e *Engine) gesturesBound() bool {
	wrapper := e.doc.ByID(e.profile.UI.MountID)
	return wrapper != nil && dom.Data(wrapper, e.profile.UI.GestureBoundFlag) == "1"
}

// fallbackMarkup is the static dashboard shown when no presenter can run.
func fallbackMarkup(text i18n.UiText) string {
	return fmt.Sprintf(
		`<section id="app-APP_UI-record-hub"><div class="app-head"><div><h2>%s</h2><p class="app-sub">%s</p></div><button type="button" class="app-new-record" %s="%s">%s</button></div></section>`,
		html.EscapeString(text.RuntimeFallbackTitle),
		html.EscapeString(text.RuntimeFallbackSubtitle),
		dom.ActionAttr, ClickNewRecord,
		html.EscapeString(text.NewRecordButton),
	)
}

// MountState derives the mount state from the parts the page should carry.
func (e *Engine) MountState() MountState {
	expected, present := 1, 0
	if e.doc.ByID(e.profile.UI.SwitcherPanelID) != nil {
		present++
	}
	if !TouchLike(e.doc, e.profile) {
		expected++
		if e.doc.ByID(e.profile.UI.RailID) != nil {
			present++
		}
	}
	if InRecordContext(e.doc, e.profile) {
		expected++
		if w := e.doc.ByID(e.profile.UI.MountID); w != nil && dom.Data(w, "overlay-mounted") != "" {
			present++
		}
	}
	switch {
	case present == 0:
		return Unmounted
	case present < expected:
		return PartiallyMounted
	default:
		return Mounted
	}
}
