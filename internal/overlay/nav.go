package overlay

import (
	"fmt"

	"github.com/odyssey-erp/invoice-overlay/internal/dom"
	"github.com/odyssey-erp/invoice-overlay/internal/i18n"
	"github.com/odyssey-erp/invoice-overlay/internal/observability"
	"github.com/odyssey-erp/invoice-overlay/internal/profile"
)

// Delegated click actions written on overlay controls.
const (
	ClickSwitcherToggle = "switcher-toggle"
	ClickRailSearch     = "rail-search"
	ClickRailCollapse   = "rail-collapse"
	ClickViewAll        = "view-all"
	ClickFilter         = "filter"
	ClickBadgeFilter    = "badge-filter"
	ClickNewRecord      = "new-record"
	ClickPaletteClose   = "palette-close"
)

// Classes applied to host and overlay elements.
const (
	ActiveBodyClass    = "app-neural-active"
	CollapsedBodyClass = "app-APP_UI-rail-collapsed"
	railClass          = "app-APP_UI-rail"
	switcherClass      = "app-APP_UI-switcher-panel"
	openClass          = "is-open"
	activeLinkClass    = "is-active"
)

type navLink struct {
	Key    string
	Label  string
	Href   string
	Icon   string
	Active bool
}

type navData struct {
	SwitcherButtonID string
	Text             i18n.UiText
	Apps             []navLink
}

func appLabel(app profile.RailApp, text i18n.UiText) string {
	if label := text.NavApps[app.Key]; label != "" {
		return label
	}
	if app.Label != "" {
		return app.Label
	}
	return app.Key
}

func (e *Engine) navData(withActive bool) navData {
	text := e.store.Snapshot().Text
	data := navData{SwitcherButtonID: e.profile.UI.SwitcherButtonID, Text: text}
	for _, app := range e.profile.Navigation.RailApps {
		link := navLink{Key: app.Key, Label: appLabel(app, text), Href: app.Href, Icon: app.Icon}
		if withActive {
			link.Active = AppActive(e.doc, e.profile, app)
		}
		data.Apps = append(data.Apps, link)
	}
	return data
}

// RemoveStale removes the first match of every stale host selector. Host
// navigation is kept on touch-like viewports, which get no rail.
func (e *Engine) RemoveStale() int {
	removed := 0
	for _, sel := range e.profile.StaleSelectors(!TouchLike(e.doc, e.profile)) {
		if el := e.doc.QueryOne(sel); el != nil {
			el.Remove()
			removed++
		}
	}
	return removed
}

// EnsureRail injects the navigation rail once. Touch-like viewports get no
// rail. It reports whether a rail was created.
func (e *Engine) EnsureRail() (bool, error) {
	if TouchLike(e.doc, e.profile) {
		return false, nil
	}
	if e.doc.ByID(e.profile.UI.RailID) != nil {
		return false, nil
	}
	body := e.doc.Body()
	if body == nil {
		return false, nil
	}
	markup, err := e.templates.RenderString("rail", e.navData(true))
	if err != nil {
		return false, fmt.Errorf("overlay: render rail: %w", err)
	}
	body.ToggleClass(ActiveBodyClass, true)

	rail := e.doc.Create("aside")
	rail.SetAttr("id", e.profile.UI.RailID)
	rail.SetAttr("class", railClass)
	rail.SetHTML(markup)
	body.Append(rail)
	return true, nil
}

// EnsureSwitcherPanel injects the app switcher panel once.
func (e *Engine) EnsureSwitcherPanel() (bool, error) {
	if e.doc.ByID(e.profile.UI.SwitcherPanelID) != nil {
		return false, nil
	}
	body := e.doc.Body()
	if body == nil {
		return false, nil
	}
	markup, err := e.templates.RenderString("switcher", e.navData(false))
	if err != nil {
		return false, fmt.Errorf("overlay: render switcher: %w", err)
	}
	panel := e.doc.Create("div")
	panel.SetAttr("id", e.profile.UI.SwitcherPanelID)
	panel.SetAttr("class", switcherClass)
	panel.SetHTML(markup)
	body.Append(panel)
	return true, nil
}

// MarkActiveIcons flags the rail links whose app matches the current page.
func (e *Engine) MarkActiveIcons() {
	rail := e.doc.ByID(e.profile.UI.RailID)
	if rail == nil || e.profile.Selectors.RailLinks == "" {
		return
	}
	apps := make(map[string]profile.RailApp, len(e.profile.Navigation.RailApps))
	for _, app := range e.profile.Navigation.RailApps {
		apps[app.Key] = app
	}
	for _, link := range rail.QueryAll(e.profile.Selectors.RailLinks) {
		app, ok := apps[dom.Data(link, "key")]
		if !ok {
			continue
		}
		link.ToggleClass(activeLinkClass, AppActive(e.doc, e.profile, app))
	}
}

// ToggleSwitcher opens or closes the switcher panel, creating it if needed.
func (e *Engine) ToggleSwitcher() {
	if _, err := e.EnsureSwitcherPanel(); err != nil {
		e.report(observability.KindRuntime, "switcher", err)
		return
	}
	panel := e.doc.ByID(e.profile.UI.SwitcherPanelID)
	if panel == nil {
		return
	}
	panel.ToggleClass(openClass, !panel.HasClass(openClass))
}

// closeSwitcherOnOutsideClick closes an open switcher when the click
// landed outside both the panel and its button.
func (e *Engine) closeSwitcherOnOutsideClick(ev dom.Event) {
	ui := e.profile.UI
	if ev.Within(ui.SwitcherPanelID) || ev.Within(ui.SwitcherButtonID) {
		return
	}
	open := e.profile.Selectors.SwitcherOpen
	if open == "" || e.doc.QueryOne(open) == nil {
		return
	}
	if panel := e.doc.ByID(ui.SwitcherPanelID); panel != nil {
		panel.ToggleClass(openClass, false)
	}
}

// ToggleRailCollapsed flips the collapsed rail class on the body.
func (e *Engine) ToggleRailCollapsed() {
	body := e.doc.Body()
	if body == nil {
		return
	}
	body.ToggleClass(CollapsedBodyClass, !body.HasClass(CollapsedBodyClass))
}
