package view

import (
	"bytes"
	"fmt"
	"html/template"
	"sync"

	"github.com/odyssey-erp/invoice-overlay/internal/dom"
	"github.com/odyssey-erp/invoice-overlay/internal/kpi"
	"github.com/odyssey-erp/invoice-overlay/internal/profile"
	"github.com/odyssey-erp/invoice-overlay/internal/state"
	"github.com/odyssey-erp/invoice-overlay/web"
)

// Engine renders the overlay templates.
type Engine struct {
	templates *template.Template
}

// Chip is one filter button.
type Chip struct {
	Name   string
	Label  string
	Count  int
	Active bool
}

// AppLink is a navigation entry shown in the palette.
type AppLink struct {
	Key   string
	Label string
	Href  string
	Icon  string
}

// DashboardData is the root value of the dashboard template.
type DashboardData struct {
	State state.UiState
	Chips []Chip
	Apps  []AppLink
}

type kpiCard struct {
	Label  string
	Amount string
	Count  int
	Suffix string
	Tone   string
}

// NewEngine parses templates at build-time.
func NewEngine() (*Engine, error) {
	funcMap := template.FuncMap{
		"icon": profile.IconClass,
		"kpiCard": func(label, amount string, count int, suffix, tone string) kpiCard {
			return kpiCard{Label: label, Amount: amount, Count: count, Suffix: suffix, Tone: tone}
		},
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates, "templates/overlay/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// RenderString executes a named template into a string.
func (e *Engine) RenderString(name string, data any) (string, error) {
	if e == nil {
		return "", fmt.Errorf("template engine not initialised")
	}
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Presenter writes the dashboard into the mount element.
type Presenter struct {
	engine *Engine
	apps   []AppLink

	mu   sync.Mutex
	last string
}

// NewPresenter builds a presenter listing the given rail apps in the palette.
func NewPresenter(engine *Engine, apps []profile.RailApp) *Presenter {
	return &Presenter{engine: engine, apps: appLinks(apps, nil)}
}

// Mount renders the first frame.
func (p *Presenter) Mount(root dom.Element, st state.UiState) error {
	p.mu.Lock()
	p.last = ""
	p.mu.Unlock()
	return p.Render(root, st)
}

// Render redraws the dashboard; unchanged markup is not rewritten.
func (p *Presenter) Render(root dom.Element, st state.UiState) error {
	if root == nil {
		return fmt.Errorf("view: no mount element")
	}
	data := DashboardData{
		State: st,
		Chips: Chips(st),
		Apps:  appLinks(nil, p.apps),
	}
	for i := range data.Apps {
		if label := st.Text.NavApps[data.Apps[i].Key]; label != "" {
			data.Apps[i].Label = label
		}
	}
	markup, err := p.engine.RenderString("dashboard", data)
	if err != nil {
		return fmt.Errorf("view: render dashboard: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if markup == p.last {
		return nil
	}
	root.SetHTML(markup)
	p.last = markup
	return nil
}

// Chips lists the filters in order with their counts.
func Chips(st state.UiState) []Chip {
	chips := make([]Chip, 0, len(kpi.Order))
	for _, f := range kpi.Order {
		chips = append(chips, Chip{
			Name:   string(f),
			Label:  st.Text.FilterLabel(string(f)),
			Count:  st.Counts.Get(f),
			Active: st.ActiveFilter == f,
		})
	}
	return chips
}

func appLinks(apps []profile.RailApp, links []AppLink) []AppLink {
	out := make([]AppLink, 0, len(apps)+len(links))
	for _, app := range apps {
		label := app.Label
		if label == "" {
			label = app.Key
		}
		out = append(out, AppLink{Key: app.Key, Label: label, Href: app.Href, Icon: app.Icon})
	}
	return append(out, links...)
}
