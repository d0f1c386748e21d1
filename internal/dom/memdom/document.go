// Package memdom is an in-memory dom.Document over golang.org/x/net/html.
// It backs the engine tests and the offline snapshot renderer.
package memdom

import (
	"fmt"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/odyssey-erp/invoice-overlay/internal/dom"
)

// DefaultWidth is a desktop viewport, wider than any touch breakpoint.
const DefaultWidth = 1440

// Options configures a Document.
type Options struct {
	URL    string
	Width  int
	Owner  string
	Buffer int
}

// Document is a parsed page plus the browser state the overlay touches.
type Document struct {
	mu        sync.Mutex
	root      *html.Node
	url       string
	width     int
	owner     string
	host      bool
	focused   *html.Node
	clicks    []*html.Node
	navigated []string
	reloads   int
	storage   *storage
	selectors map[string]cascadia.Selector
	events    chan dom.Event
}

var _ dom.Document = (*Document)(nil)

// Parse builds a Document from markup.
func Parse(markup string, opts Options) (*Document, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("memdom: parse: %w", err)
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Owner == "" {
		opts.Owner = "memdom"
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 256
	}
	return &Document{
		root:      root,
		url:       opts.URL,
		width:     opts.Width,
		owner:     opts.Owner,
		storage:   &storage{values: map[string]string{}},
		selectors: map[string]cascadia.Selector{},
		events:    make(chan dom.Event, opts.Buffer),
	}, nil
}

// MustParse is Parse for fixtures.
func MustParse(markup string, opts Options) *Document {
	doc, err := Parse(markup, opts)
	if err != nil {
		panic(err)
	}
	return doc
}

func (d *Document) QueryOne(selector string) dom.Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.wrap(d.queryOne(d.root, selector))
}

func (d *Document) QueryAll(selector string) []dom.Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.wrapAll(d.queryAll(d.root, selector))
}

func (d *Document) ByID(id string) dom.Element {
	if id == "" {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.wrap(findNode(d.root, func(n *html.Node) bool {
		v, ok := attr(n, "id")
		return ok && v == id
	}))
}

func (d *Document) Body() dom.Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.wrap(findNode(d.root, func(n *html.Node) bool { return n.DataAtom == atom.Body }))
}

func (d *Document) Create(tag string) dom.Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
	if !d.host {
		setAttr(n, dom.OwnedAttr, d.owner)
	}
	return &element{doc: d, n: n}
}

func (d *Document) Location() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url
}

func (d *Document) Title() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := findNode(d.root, func(n *html.Node) bool { return n.DataAtom == atom.Title })
	if n == nil {
		return ""
	}
	return textOf(n)
}

func (d *Document) ViewportWidth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.width
}

func (d *Document) Storage() dom.Storage { return d.storage }

func (d *Document) Navigate(href string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.navigated = append(d.navigated, href)
}

func (d *Document) Reload() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reloads++
}

func (d *Document) Events() <-chan dom.Event { return d.events }

// HostMutate runs fn as the host application. Mutations made inside fn
// are reported as foreign and created nodes are not tagged as owned.
func (d *Document) HostMutate(fn func()) {
	d.mu.Lock()
	d.host = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.host = false
		d.mu.Unlock()
	}()
	fn()
}

// Dispatch injects an event as if the page hook had reported it.
func (d *Document) Dispatch(ev dom.Event) {
	d.events <- ev
}

// SetLocation changes the href reported by Location.
func (d *Document) SetLocation(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.url = url
}

// SetWidth changes the viewport width.
func (d *Document) SetWidth(width int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.width = width
}

// Focused returns the element that last received focus.
func (d *Document) Focused() dom.Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.wrap(d.focused)
}

// Clicks returns every element clicked programmatically, in order.
func (d *Document) Clicks() []dom.Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.wrapAll(d.clicks)
}

// Navigations returns the hrefs passed to Navigate.
func (d *Document) Navigations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.navigated...)
}

// Reloads counts calls to Reload.
func (d *Document) Reloads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reloads
}

// HTML renders the current tree.
func (d *Document) HTML() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var b strings.Builder
	_ = html.Render(&b, d.root)
	return b.String()
}

// Same reports whether a and b wrap the same node.
func Same(a, b dom.Element) bool {
	ea, ok1 := a.(*element)
	eb, ok2 := b.(*element)
	return ok1 && ok2 && ea.n == eb.n
}

func (d *Document) wrap(n *html.Node) dom.Element {
	if n == nil {
		return nil
	}
	return &element{doc: d, n: n}
}

func (d *Document) wrapAll(nodes []*html.Node) []dom.Element {
	out := make([]dom.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &element{doc: d, n: n})
	}
	return out
}

func (d *Document) compile(selector string) cascadia.Selector {
	if sel, ok := d.selectors[selector]; ok {
		return sel
	}
	sel, err := cascadia.Compile(selector)
	if err != nil {
		sel = nil
	}
	d.selectors[selector] = sel
	return sel
}

func (d *Document) queryOne(root *html.Node, selector string) *html.Node {
	sel := d.compile(selector)
	if sel == nil {
		return nil
	}
	return cascadia.Query(root, sel)
}

func (d *Document) queryAll(root *html.Node, selector string) []*html.Node {
	sel := d.compile(selector)
	if sel == nil {
		return nil
	}
	return cascadia.QueryAll(root, sel)
}

// emit is called with mu held.
func (d *Document) emit(ev dom.Event) {
	select {
	case d.events <- ev:
	default:
	}
}

func (d *Document) mutated(nodes int) {
	d.emit(dom.Event{Type: dom.EventMutation, Self: !d.host, Nodes: nodes})
}

type storage struct {
	mu     sync.Mutex
	values map[string]string
}

func (s *storage) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *storage) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}
