package memdom

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/odyssey-erp/invoice-overlay/internal/dom"
)

type element struct {
	doc *Document
	n   *html.Node
}

var _ dom.Element = (*element)(nil)

func (e *element) ID() string {
	v, _ := e.Attr("id")
	return v
}

func (e *element) Tag() string {
	return strings.ToUpper(e.n.Data)
}

func (e *element) Text() string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return textOf(e.n)
}

func (e *element) Attr(name string) (string, bool) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return attr(e.n, name)
}

func (e *element) SetAttr(name, value string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	setAttr(e.n, name, value)
}

func (e *element) RemoveAttr(name string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	removeAttr(e.n, name)
}

func (e *element) HasClass(name string) bool {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	for _, c := range classes(e.n) {
		if c == name {
			return true
		}
	}
	return false
}

func (e *element) ToggleClass(name string, on bool) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	current := classes(e.n)
	next := make([]string, 0, len(current)+1)
	found := false
	for _, c := range current {
		if c == name {
			found = true
			if !on {
				continue
			}
		}
		next = append(next, c)
	}
	if on && !found {
		next = append(next, name)
	}
	if len(next) == 0 {
		removeAttr(e.n, "class")
		return
	}
	setAttr(e.n, "class", strings.Join(next, " "))
}

func (e *element) QueryOne(selector string) dom.Element {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.doc.wrap(e.doc.queryOne(e.n, selector))
}

func (e *element) QueryAll(selector string) []dom.Element {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.doc.wrapAll(e.doc.queryAll(e.n, selector))
}

func (e *element) Append(child dom.Element) {
	c, ok := child.(*element)
	if !ok || c == nil || c.doc != e.doc || c.n == e.n {
		return
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	detach(c.n)
	e.n.AppendChild(c.n)
	e.doc.mutated(1)
}

func (e *element) Prepend(child dom.Element) {
	c, ok := child.(*element)
	if !ok || c == nil || c.doc != e.doc || c.n == e.n {
		return
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	detach(c.n)
	if e.n.FirstChild == nil {
		e.n.AppendChild(c.n)
	} else {
		e.n.InsertBefore(c.n, e.n.FirstChild)
	}
	e.doc.mutated(1)
}

func (e *element) Remove() {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if e.n.Parent == nil {
		return
	}
	detach(e.n)
	e.doc.mutated(1)
}

func (e *element) SetHTML(markup string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	removed := clearChildren(e.n)
	nodes, err := html.ParseFragment(strings.NewReader(markup), e.n)
	if err != nil {
		nodes = nil
	}
	for _, n := range nodes {
		e.n.AppendChild(n)
	}
	e.doc.mutated(removed + len(nodes))
}

func (e *element) SetText(text string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	removed := clearChildren(e.n)
	e.n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	e.doc.mutated(removed + 1)
}

func (e *element) Focus() {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	e.doc.focused = e.n
}

// Click records the click and reports it the way the page hook would.
func (e *element) Click() {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	e.doc.clicks = append(e.doc.clicks, e.n)
	ev := dom.Event{Type: dom.EventClick}
	for n := e.n; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		if id, ok := attr(n, "id"); ok && id != "" {
			ev.Path = append(ev.Path, id)
		}
		if ev.Action == "" {
			if action, ok := attr(n, dom.ActionAttr); ok {
				ev.Action = action
				ev.Value, _ = attr(n, dom.ValueAttr)
			}
		}
	}
	e.doc.emit(ev)
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, name, value string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

func removeAttr(n *html.Node, name string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			continue
		}
		out = append(out, a)
	}
	n.Attr = out
}

func classes(n *html.Node) []string {
	v, _ := attr(n, "class")
	return strings.Fields(v)
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func findNode(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, match); found != nil {
			return found
		}
	}
	return nil
}

func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

func clearChildren(n *html.Node) int {
	removed := 0
	for c := n.FirstChild; c != nil; c = n.FirstChild {
		n.RemoveChild(c)
		removed++
	}
	return removed
}
