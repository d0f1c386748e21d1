package roddom

import "github.com/odyssey-erp/invoice-overlay/internal/dom"

// element is a handle into the hook's node registry.
type element struct {
	doc *Document
	h   int64
}

var _ dom.Element = (*element)(nil)

func (e *element) op(out any, name string, args ...any) bool {
	return e.doc.call(out, "el", append([]any{e.h, name}, args...)...)
}

func (e *element) ID() string {
	var s string
	e.op(&s, "id")
	return s
}

func (e *element) Tag() string {
	var s string
	e.op(&s, "tag")
	return s
}

func (e *element) Text() string {
	var s string
	e.op(&s, "text")
	return s
}

func (e *element) Attr(name string) (string, bool) {
	var v []string
	if !e.op(&v, "attr", name) || len(v) == 0 {
		return "", false
	}
	return v[0], true
}

func (e *element) SetAttr(name, value string) { e.op(nil, "setAttr", name, value) }

func (e *element) RemoveAttr(name string) { e.op(nil, "removeAttr", name) }

func (e *element) HasClass(name string) bool {
	var ok bool
	e.op(&ok, "hasClass", name)
	return ok
}

func (e *element) ToggleClass(name string, on bool) { e.op(nil, "toggleClass", name, on) }

func (e *element) QueryOne(selector string) dom.Element {
	return e.doc.handle("q", e.h, selector)
}

func (e *element) QueryAll(selector string) []dom.Element {
	return e.doc.handles("qa", e.h, selector)
}

func (e *element) Append(child dom.Element) {
	if c, ok := child.(*element); ok && c != nil {
		e.op(nil, "append", c.h)
	}
}

func (e *element) Prepend(child dom.Element) {
	if c, ok := child.(*element); ok && c != nil {
		e.op(nil, "prepend", c.h)
	}
}

func (e *element) Remove() { e.op(nil, "remove") }

func (e *element) SetHTML(markup string) { e.op(nil, "html", markup) }

func (e *element) SetText(text string) { e.op(nil, "setText", text) }

func (e *element) Focus() { e.op(nil, "focus") }

func (e *element) Click() { e.op(nil, "click") }
