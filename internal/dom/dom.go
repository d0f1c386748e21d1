// Package dom abstracts the host page. The engine picks one Document
// implementation at startup: memdom for tests and offline snapshots,
// roddom for a live browser tab.
//
// Lookups never fail loudly. A missing node is a nil Element and
// operations on detached nodes are no-ops.
package dom

// Attribute names shared by every implementation.
const (
	// OwnedAttr tags nodes created by the overlay with the engine token.
	OwnedAttr = "data-overlay-owned"
	// ActionAttr names the delegated click action of an overlay control.
	ActionAttr = "data-overlay-action"
	// ValueAttr carries the argument of ActionAttr.
	ValueAttr = "data-overlay-value"
)

// Element is a node in the host document.
type Element interface {
	ID() string
	Tag() string
	Text() string
	Attr(name string) (string, bool)
	SetAttr(name, value string)
	RemoveAttr(name string)
	HasClass(name string) bool
	ToggleClass(name string, on bool)
	QueryOne(selector string) Element
	QueryAll(selector string) []Element
	Append(child Element)
	Prepend(child Element)
	Remove()
	SetHTML(markup string)
	SetText(text string)
	Focus()
	Click()
}

// Storage is the page's persistent key/value store.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// Document is the host page.
type Document interface {
	QueryOne(selector string) Element
	QueryAll(selector string) []Element
	ByID(id string) Element
	Body() Element
	// Create returns a detached element tagged as owned by the overlay.
	Create(tag string) Element
	// Location is the href followed by the hash fragment.
	Location() string
	Title() string
	ViewportWidth() int
	Storage() Storage
	Navigate(href string)
	Reload()
	// Events delivers host and overlay events until the document closes.
	Events() <-chan Event
}

// Data returns the value of a data-* attribute.
func Data(el Element, name string) string {
	if el == nil {
		return ""
	}
	v, _ := el.Attr("data-" + name)
	return v
}

// SetData writes a data-* attribute.
func SetData(el Element, name, value string) {
	if el == nil {
		return
	}
	el.SetAttr("data-"+name, value)
}

// Bind marks el as a delegated control: clicks on it or its children are
// reported as a ClickEvent carrying action and value.
func Bind(el Element, action, value string) {
	if el == nil {
		return
	}
	el.SetAttr(ActionAttr, action)
	if value != "" {
		el.SetAttr(ValueAttr, value)
	}
}
