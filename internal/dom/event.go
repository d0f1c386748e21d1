package dom

import "strings"

// EventType enumerates what the host hook reports.
type EventType string

const (
	EventMutation   EventType = "mutation"
	EventKey        EventType = "key"
	EventClick      EventType = "click"
	EventTouchStart EventType = "touchstart"
	EventTouchEnd   EventType = "touchend"
	EventHashChange EventType = "hashchange"
)

// Event is one observation from the page.
type Event struct {
	Type EventType `json:"type"`
	// Self is set on mutations whose nodes were all written or removed
	// by the overlay.
	Self bool `json:"self,omitempty"`
	// Nodes is the number of nodes touched by a mutation batch.
	Nodes int      `json:"nodes,omitempty"`
	Key   KeyEvent `json:"key"`
	// Action and Value come from the closest ActionAttr ancestor of a
	// click target.
	Action string `json:"action,omitempty"`
	Value  string `json:"value,omitempty"`
	// Path lists the ids of the target and its ancestors, innermost first.
	Path []string `json:"path,omitempty"`
	X    float64  `json:"x,omitempty"`
	Y    float64  `json:"y,omitempty"`
}

// KeyEvent is a keydown on the window.
type KeyEvent struct {
	Key       string `json:"key"`
	Ctrl      bool   `json:"ctrl"`
	Meta      bool   `json:"meta"`
	Shift     bool   `json:"shift"`
	Alt       bool   `json:"alt"`
	TargetTag string `json:"tag"`
}

// Editable reports whether the key was typed into a text field.
func (k KeyEvent) Editable() bool {
	switch strings.ToUpper(k.TargetTag) {
	case "INPUT", "TEXTAREA":
		return true
	}
	return false
}

// Within reports whether id appears on the event path.
func (e Event) Within(id string) bool {
	if id == "" {
		return false
	}
	for _, p := range e.Path {
		if p == id {
			return true
		}
	}
	return false
}
