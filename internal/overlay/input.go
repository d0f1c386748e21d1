package overlay

import (
	"math"
	"strings"

	"github.com/odyssey-erp/invoice-overlay/internal/dom"
	"github.com/odyssey-erp/invoice-overlay/internal/kpi"
)

// ActionKind is what a key press or gesture asks the engine to do.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionFocusSearch
	ActionOpenPalette
	ActionClosePalette
	ActionNewRecord
	ActionSetFilter
	ActionToggleDisabled
)

// Action is the mapped intent of an input event.
type Action struct {
	Kind   ActionKind
	Filter kpi.Filter
}

// MinSwipeDistance is the horizontal travel a touch needs to count as a swipe.
const MinSwipeDistance = 40

// MapKey translates a keydown into an Action. filterMap maps Alt+digit keys
// to filter names.
func MapKey(k dom.KeyEvent, filterMap map[string]string) Action {
	lower := strings.ToLower(k.Key)
	switch {
	case k.Shift && k.Alt && lower == "u":
		return Action{Kind: ActionToggleDisabled}
	case k.Key == "/" && !k.Ctrl && !k.Meta && !k.Editable():
		return Action{Kind: ActionFocusSearch}
	case (k.Ctrl || k.Meta) && lower == "k":
		return Action{Kind: ActionOpenPalette}
	case k.Ctrl && k.Shift && lower == "i":
		return Action{Kind: ActionNewRecord}
	case k.Alt && isFilterDigit(k.Key):
		name, ok := filterMap[k.Key]
		if !ok || !kpi.Filter(name).Valid() {
			return Action{}
		}
		return Action{Kind: ActionSetFilter, Filter: kpi.Filter(name)}
	case k.Key == "Escape":
		return Action{Kind: ActionClosePalette}
	}
	return Action{}
}

func isFilterDigit(key string) bool {
	return len(key) == 1 && key[0] >= '1' && key[0] <= '5'
}

// SwipeTracker turns a touchstart/touchend pair into a filter step.
type SwipeTracker struct {
	startX, startY float64
	started        bool
}

// Start records the touch origin.
func (s *SwipeTracker) Start(x, y float64) {
	s.startX, s.startY = x, y
	s.started = true
}

// End returns the filter to switch to, or false when the gesture is not a
// horizontal swipe or the current filter is already at that end.
func (s *SwipeTracker) End(x, y float64, current kpi.Filter) (kpi.Filter, bool) {
	if !s.started {
		return current, false
	}
	s.started = false
	dx, dy := x-s.startX, y-s.startY
	if math.Abs(dx) < MinSwipeDistance || math.Abs(dx) < math.Abs(dy) {
		return current, false
	}
	delta := 1
	if dx > 0 {
		delta = -1
	}
	next := kpi.Step(current, delta)
	if next == current {
		return current, false
	}
	return next, true
}
