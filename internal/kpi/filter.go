// Package kpi classifies invoice rows into status buckets and derives the
// dashboard figures for the active filter.
package kpi

// Filter names a status bucket.
type Filter string

const (
	FilterAll     Filter = "all"
	FilterPaid    Filter = "paid"
	FilterOverdue Filter = "overdue"
	FilterPending Filter = "pending"
	FilterDraft   Filter = "draft"
)

// Order is the fixed filter sequence used by chips, swipes and shortcuts.
var Order = []Filter{FilterAll, FilterPaid, FilterOverdue, FilterPending, FilterDraft}

// StatusFilters are the filters that map to a badge class.
var StatusFilters = []Filter{FilterPaid, FilterOverdue, FilterPending, FilterDraft}

// Valid reports whether f is part of Order.
func (f Filter) Valid() bool {
	return IndexOf(f) >= 0
}

// ParseFilter maps an arbitrary name to a Filter, defaulting to FilterAll.
func ParseFilter(name string) Filter {
	f := Filter(name)
	if f.Valid() {
		return f
	}
	return FilterAll
}

// IndexOf returns the position of f in Order or -1.
func IndexOf(f Filter) int {
	for i, candidate := range Order {
		if candidate == f {
			return i
		}
	}
	return -1
}

// Step moves delta positions along Order, clamped at both ends.
func Step(f Filter, delta int) Filter {
	idx := IndexOf(f)
	if idx < 0 {
		idx = 0
	}
	idx += delta
	if idx < 0 {
		idx = 0
	}
	if idx >= len(Order) {
		idx = len(Order) - 1
	}
	return Order[idx]
}
