// Package state owns the overlay's UI state. A Store is built once per
// engine and handed to every component that reads or mutates it.
package state

import (
	"sync"
	"time"

	"github.com/odyssey-erp/invoice-overlay/internal/i18n"
	"github.com/odyssey-erp/invoice-overlay/internal/kpi"
)

// Checklist item identifiers.
const (
	CheckSearch = "search"
	CheckNew    = "new"
	CheckList   = "list"
	CheckStatus = "status"
)

// ChecklistItem is one operational readiness check.
type ChecklistItem struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	OK    bool   `json:"ok"`
}

// UiState is everything the presenter renders.
type UiState struct {
	Loading            bool            `json:"loading"`
	ActiveFilter       kpi.Filter      `json:"active_filter"`
	Tip                string          `json:"tip"`
	Checklist          []ChecklistItem `json:"checklist"`
	ChecklistOpen      bool            `json:"checklist_open"`
	ChecklistCompleted int             `json:"checklist_completed"`
	PaletteOpen        bool            `json:"palette_open"`
	KPIs               kpi.Card        `json:"kpis"`
	Raw                kpi.Snapshot    `json:"raw"`
	Counts             kpi.Counts      `json:"counts"`
	Text               i18n.UiText     `json:"text"`
	VisibleRows        int             `json:"visible_rows"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Probe reports whether a host feature is currently present.
type Probe func(id string) bool

// Listener receives a copy of the state after every update.
type Listener func(UiState)

// Options configures a Store.
type Options struct {
	Filter kpi.Filter
	// Card seeds the KPI strings before the first fetch.
	Card  kpi.Card
	Clock func() time.Time
}

// Store guards the UiState. Writers go through Update; readers on other
// goroutines use Snapshot.
type Store struct {
	mu        sync.RWMutex
	state     UiState
	clock     func() time.Time
	nextID    int
	listeners map[int]Listener
}

// New constructs the state with the resolved text and the initial filter.
func New(text i18n.UiText, opts Options) *Store {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	s := &Store{
		clock:     clock,
		listeners: make(map[int]Listener),
	}
	s.state = UiState{
		ActiveFilter: kpi.ParseFilter(string(opts.Filter)),
		Tip:          text.TipKeyboardShortcuts,
		Checklist:    checklistItems(text, nil),
		Text:         text,
		KPIs:         opts.Card,
	}
	return s
}

// Update applies fn under the write lock and notifies subscribers.
func (s *Store) Update(fn func(*UiState)) UiState {
	s.mu.Lock()
	fn(&s.state)
	s.state.ActiveFilter = kpi.ParseFilter(string(s.state.ActiveFilter))
	s.state.UpdatedAt = s.clock()
	snap := s.copyLocked()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
	return snap
}

// Snapshot returns a copy safe to use without the lock.
func (s *Store) Snapshot() UiState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

// ActiveFilter returns the current filter.
func (s *Store) ActiveFilter() kpi.Filter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ActiveFilter
}

// Subscribe registers fn; the returned func removes it.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// RefreshChecklist rebuilds the checklist from probe results.
func (s *Store) RefreshChecklist(probe Probe) UiState {
	return s.Update(func(st *UiState) {
		st.Checklist = checklistItems(st.Text, probe)
		completed := 0
		for _, item := range st.Checklist {
			if item.OK {
				completed++
			}
		}
		st.ChecklistCompleted = completed
		st.ChecklistOpen = completed < len(st.Checklist)
	})
}

func checklistItems(text i18n.UiText, probe Probe) []ChecklistItem {
	items := []ChecklistItem{
		{ID: CheckSearch, Label: text.ChecklistSearch},
		{ID: CheckNew, Label: text.ChecklistNew},
		{ID: CheckList, Label: text.ChecklistList},
		{ID: CheckStatus, Label: text.ChecklistStatus},
	}
	if probe == nil {
		return items
	}
	for i := range items {
		items[i].OK = probe(items[i].ID)
	}
	return items
}

func (s *Store) copyLocked() UiState {
	out := s.state
	out.Checklist = append([]ChecklistItem(nil), s.state.Checklist...)
	return out
}
