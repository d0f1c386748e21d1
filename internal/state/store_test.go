package state

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/invoice-overlay/internal/i18n"
	"github.com/odyssey-erp/invoice-overlay/internal/kpi"
)

func testText() i18n.UiText {
	return i18n.BuildUiText(func(_, fallback string) string { return fallback })
}

func TestNewNormalizesInitialFilter(t *testing.T) {
	s := New(testText(), Options{Filter: "bogus"})
	snap := s.Snapshot()
	assert.Equal(t, kpi.FilterAll, snap.ActiveFilter)
	assert.Equal(t, snap.Text.TipKeyboardShortcuts, snap.Tip)
	require.Len(t, snap.Checklist, 4)
	assert.False(t, snap.ChecklistOpen)
	assert.Zero(t, snap.ChecklistCompleted)
}

func TestUpdateNormalizesAndNotifies(t *testing.T) {
	now := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	s := New(testText(), Options{Clock: func() time.Time { return now }})

	var got []UiState
	cancel := s.Subscribe(func(st UiState) { got = append(got, st) })

	s.Update(func(st *UiState) { st.ActiveFilter = kpi.FilterOverdue })
	s.Update(func(st *UiState) { st.ActiveFilter = "nonsense" })
	cancel()
	cancel()
	s.Update(func(st *UiState) { st.Loading = true })

	require.Len(t, got, 2)
	assert.Equal(t, kpi.FilterOverdue, got[0].ActiveFilter)
	assert.Equal(t, kpi.FilterAll, got[1].ActiveFilter)
	assert.Equal(t, now, got[1].UpdatedAt)
	assert.True(t, s.Snapshot().Loading)
}

func TestSnapshotIsDetached(t *testing.T) {
	s := New(testText(), Options{})
	snap := s.Snapshot()
	snap.Checklist[0].OK = true
	assert.False(t, s.Snapshot().Checklist[0].OK)
}

func TestRefreshChecklist(t *testing.T) {
	s := New(testText(), Options{})

	st := s.RefreshChecklist(func(id string) bool { return id != CheckStatus })
	assert.Equal(t, 3, st.ChecklistCompleted)
	assert.True(t, st.ChecklistOpen)
	assert.False(t, st.Checklist[3].OK)

	st = s.RefreshChecklist(func(string) bool { return true })
	assert.Equal(t, 4, st.ChecklistCompleted)
	assert.False(t, st.ChecklistOpen)
}

func TestConcurrentReadersDuringUpdates(t *testing.T) {
	s := New(testText(), Options{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.Snapshot()
				_ = s.ActiveFilter()
			}
		}()
	}
	for j := 0; j < 100; j++ {
		s.Update(func(st *UiState) { st.VisibleRows = j })
	}
	wg.Wait()
	assert.Equal(t, 99, s.Snapshot().VisibleRows)
}
