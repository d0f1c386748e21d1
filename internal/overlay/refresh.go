package overlay

import "time"

// DefaultMinRefresh is the minimum spacing between two remote fetches.
const DefaultMinRefresh = 15 * time.Second

// RefreshGuard drops refresh requests arriving too soon after the last one
// that started. The mark is taken before the fetch begins and a failed
// fetch does not clear it.
type RefreshGuard struct {
	interval time.Duration
	last     time.Time
	started  bool
}

// NewRefreshGuard builds a guard; a zero interval takes the default.
func NewRefreshGuard(interval time.Duration) *RefreshGuard {
	if interval <= 0 {
		interval = DefaultMinRefresh
	}
	return &RefreshGuard{interval: interval}
}

// Allow marks now and returns true when a fetch may start.
func (g *RefreshGuard) Allow(now time.Time) bool {
	if g.started && now.Sub(g.last) < g.interval {
		return false
	}
	g.started = true
	g.last = now
	return true
}

// Last is when the last allowed fetch started.
func (g *RefreshGuard) Last() (time.Time, bool) {
	return g.last, g.started
}
