package overlay

import "time"

// Default scheduler windows.
const (
	DefaultDebounce = 60 * time.Millisecond
	DefaultMaxWait  = 500 * time.Millisecond
)

// Scheduler coalesces bootstrap triggers. Each trigger pushes the pass
// back by the quiet window, but never later than maxWait after the first
// trigger of the burst. It is driven by the engine loop and holds no
// timers itself.
type Scheduler struct {
	quiet   time.Duration
	maxWait time.Duration

	pending  bool
	first    time.Time
	deadline time.Time
}

// NewScheduler builds a scheduler; zero durations take the defaults.
func NewScheduler(quiet, maxWait time.Duration) *Scheduler {
	if quiet <= 0 {
		quiet = DefaultDebounce
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	if maxWait < quiet {
		maxWait = quiet
	}
	return &Scheduler{quiet: quiet, maxWait: maxWait}
}

// Notify registers a trigger at now. delay overrides the quiet window when
// positive. It returns the new deadline and whether the trigger joined an
// already pending burst.
func (s *Scheduler) Notify(now time.Time, delay time.Duration) (time.Time, bool) {
	if delay <= 0 {
		delay = s.quiet
	}
	coalesced := s.pending
	if !s.pending {
		s.pending = true
		s.first = now
	}
	deadline := now.Add(delay)
	if limit := s.first.Add(s.maxWait); deadline.After(limit) {
		deadline = limit
	}
	s.deadline = deadline
	return deadline, coalesced
}

// Pending reports whether a pass is scheduled.
func (s *Scheduler) Pending() bool { return s.pending }

// Deadline is when the pending pass is due.
func (s *Scheduler) Deadline() time.Time { return s.deadline }

// Fire consumes the pending pass if it is due at now.
func (s *Scheduler) Fire(now time.Time) bool {
	if !s.pending || now.Before(s.deadline) {
		return false
	}
	s.pending = false
	return true
}
