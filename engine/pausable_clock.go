package engine

import (
	"sync"
	"time"
)

// PausableClock derives scan time from a base provider, minus time spent paused.
// The scanner pauses it while the map is off-screen so the sweep resumes where
// it stopped and reveal holds do not lapse unseen.
type PausableClock struct {
	mu sync.RWMutex

	base TimeProvider

	paused      bool
	pauseStart  time.Time     // base time when the current pause began
	totalPaused time.Duration // completed pauses only
}

// NewPausableClock wraps base; a nil base falls back to the system clock
func NewPausableClock(base TimeProvider) *PausableClock {
	if base == nil {
		base = NewMonotonicTimeProvider()
	}
	return &PausableClock{base: base}
}

// Now returns base time shifted back by all paused intervals.
// While paused the returned value is frozen at the pause point.
func (pc *PausableClock) Now() time.Time {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	if pc.paused {
		return pc.pauseStart.Add(-pc.totalPaused)
	}
	return pc.base.Now().Add(-pc.totalPaused)
}

// Pause freezes scan time; repeated calls are no-ops
func (pc *PausableClock) Pause() {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.paused {
		return
	}
	pc.paused = true
	pc.pauseStart = pc.base.Now()
}

// Resume continues scan time from the frozen point
func (pc *PausableClock) Resume() {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if !pc.paused {
		return
	}
	if d := pc.base.Now().Sub(pc.pauseStart); d > 0 {
		pc.totalPaused += d
	}
	pc.paused = false
	pc.pauseStart = time.Time{}
}

// IsPaused reports the current pause state
func (pc *PausableClock) IsPaused() bool {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.paused
}

// TotalPaused returns cumulative pause duration, the running pause included
func (pc *PausableClock) TotalPaused() time.Duration {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	total := pc.totalPaused
	if pc.paused {
		if d := pc.base.Now().Sub(pc.pauseStart); d > 0 {
			total += d
		}
	}
	return total
}
