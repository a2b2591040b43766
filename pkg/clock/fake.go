package clock

import (
	"runtime"
	"sync"
	"time"
)

// Fake is a deterministic Clock for tests. Time moves only through Sleep and
// Advance, so a single goroutine driving the clock observes exact ticks.
type Fake struct {
	mu   sync.Mutex
	now  time.Duration
	wall time.Time
}

var _ Clock = (*Fake)(nil)

// NewFake creates a fake clock at monotonic zero with the given wall time.
func NewFake(wall time.Time) *Fake {
	return &Fake{wall: wall}
}

// Now returns the current fake monotonic time.
func (f *Fake) Now() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Wall returns the fake wall time advanced by the elapsed monotonic time.
func (f *Fake) Wall() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.wall.Add(f.now)
}

// Sleep advances the clock by d and yields so that other goroutines run.
func (f *Fake) Sleep(d time.Duration) {
	f.Advance(d)
	runtime.Gosched()
}

// Advance moves the clock forward by d. Negative values are ignored.
func (f *Fake) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	f.mu.Lock()
	f.now += d
	f.mu.Unlock()
}
