package clock

import (
	"time"
)

// Clock supplies monotonic ticks, wall-clock time, and a way to yield.
type Clock interface {
	// Now returns monotonic time elapsed since the clock was created.
	Now() time.Duration
	// Wall returns the wall-clock time. It is meaningful only after the
	// host time has been synchronized, see Synced.
	Wall() time.Time
	// Sleep suspends the caller for d.
	Sleep(d time.Duration)
}

// syncEpoch is the earliest wall time trusted as synchronized. Boards without
// an RTC boot at the Unix epoch until time sync completes.
var syncEpoch = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

// Synced reports whether wall looks like a synchronized time.
func Synced(wall time.Time) bool {
	return !wall.Before(syncEpoch)
}

// Micros converts a monotonic reading to whole microseconds.
func Micros(d time.Duration) uint64 {
	if d < 0 {
		return 0
	}
	return uint64(d / time.Microsecond)
}

// System is a Clock backed by the runtime monotonic clock.
type System struct {
	start time.Time
}

var _ Clock = (*System)(nil)

// NewSystem creates a system clock starting at zero.
func NewSystem() *System {
	return &System{start: time.Now()}
}

// Now returns time elapsed since NewSystem.
func (s *System) Now() time.Duration {
	return time.Since(s.start)
}

// Wall returns the current wall-clock time.
func (s *System) Wall() time.Time {
	return time.Now()
}

// Sleep blocks for d. Non-positive durations still yield the processor.
func (s *System) Sleep(d time.Duration) {
	if d <= 0 {
		time.Sleep(0)
		return
	}
	time.Sleep(d)
}
