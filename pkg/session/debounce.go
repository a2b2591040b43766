package session

import "time"

// Debouncer filters a noisy digital input. A level change is accepted only
// after the raw input has held the new level for Interval.
type Debouncer struct {
	Interval time.Duration

	stable    bool
	candidate bool
	since     time.Duration
}

// Update feeds the raw level observed at now and returns the debounced level.
func (d *Debouncer) Update(level bool, now time.Duration) bool {
	if level != d.candidate {
		d.candidate = level
		d.since = now
	}
	if d.candidate != d.stable && now-d.since >= d.Interval {
		d.stable = d.candidate
	}
	return d.stable
}

// Level returns the debounced level.
func (d *Debouncer) Level() bool {
	return d.stable
}
