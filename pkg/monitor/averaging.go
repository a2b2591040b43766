package monitor

// MovingAverage is a fixed-length running mean of the most recent values.
type MovingAverage struct {
	buf  []float32
	next int
	full bool
	sum  float64
}

// NewMovingAverage creates a moving average over n values. n below one is
// treated as one, which passes values through.
func NewMovingAverage(n int) *MovingAverage {
	if n < 1 {
		n = 1
	}
	return &MovingAverage{buf: make([]float32, n)}
}

// Add pushes v and returns the mean of the values currently held.
func (a *MovingAverage) Add(v float32) float32 {
	if a.full {
		a.sum -= float64(a.buf[a.next])
	}
	a.buf[a.next] = v
	a.sum += float64(v)

	a.next++
	if a.next == len(a.buf) {
		a.next = 0
		a.full = true
	}
	return a.Mean()
}

// Mean returns the current mean, or zero when empty.
func (a *MovingAverage) Mean() float32 {
	n := a.Len()
	if n == 0 {
		return 0
	}
	return float32(a.sum / float64(n))
}

// Len returns the number of values held.
func (a *MovingAverage) Len() int {
	if a.full {
		return len(a.buf)
	}
	return a.next
}

// Reset discards all values.
func (a *MovingAverage) Reset() {
	a.next = 0
	a.full = false
	a.sum = 0
}
