package monitor

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chewxy/math32"
	"github.com/itohio/loadrig/pkg/config"
	"github.com/itohio/loadrig/pkg/sample"
)

// Stats summarizes the samples currently inside the window.
type Stats struct {
	Count    int
	Latest   sample.Sample
	Smoothed float32 // Moving average of the latest values
	Mean     float32
	Min      float32
	Max      float32
	StdDev   float32
	Rate     float32 // Effective samples per second
	Slope    float32 // Value change per second across the window
}

// Monitor keeps a time-windowed view of recent samples for live display.
// Samples arrive through Observe, which never blocks the producer.
// Buffers are FIFO: the oldest sample first, the newest last. Removal is by
// timestamp, not by count.
type Monitor struct {
	window time.Duration
	input  chan sample.Sample

	mu       sync.RWMutex
	samples  []sample.Sample
	avg      *MovingAverage
	smoothed float32

	dropped atomic.Uint64
}

// New creates a monitor.
func New(cfg config.MonitorConfig) *Monitor {
	buffer := cfg.Buffer
	if buffer < 1 {
		buffer = 1
	}
	return &Monitor{
		window: cfg.Window,
		input:  make(chan sample.Sample, buffer),
		avg:    NewMovingAverage(cfg.Smoothing),
	}
}

// Observe queues a sample, dropping it when the monitor falls behind.
func (m *Monitor) Observe(s sample.Sample) {
	select {
	case m.input <- s:
	default:
		m.dropped.Add(1)
	}
}

// Run processes observed samples until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s := <-m.input:
			m.process(s)
		}
	}
}

// process adds a sample and trims the window.
func (m *Monitor) process(s sample.Sample) {
	m.mu.Lock()
	if n := len(m.samples); n > 0 && s.Timestamp < m.samples[n-1].Timestamp {
		// Time went backwards: a new clock, start over.
		m.samples = m.samples[:0]
		m.avg.Reset()
	}

	m.samples = append(m.samples, s)
	m.smoothed = m.avg.Add(s.Value)

	cutoff := s.Timestamp - m.window
	if i := slices.IndexFunc(m.samples, func(x sample.Sample) bool { return x.Timestamp > cutoff }); i > 0 {
		m.samples = slices.Delete(m.samples, 0, i)
	}

	m.mu.Unlock()
}

// Reset clears the window, e.g. at the start of a session.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = m.samples[:0]
	m.avg.Reset()
	m.smoothed = 0
}

// Samples returns a copy of the samples inside the window.
func (m *Monitor) Samples() []sample.Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.samples)
}

// Values appends the values inside the window to dst, decimated to at most
// maxPoints, and returns it.
func (m *Monitor) Values(dst []float32, maxPoints int) []float32 {
	m.mu.RLock()
	values := make([]float32, len(m.samples))
	for i, s := range m.samples {
		values[i] = s.Value
	}
	m.mu.RUnlock()

	return Downsample(dst, values, maxPoints)
}

// Stats returns statistics over the current window.
func (m *Monitor) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statsLocked()
}

// Dropped returns the number of samples discarded by Observe.
func (m *Monitor) Dropped() uint64 {
	return m.dropped.Load()
}

func (m *Monitor) statsLocked() Stats {
	n := len(m.samples)
	if n == 0 {
		return Stats{}
	}

	first, last := m.samples[0], m.samples[n-1]
	st := Stats{
		Count:    n,
		Latest:   last,
		Smoothed: m.smoothed,
		Min:      math32.Inf(1),
		Max:      math32.Inf(-1),
	}

	var sum float32
	for _, s := range m.samples {
		sum += s.Value
		st.Min = math32.Min(st.Min, s.Value)
		st.Max = math32.Max(st.Max, s.Value)
	}
	st.Mean = sum / float32(n)

	var sq float32
	for _, s := range m.samples {
		d := s.Value - st.Mean
		sq += d * d
	}
	st.StdDev = math32.Sqrt(sq / float32(n))

	if span := float32((last.Timestamp - first.Timestamp).Seconds()); n > 1 && span > 0 {
		st.Rate = float32(n-1) / span
		st.Slope = (last.Value - first.Value) / span
	}
	return st
}
