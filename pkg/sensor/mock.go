package sensor

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/chewxy/math32"
	"github.com/itohio/loadrig/pkg/clock"
	"github.com/itohio/loadrig/pkg/config"
)

// Mock simulates a load cell for testing and development. The load follows a
// slow sine wave; noise and dropouts are optional.
type Mock struct {
	cfg *config.MockConfig
	clk clock.Clock

	mu    sync.Mutex
	rng   *rand.Rand
	reads uint64
}

// NewMock creates a simulated load cell.
func NewMock(cfg *config.MockConfig, clk clock.Clock, seed uint64) *Mock {
	if cfg == nil {
		def := config.Default().Mock
		cfg = &def
	}

	return &Mock{
		cfg: cfg,
		clk: clk,
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// ReadRaw generates one raw reading at the current clock time.
func (m *Mock) ReadRaw() (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.Dropout > 0 && m.rng.Float32() < m.cfg.Dropout {
		return 0, ErrUnavailable
	}

	m.reads++
	return m.cfg.Offset + int32(math.Round(float64(m.load(m.clk.Now())*m.cfg.Scale+m.noise()))), nil
}

// Reads returns the number of successful readings.
func (m *Mock) Reads() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// load returns the simulated load in engineering units at t.
func (m *Mock) load(t time.Duration) float32 {
	if m.cfg.Period <= 0 || m.cfg.Load == 0 {
		return 0
	}
	phase := float32(t%m.cfg.Period) / float32(m.cfg.Period)
	return m.cfg.Load * math32.Sin(2*math32.Pi*phase)
}

// noise returns symmetric noise in raw counts.
func (m *Mock) noise() float32 {
	if m.cfg.NoiseLevel == 0 {
		return 0
	}
	return (m.rng.Float32()*2 - 1) * m.cfg.NoiseLevel
}
