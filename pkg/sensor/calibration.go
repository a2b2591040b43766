package sensor

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/chewxy/math32"
	"github.com/itohio/loadrig/pkg/clock"
)

const (
	// DefaultTareSamples is the number of readings averaged by a tare.
	DefaultTareSamples = 10
	// tareAttemptsPerSample bounds how many unavailable readings a tare tolerates.
	tareAttemptsPerSample = 50
	// tareRetryDelay is the pause after an unavailable reading during a tare.
	tareRetryDelay = time.Millisecond
)

// ErrTareFailed is returned when a tare could not collect enough readings.
var ErrTareFailed = errors.New("tare failed")

// Calibration maps raw counts to engineering units: (raw - Offset) / Scale.
type Calibration struct {
	Offset int32
	Scale  float32
}

// Apply converts a raw reading into engineering units.
func (c Calibration) Apply(raw int32) float32 {
	return float32(raw-c.Offset) / c.Scale
}

// Validate rejects scale factors that cannot be divided by.
func (c Calibration) Validate() error {
	if c.Scale == 0 || math32.IsNaN(c.Scale) || math32.IsInf(c.Scale, 0) {
		return fmt.Errorf("invalid calibration scale %v", c.Scale)
	}
	return nil
}

// Tare returns the mean of n successful raw readings. Unavailable readings are
// retried after a short pause, up to a bounded number of attempts.
func Tare(r Reader, n int, clk clock.Clock) (int32, error) {
	if n <= 0 {
		n = DefaultTareSamples
	}

	var sum int64
	got := 0
	for attempts := 0; got < n && attempts < n*tareAttemptsPerSample; attempts++ {
		raw, err := r.ReadRaw()
		if err != nil {
			if errors.Is(err, ErrUnavailable) {
				clk.Sleep(tareRetryDelay)
				continue
			}
			return 0, fmt.Errorf("%w: %w", ErrTareFailed, err)
		}
		sum += int64(raw)
		got++
	}

	if got < n {
		return 0, fmt.Errorf("%w: collected %d of %d readings", ErrTareFailed, got, n)
	}

	return int32(math.Round(float64(sum) / float64(got))), nil
}

// Calibrated wraps a Reader and applies calibration to its readings.
type Calibrated struct {
	r   Reader
	clk clock.Clock

	mu  sync.RWMutex
	cal Calibration
}

// NewCalibrated creates a calibrated reader.
func NewCalibrated(r Reader, cal Calibration, clk clock.Clock) (*Calibrated, error) {
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	return &Calibrated{r: r, cal: cal, clk: clk}, nil
}

// Read acquires one reading in engineering units.
func (c *Calibrated) Read() (float32, error) {
	raw, err := c.r.ReadRaw()
	if err != nil {
		return 0, err
	}

	c.mu.RLock()
	cal := c.cal
	c.mu.RUnlock()

	return cal.Apply(raw), nil
}

// Tare zeroes the reader using the mean of n readings and returns the new offset.
func (c *Calibrated) Tare(n int) (int32, error) {
	offset, err := Tare(c.r, n, c.clk)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.cal.Offset = offset
	c.mu.Unlock()

	return offset, nil
}

// Calibration returns the current calibration parameters.
func (c *Calibrated) Calibration() Calibration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cal
}
