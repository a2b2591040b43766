package motor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/itohio/loadrig/pkg/clock"
	"go.uber.org/zap"
)

// Pin is a digital output.
type Pin interface {
	Set(high bool)
}

// NopPin discards output, for hosts without a stepper attached.
type NopPin struct{}

func (NopPin) Set(bool) {}

// Driver pulses a step/direction stepper driver at a constant rate while the
// intent is enabled. There is no ramp and no positioning.
type Driver struct {
	Step       Pin
	Dir        Pin
	HalfPeriod time.Duration

	steps  atomic.Uint64
	last   uint32 // last command seen, for logging transitions
	logger *zap.Logger
}

// NewDriver creates a driver on the given pins.
func NewDriver(step, dir Pin, halfPeriod time.Duration, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		Step:       step,
		Dir:        dir,
		HalfPeriod: halfPeriod,
		logger:     logger,
	}
}

// Run drives the motor until ctx is cancelled.
func (d *Driver) Run(ctx context.Context, intent *Intent, clk clock.Clock) error {
	d.Step.Set(false)
	defer d.Step.Set(false)

	for {
		if err := ctx.Err(); err != nil {
			d.logger.Info("[motor] received shutdown signal", zap.Uint64("steps", d.Steps()))
			return err
		}
		d.Cycle(intent, clk)
	}
}

// Cycle performs one step pulse when enabled, or idles for a half period.
// It reports whether a pulse was emitted.
func (d *Driver) Cycle(intent *Intent, clk clock.Clock) bool {
	enabled, dir := intent.Load()
	d.logTransition(enabled, dir)

	if !enabled {
		clk.Sleep(d.HalfPeriod)
		return false
	}

	d.Dir.Set(dir == Back)
	d.Step.Set(true)
	clk.Sleep(d.HalfPeriod)
	d.Step.Set(false)
	clk.Sleep(d.HalfPeriod)
	d.steps.Add(1)
	return true
}

// Steps returns the number of pulses emitted so far.
func (d *Driver) Steps() uint64 {
	return d.steps.Load()
}

func (d *Driver) logTransition(enabled bool, dir Direction) {
	var cur uint32
	if enabled {
		cur = 1 + uint32(dir)
	}
	if cur == d.last {
		return
	}
	d.last = cur
	if enabled {
		d.logger.Debug("[motor] running", zap.Stringer("direction", dir))
	} else {
		d.logger.Debug("[motor] stopped", zap.Uint64("steps", d.Steps()))
	}
}
