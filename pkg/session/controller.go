package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/itohio/loadrig/pkg/clock"
	"github.com/itohio/loadrig/pkg/config"
	"github.com/itohio/loadrig/pkg/motor"
	"go.uber.org/zap"
)

// blinkHalfPeriod gives a 2 Hz indicator blink near the end of a session.
const blinkHalfPeriod = 250 * time.Millisecond

// State of the session controller.
type State int32

const (
	Idle State = iota
	Recording
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	default:
		return "unknown"
	}
}

// Controls are the operator inputs. Each method returns the current raw level,
// true meaning pressed.
type Controls interface {
	Record() bool
	Forward() bool
	Back() bool
}

// Indicator is the operator feedback light.
type Indicator interface {
	Set(on bool)
}

// Controller turns operator inputs into motor commands and recording
// sessions of fixed duration.
type Controller struct {
	PollInterval time.Duration
	Duration     time.Duration
	BlinkWindow  time.Duration

	// OnStart is called from the polling goroutine when a session starts.
	// It must not block.
	OnStart func()
	// CanStart, when set, gates new sessions. A press is ignored while it
	// returns false.
	CanStart func() bool

	controls  Controls
	indicator Indicator
	intent    *motor.Intent
	clk       clock.Clock
	logger    *zap.Logger

	record  Debouncer
	forward Debouncer
	back    Debouncer

	prevRecord bool
	start      atomic.Int64 // session start, monotonic nanoseconds
	state      atomic.Int32
	recording  atomic.Bool
}

// NewController creates an idle controller. Sessions last duration.
func NewController(cfg config.SessionConfig, duration time.Duration, controls Controls, indicator Indicator, intent *motor.Intent, clk clock.Clock, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		PollInterval: cfg.PollInterval,
		Duration:     duration,
		BlinkWindow:  cfg.BlinkWindow,
		controls:     controls,
		indicator:    indicator,
		intent:       intent,
		clk:          clk,
		logger:       logger,
		record:       Debouncer{Interval: cfg.Debounce},
		forward:      Debouncer{Interval: cfg.Debounce},
		back:         Debouncer{Interval: cfg.Debounce},
	}
}

// Run polls the controls every PollInterval until ctx is cancelled. On exit
// the recording flag is cleared, the motor stopped and the indicator turned off.
func (c *Controller) Run(ctx context.Context) error {
	defer func() {
		c.recording.Store(false)
		c.state.Store(int32(Idle))
		c.intent.Set(false, motor.Forward)
		c.indicator.Set(false)
	}()

	for {
		if err := ctx.Err(); err != nil {
			c.logger.Info("[session] received shutdown signal")
			return err
		}
		c.Poll()
		c.clk.Sleep(c.PollInterval)
	}
}

// Poll performs one control cycle.
func (c *Controller) Poll() {
	now := c.clk.Now()

	rec := c.record.Update(c.controls.Record(), now)
	fwd := c.forward.Update(c.controls.Forward(), now)
	back := c.back.Update(c.controls.Back(), now)

	c.updateMotor(fwd, back)

	switch c.State() {
	case Idle:
		if rec && !c.prevRecord {
			c.begin(now)
		}
	case Recording:
		if now-c.Started() >= c.Duration {
			c.end(now)
		}
	}
	c.prevRecord = rec

	if c.State() == Recording {
		c.indicator.Set(c.blink(now - c.Started()))
	} else {
		c.indicator.Set(rec || fwd || back)
	}
}

// State returns the current controller state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Flag returns the recording flag shared with the producer.
func (c *Controller) Flag() *atomic.Bool {
	return &c.recording
}

// Elapsed returns time since the current session started, or zero when idle.
func (c *Controller) Elapsed() time.Duration {
	if c.State() != Recording {
		return 0
	}
	return c.clk.Now() - c.Started()
}

// Started returns the clock time at which the current or last session began.
func (c *Controller) Started() time.Duration {
	return time.Duration(c.start.Load())
}

func (c *Controller) updateMotor(fwd, back bool) {
	switch {
	case fwd && !back:
		c.intent.Set(true, motor.Forward)
	case back && !fwd:
		c.intent.Set(true, motor.Back)
	default:
		c.intent.Set(false, motor.Forward)
	}
}

func (c *Controller) begin(now time.Duration) {
	if c.CanStart != nil && !c.CanStart() {
		c.logger.Warn("[session] previous session still draining, ignoring record")
		return
	}

	c.start.Store(int64(now))
	c.recording.Store(true)
	c.state.Store(int32(Recording))
	c.logger.Info("[session] recording started", zap.Duration("duration", c.Duration))

	if c.OnStart != nil {
		c.OnStart()
	}
}

func (c *Controller) end(now time.Duration) {
	c.recording.Store(false)
	c.state.Store(int32(Idle))
	c.logger.Info("[session] recording finished", zap.Duration("elapsed", now-c.Started()))
}

// blink returns the indicator level at elapsed time into a session: solid,
// then blinking during the final BlinkWindow.
func (c *Controller) blink(elapsed time.Duration) bool {
	from := c.Duration - c.BlinkWindow
	if elapsed < from {
		return true
	}
	return ((elapsed-from)/blinkHalfPeriod)%2 == 0
}
