package panel

import (
	"sync/atomic"
	"time"

	"github.com/itohio/loadrig/pkg/clock"
	"github.com/itohio/loadrig/pkg/session"
)

// DefaultHold covers the delay before a terminal starts repeating a held key.
const DefaultHold = 600 * time.Millisecond

// Key is an operator control.
type Key int

const (
	KeyRecord Key = iota
	KeyForward
	KeyBack
	keyCount
)

// Panel maps key presses onto the rig's operator controls. Terminals report
// presses but not releases, so a press holds its control down for Hold and
// repeats from a held key extend it.
type Panel struct {
	hold time.Duration
	clk  clock.Clock

	until     [keyCount]atomic.Int64 // pressed until, monotonic nanoseconds
	indicator atomic.Bool
}

var (
	_ session.Controls  = (*Panel)(nil)
	_ session.Indicator = (*Panel)(nil)
)

// New creates a panel. A non-positive hold uses DefaultHold.
func New(hold time.Duration, clk clock.Clock) *Panel {
	if hold <= 0 {
		hold = DefaultHold
	}
	return &Panel{hold: hold, clk: clk}
}

// Press marks k pressed for the hold window.
func (p *Panel) Press(k Key) {
	if k < 0 || k >= keyCount {
		return
	}
	p.until[k].Store(int64(p.clk.Now() + p.hold))
}

// Release lifts every control at once.
func (p *Panel) Release() {
	for i := range p.until {
		p.until[i].Store(0)
	}
}

func (p *Panel) pressed(k Key) bool {
	return int64(p.clk.Now()) < p.until[k].Load()
}

// Record reports whether the record control is pressed.
func (p *Panel) Record() bool { return p.pressed(KeyRecord) }

// Forward reports whether the forward jog control is pressed.
func (p *Panel) Forward() bool { return p.pressed(KeyForward) }

// Back reports whether the back jog control is pressed.
func (p *Panel) Back() bool { return p.pressed(KeyBack) }

// Set drives the indicator light.
func (p *Panel) Set(on bool) { p.indicator.Store(on) }

// Indicator returns the indicator light state.
func (p *Panel) Indicator() bool { return p.indicator.Load() }
