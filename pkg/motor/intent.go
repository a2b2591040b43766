package motor

import "sync/atomic"

// Direction of motor rotation.
type Direction uint8

const (
	Forward Direction = iota
	Back
)

func (d Direction) String() string {
	if d == Back {
		return "back"
	}
	return "forward"
}

const (
	intentEnabled = 1 << iota
	intentBack
)

// Intent is the motor command shared between the session controller (the only
// writer) and the driver. Enabled and direction are updated together.
type Intent struct {
	v atomic.Uint32
}

// Set publishes a new command.
func (i *Intent) Set(enabled bool, dir Direction) {
	var v uint32
	if enabled {
		v |= intentEnabled
	}
	if dir == Back {
		v |= intentBack
	}
	i.v.Store(v)
}

// Load returns the current command.
func (i *Intent) Load() (enabled bool, dir Direction) {
	v := i.v.Load()
	if v&intentBack != 0 {
		dir = Back
	}
	return v&intentEnabled != 0, dir
}

// Active reports whether the motor is commanded to run.
func (i *Intent) Active() bool {
	return i.v.Load()&intentEnabled != 0
}
