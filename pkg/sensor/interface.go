package sensor

import "errors"

// ErrUnavailable is returned when no reading could be acquired right now.
// Callers skip the tick instead of retrying.
var ErrUnavailable = errors.New("sensor reading unavailable")

// Reader produces one raw load-cell reading on demand.
type Reader interface {
	ReadRaw() (int32, error)
}

// Ensure Serial implements Reader.
var _ Reader = (*Serial)(nil)

// Ensure Mock implements Reader.
var _ Reader = (*Mock)(nil)
