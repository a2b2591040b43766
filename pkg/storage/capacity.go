package storage

import (
	"time"
)

// approxRowBytes is a typical encoded row: 13 digit ns timestamp, value, flag.
const approxRowBytes = len("1234567890123,-1234.5678,0\n")

// EstimateCapacity returns how long storage with free bytes can record at the
// given sampling interval.
func EstimateCapacity(free uint64, interval time.Duration) time.Duration {
	if interval <= 0 {
		return 0
	}
	rows := free / uint64(approxRowBytes)
	maxRows := uint64(1<<63-1) / uint64(interval)
	if rows > maxRows {
		return time.Duration(1<<63 - 1)
	}
	return time.Duration(rows) * interval
}
