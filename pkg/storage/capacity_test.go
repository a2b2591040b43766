package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEstimateCapacity(t *testing.T) {
	assert.Equal(t, time.Duration(0), EstimateCapacity(1<<30, 0))
	assert.Equal(t, time.Duration(0), EstimateCapacity(0, time.Millisecond))

	rowBytes := uint64(approxRowBytes)
	assert.Equal(t, 1000*time.Millisecond, EstimateCapacity(1000*rowBytes, time.Millisecond))
	assert.Equal(t, time.Duration(1<<63-1), EstimateCapacity(1<<63, time.Hour))
}
