package sample

import "time"

// Sample represents one load-cell observation.
type Sample struct {
	Timestamp   time.Duration // Monotonic acquisition time
	Value       float32       // Calibrated reading in engineering units
	MotorActive bool          // Motor state at the acquisition instant
}

// Chunk is either an ordered batch of samples or the end-of-stream marker that
// closes a recording session. The zero Chunk is an empty data chunk.
type Chunk struct {
	samples []Sample
	end     bool
}

// NewData wraps samples into a data chunk. The chunk takes ownership of the slice.
func NewData(samples []Sample) Chunk {
	return Chunk{samples: samples}
}

// EndOfStream returns the marker that terminates a session's stream.
func EndOfStream() Chunk {
	return Chunk{end: true}
}

// IsEnd reports whether c is the end-of-stream marker.
func (c Chunk) IsEnd() bool {
	return c.end
}

// Samples returns the samples of a data chunk in acquisition order.
func (c Chunk) Samples() []Sample {
	return c.samples
}

// Len returns the number of samples in a data chunk.
func (c Chunk) Len() int {
	return len(c.samples)
}
