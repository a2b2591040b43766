package sample

import (
	"context"
	"errors"
	"time"

	"github.com/itohio/loadrig/pkg/clock"
	"github.com/itohio/loadrig/pkg/config"
	"github.com/itohio/loadrig/pkg/sensor"
	"go.uber.org/zap"
)

// Flag is a shared boolean read by the producer on every tick.
// *atomic.Bool satisfies it.
type Flag interface {
	Load() bool
}

// MotorState reports whether the motor is running at the instant of the call.
type MotorState interface {
	Active() bool
}

// Sensor is the calibrated reader the producer samples from.
type Sensor interface {
	Read() (float32, error)
	Tare(n int) (int32, error)
}

// Stats summarizes one producer run.
type Stats struct {
	Samples  int           // Samples recorded
	Skipped  int           // Ticks without a reading
	Chunks   int           // Data chunks pushed, full and partial
	Duration time.Duration // Time from session start to loop exit
	Offset   int32         // Tare offset used for the session
}

// Producer samples a sensor at a fixed interval and feeds chunks to a queue.
type Producer struct {
	Interval    time.Duration
	Capacity    int
	MaxDuration time.Duration
	TareSamples int

	// Observer, when set, is called with every sample. It must not block.
	Observer func(Sample)

	logger *zap.Logger
}

// NewProducer creates a producer from sampling configuration.
func NewProducer(cfg config.SamplingConfig, tareSamples int, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Producer{
		Interval:    cfg.Interval,
		Capacity:    cfg.ChunkCapacity,
		MaxDuration: cfg.MaxDuration,
		TareSamples: tareSamples,
		logger:      logger,
	}
}

// Run records one session. It tares the sensor, then samples every Interval
// while recording is set and MaxDuration has not elapsed. Full chunks are
// pushed as they fill; on exit a non-empty partial chunk is pushed followed by
// the end-of-stream marker. Run returns early only when ctx is cancelled while
// waiting on the queue.
func (p *Producer) Run(ctx context.Context, recording Flag, motor MotorState, clk clock.Clock, s Sensor, q *Queue) (Stats, error) {
	logger := p.log()
	stats := Stats{Offset: p.tare(s, logger)}
	return p.sample(ctx, clk.Now(), stats, recording, motor, clk, s, q, logger)
}

// RunFrom is Run with the session window measured from start instead of from
// the end of the tare, so the session lasts MaxDuration from the moment it was
// requested.
func (p *Producer) RunFrom(ctx context.Context, start time.Duration, recording Flag, motor MotorState, clk clock.Clock, s Sensor, q *Queue) (Stats, error) {
	logger := p.log()
	stats := Stats{Offset: p.tare(s, logger)}
	return p.sample(ctx, start, stats, recording, motor, clk, s, q, logger)
}

func (p *Producer) log() *zap.Logger {
	if p.logger == nil {
		return zap.NewNop()
	}
	return p.logger
}

// tare zeroes the sensor. A failed tare keeps the previous offset and
// returns zero.
func (p *Producer) tare(s Sensor, logger *zap.Logger) int32 {
	offset, err := s.Tare(p.TareSamples)
	if err != nil {
		logger.Warn("[producer] tare failed, keeping previous offset", zap.Error(err))
		return 0
	}
	logger.Debug("[producer] tared sensor", zap.Int32("offset", offset))
	return offset
}

func (p *Producer) sample(ctx context.Context, start time.Duration, stats Stats, recording Flag, motor MotorState, clk clock.Clock, s Sensor, q *Queue, logger *zap.Logger) (Stats, error) {
	capacity := p.Capacity
	if capacity < 1 {
		capacity = 1
	}

	last := start
	buf := make([]Sample, 0, capacity)

	for recording.Load() {
		now := clk.Now()
		elapsed := now - start
		if elapsed > p.MaxDuration {
			break
		}

		if now-last >= p.Interval {
			last = now

			value, err := s.Read()
			if err != nil {
				stats.Skipped++
				if !errors.Is(err, sensor.ErrUnavailable) {
					logger.Warn("[producer] sensor read failed", zap.Error(err))
				}
			} else {
				smp := Sample{
					Timestamp:   now,
					Value:       value,
					MotorActive: motor.Active(),
				}
				buf = append(buf, smp)
				stats.Samples++
				if p.Observer != nil {
					p.Observer(smp)
				}

				if len(buf) == capacity {
					if err := q.Push(ctx, NewData(buf)); err != nil {
						return stats, err
					}
					stats.Chunks++
					buf = make([]Sample, 0, capacity)
				}
			}
		}

		if elapsed >= p.MaxDuration {
			break
		}

		clk.Sleep(p.Interval - (clk.Now() - last))
	}

	stats.Duration = clk.Now() - start

	if len(buf) > 0 {
		if err := q.Push(ctx, NewData(buf)); err != nil {
			return stats, err
		}
		stats.Chunks++
	}

	if err := q.Push(ctx, EndOfStream()); err != nil {
		return stats, err
	}

	logger.Info("[producer] session finished",
		zap.Int("samples", stats.Samples),
		zap.Int("skipped", stats.Skipped),
		zap.Int("chunks", stats.Chunks),
		zap.Duration("duration", stats.Duration),
	)

	return stats, nil
}
