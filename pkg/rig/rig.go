package rig

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/itohio/loadrig/pkg/clock"
	"github.com/itohio/loadrig/pkg/config"
	"github.com/itohio/loadrig/pkg/monitor"
	"github.com/itohio/loadrig/pkg/motor"
	"github.com/itohio/loadrig/pkg/sample"
	"github.com/itohio/loadrig/pkg/sensor"
	"github.com/itohio/loadrig/pkg/session"
	"github.com/itohio/loadrig/pkg/storage"
	"github.com/itohio/loadrig/pkg/telemetry"
	"go.uber.org/zap"
)

// Options supplies the hardware and outputs the rig runs against.
type Options struct {
	Reader    sensor.Reader     // Raw load-cell readings, required
	Controls  session.Controls  // Operator inputs, required
	Indicator session.Indicator // Operator light, required
	Step      motor.Pin         // Stepper pins, nil when no motor is attached
	Dir       motor.Pin
	FS        storage.FS        // Session file storage, defaults to cfg.Storage.Dir
	Sink      storage.Sink      // Receives session summaries, optional
	Telemetry *telemetry.Sender // Optional side channel

	// OnSessionDone, when set, is called once a session has fully drained:
	// the producer has finished and the writer has closed the file, or no
	// file was needed because nothing was recorded. It must not block.
	OnSessionDone func()
}

// Rig runs the acquisition pipeline: operator controls start sessions, a
// producer samples the load cell into a chunk queue, and a single writer
// stores the chunks. The motor runs independently of recording.
type Rig struct {
	cfg    *config.Config
	clk    clock.Clock
	logger *zap.Logger

	sensor     *sensor.Calibrated
	queue      *sample.Queue
	producer   *sample.Producer
	writer     *storage.Writer
	intent     motor.Intent
	driver     *motor.Driver
	controller *session.Controller
	monitor    *monitor.Monitor
	telemetry  *telemetry.Sender
	sink       storage.Sink
	onDone     func()

	// pending counts the producer and writer halves of the last session that
	// have not finished yet. A new session starts only at zero.
	pending atomic.Int32
}

// New assembles a rig.
func New(cfg *config.Config, clk clock.Clock, opts Options, logger *zap.Logger) (*Rig, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Reader == nil || opts.Controls == nil || opts.Indicator == nil {
		return nil, errors.New("rig needs a reader, controls and an indicator")
	}

	cal, err := sensor.NewCalibrated(opts.Reader, sensor.Calibration{
		Offset: cfg.Sensor.Offset,
		Scale:  cfg.Sensor.Scale,
	}, clk)
	if err != nil {
		return nil, fmt.Errorf("sensor calibration: %w", err)
	}

	step, dir := opts.Step, opts.Dir
	if step == nil {
		step = motor.NopPin{}
	}
	if dir == nil {
		dir = motor.NopPin{}
	}

	fs := opts.FS
	if fs == nil {
		fs = storage.OSFS{Dir: cfg.Storage.Dir}
	}

	r := &Rig{
		cfg:       cfg,
		clk:       clk,
		logger:    logger,
		sensor:    cal,
		queue:     sample.NewQueue(cfg.Sampling.QueueCapacity),
		producer:  sample.NewProducer(cfg.Sampling, cfg.Sensor.TareSamples, logger),
		monitor:   monitor.New(cfg.Monitor),
		telemetry: opts.Telemetry,
		sink:      opts.Sink,
		onDone:    opts.OnSessionDone,
	}

	r.writer = storage.NewWriter(fs, clk, r, logger)
	r.driver = motor.NewDriver(step, dir, cfg.Motor.HalfPeriod, logger)
	r.controller = session.NewController(cfg.Session, cfg.Sampling.MaxDuration, opts.Controls, opts.Indicator, &r.intent, clk, logger)
	r.controller.CanStart = r.idle
	r.producer.Observer = r.observe

	return r, nil
}

// Run runs the rig until ctx is cancelled.
func (r *Rig) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Error("[rig] component stopped", zap.String("component", name), zap.Error(err))
			}
		}()
	}

	r.controller.OnStart = func() { r.startSession(ctx, &wg) }

	start("writer", func(ctx context.Context) error { return r.writer.Run(ctx, r.queue) })
	start("motor", func(ctx context.Context) error { return r.driver.Run(ctx, &r.intent, r.clk) })
	start("monitor", r.monitor.Run)
	if r.telemetry != nil {
		start("telemetry", r.telemetry.Run)
	}

	r.logger.Info("[rig] running",
		zap.Duration("interval", r.cfg.Sampling.Interval),
		zap.Duration("session", r.cfg.Sampling.MaxDuration),
	)

	err := r.controller.Run(ctx)
	cancel()
	wg.Wait()

	r.logger.Info("[rig] stopped", zap.Uint64("steps", r.driver.Steps()))
	return err
}

// Controller returns the session controller.
func (r *Rig) Controller() *session.Controller {
	return r.controller
}

// Monitor returns the live monitor.
func (r *Rig) Monitor() *monitor.Monitor {
	return r.monitor
}

// Sensor returns the calibrated sensor.
func (r *Rig) Sensor() *sensor.Calibrated {
	return r.sensor
}

// SessionClosed is called by the writer when a session file is closed.
func (r *Rig) SessionClosed(s storage.Summary) {
	if r.sink != nil {
		r.sink.SessionClosed(s)
	}
	r.release(1)
}

// release marks n halves of the session as finished. The half finishing
// last reports the session done.
func (r *Rig) release(n int32) {
	if r.pending.Add(-n) == 0 && r.onDone != nil {
		r.onDone()
	}
}

// idle reports whether the previous session has fully drained.
func (r *Rig) idle() bool {
	return r.pending.Load() == 0
}

// startSession runs a producer for one session. It is called on the
// controller goroutine and must not block.
func (r *Rig) startSession(ctx context.Context, wg *sync.WaitGroup) {
	r.pending.Store(2)
	r.monitor.Reset()

	wg.Add(1)
	go func() {
		defer wg.Done()

		stats, err := r.producer.RunFrom(ctx, r.controller.Started(), r.controller.Flag(), &r.intent, r.clk, r.sensor, r.queue)
		if err != nil {
			r.logger.Warn("[rig] session interrupted", zap.Error(err), zap.Int("samples", stats.Samples))
		}
		if stats.Chunks == 0 {
			// The writer never saw data, so no file was opened.
			r.release(2)
			return
		}
		r.release(1)
	}()
}

func (r *Rig) observe(s sample.Sample) {
	r.monitor.Observe(s)
	if r.telemetry != nil {
		r.telemetry.Observe(s)
	}
}
