package rig

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/itohio/loadrig/pkg/clock"
	"github.com/itohio/loadrig/pkg/config"
	"github.com/itohio/loadrig/pkg/sensor"
	"github.com/itohio/loadrig/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testWall = time.Date(2026, time.March, 3, 14, 5, 9, 0, time.UTC)

type heldControls struct {
	record atomic.Bool
}

func (c *heldControls) Record() bool  { return c.record.Load() }
func (c *heldControls) Forward() bool { return false }
func (c *heldControls) Back() bool    { return false }

type lamp struct{ on atomic.Bool }

func (l *lamp) Set(on bool) { l.on.Store(on) }

type summaries struct {
	mu  sync.Mutex
	all []storage.Summary
}

func (s *summaries) SessionClosed(sum storage.Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.all = append(s.all, sum)
}

func (s *summaries) list() []storage.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]storage.Summary(nil), s.all...)
}

type unavailableReader struct{}

func (unavailableReader) ReadRaw() (int32, error) { return 0, sensor.ErrUnavailable }

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Storage.Dir = t.TempDir()
	cfg.Sampling.Interval = 10 * time.Millisecond
	cfg.Sampling.ChunkCapacity = 8
	cfg.Sampling.QueueCapacity = 2
	cfg.Sampling.MaxDuration = 500 * time.Millisecond
	cfg.Session.Debounce = 0
	cfg.Mock.NoiseLevel = 0
	return cfg
}

func TestNew_Validation(t *testing.T) {
	cfg := config.Default()
	clk := clock.NewFake(testWall)
	reader := sensor.NewMock(&cfg.Mock, clk, 1)

	_, err := New(cfg, clk, Options{Controls: &heldControls{}, Indicator: &lamp{}}, nil)
	assert.Error(t, err, "missing reader")

	cfg.Sensor.Scale = 0
	_, err = New(cfg, clk, Options{Reader: reader, Controls: &heldControls{}, Indicator: &lamp{}}, nil)
	assert.Error(t, err, "zero scale")
}

// runWriter drains the rig queue on a separate goroutine.
func runWriter(t *testing.T, r *Rig) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.writer.Run(ctx, r.queue)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestRig_SessionDrains(t *testing.T) {
	cfg := testConfig(t)
	clk := clock.NewFake(testWall)
	sink := &summaries{}
	var done atomic.Int32
	r, err := New(cfg, clk, Options{
		Reader:        sensor.NewMock(&cfg.Mock, clk, 1),
		Controls:      &heldControls{},
		Indicator:     &lamp{},
		Sink:          sink,
		OnSessionDone: func() { done.Add(1) },
	}, nil)
	require.NoError(t, err)
	runWriter(t, r)

	require.True(t, r.idle())
	r.controller.Flag().Store(true)

	var wg sync.WaitGroup
	r.startSession(context.Background(), &wg)
	assert.False(t, r.idle())
	wg.Wait()

	require.Eventually(t, r.idle, time.Second, time.Millisecond)
	assert.Equal(t, int32(1), done.Load())

	got := sink.list()
	require.Len(t, got, 1)
	assert.Equal(t, 50, got[0].Rows)
	assert.False(t, got[0].Failed)

	f, err := os.Open(filepath.Join(cfg.Storage.Dir, got[0].Name))
	require.NoError(t, err)
	defer f.Close()
	rows, err := storage.ReadSession(f)
	require.NoError(t, err)
	require.Len(t, rows, 50)
	assert.Equal(t, 10*time.Millisecond, rows[0].Timestamp)
	assert.Equal(t, 500*time.Millisecond, rows[49].Timestamp)
}

func TestRig_EmptySessionDrains(t *testing.T) {
	cfg := testConfig(t)
	clk := clock.NewFake(testWall)
	sink := &summaries{}
	var done atomic.Int32
	r, err := New(cfg, clk, Options{
		Reader:        unavailableReader{},
		Controls:      &heldControls{},
		Indicator:     &lamp{},
		Sink:          sink,
		OnSessionDone: func() { done.Add(1) },
	}, nil)
	require.NoError(t, err)
	runWriter(t, r)

	r.controller.Flag().Store(true)
	var wg sync.WaitGroup
	r.startSession(context.Background(), &wg)
	wg.Wait()

	require.True(t, r.idle())
	assert.Equal(t, int32(1), done.Load(), "a session without samples still reports done")
	assert.Empty(t, sink.list())

	entries, err := os.ReadDir(cfg.Storage.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRig_Run(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sampling.Interval = time.Millisecond
	cfg.Sampling.MaxDuration = 2 * time.Second
	clk := clock.NewFake(testWall)
	controls := &heldControls{}
	sink := &summaries{}

	r, err := New(cfg, clk, Options{
		Reader:    sensor.NewMock(&cfg.Mock, clk, 1),
		Controls:  controls,
		Indicator: &lamp{},
		Sink:      sink,
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	controls.record.Store(true)
	require.Eventually(t, func() bool { return len(sink.list()) == 1 }, 5*time.Second, time.Millisecond)
	require.Eventually(t, r.idle, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("rig did not stop")
	}

	got := sink.list()
	require.Len(t, got, 1, "held record starts a single session")
	assert.Positive(t, got[0].Rows)
	assert.LessOrEqual(t, got[0].Rows, 2001)

	f, err := os.Open(filepath.Join(cfg.Storage.Dir, got[0].Name))
	require.NoError(t, err)
	defer f.Close()
	rows, err := storage.ReadSession(f)
	require.NoError(t, err)
	require.Len(t, rows, got[0].Rows)
	for i := 1; i < len(rows); i++ {
		assert.Greater(t, rows[i].Timestamp, rows[i-1].Timestamp)
	}
}

func TestRig_WindowStartsAtRecordPress(t *testing.T) {
	cfg := testConfig(t)
	clk := clock.NewFake(testWall)
	sink := &summaries{}
	r, err := New(cfg, clk, Options{
		Reader:    sensor.NewMock(&cfg.Mock, clk, 1),
		Controls:  &heldControls{},
		Indicator: &lamp{},
		Sink:      sink,
	}, nil)
	require.NoError(t, err)
	runWriter(t, r)

	// The record press was seen at zero; the producer starts later.
	r.controller.Flag().Store(true)
	clk.Advance(200 * time.Millisecond)

	var wg sync.WaitGroup
	r.startSession(context.Background(), &wg)
	wg.Wait()

	require.Eventually(t, func() bool { return len(sink.list()) == 1 }, time.Second, time.Millisecond)
	got := sink.list()
	assert.Equal(t, 31, got[0].Rows)
}
