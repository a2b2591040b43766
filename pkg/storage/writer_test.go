package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/itohio/loadrig/pkg/clock"
	"github.com/itohio/loadrig/pkg/sample"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testWall = time.Date(2026, time.March, 3, 14, 5, 9, 0, time.UTC)

type memFile struct {
	bytes.Buffer
	fs     *memFS
	synced int
	closed bool
}

func (f *memFile) Write(p []byte) (int, error) {
	if f.fs.writeErr != nil {
		return 0, f.fs.writeErr
	}
	return f.Buffer.Write(p)
}

func (f *memFile) Sync() error {
	f.synced++
	return nil
}

func (f *memFile) Close() error {
	f.closed = true
	return nil
}

type memFS struct {
	files    map[string]*memFile
	order    []string
	openErr  error
	writeErr error
}

func newMemFS() *memFS {
	return &memFS{files: make(map[string]*memFile)}
}

func (m *memFS) Create(name string) (File, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	if _, ok := m.files[name]; ok {
		return nil, fmt.Errorf("create %s: %w", name, os.ErrExist)
	}
	f := &memFile{fs: m}
	m.files[name] = f
	m.order = append(m.order, name)
	return f, nil
}

type recordSink struct {
	mu        sync.Mutex
	summaries []Summary
}

func (r *recordSink) SessionClosed(s Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries = append(r.summaries, s)
}

func (r *recordSink) all() []Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Summary(nil), r.summaries...)
}

func samplesFrom(start, n int) []sample.Sample {
	out := make([]sample.Sample, 0, n)
	for i := start; i < start+n; i++ {
		out = append(out, sample.Sample{
			Timestamp:   time.Duration(i) * 10 * time.Millisecond,
			Value:       float32(i) * 1.25,
			MotorActive: i%3 == 0,
		})
	}
	return out
}

func TestWriter_WritesSession(t *testing.T) {
	fs := newMemFS()
	sink := &recordSink{}
	w := NewWriter(fs, clock.NewFake(testWall), sink, nil)

	w.Handle(sample.NewData([]sample.Sample{
		{Timestamp: 10 * time.Millisecond, Value: 1.5, MotorActive: true},
		{Timestamp: 20 * time.Millisecond, Value: -0.25},
	}))
	assert.True(t, w.active)
	w.Handle(sample.EndOfStream())
	assert.False(t, w.active)

	require.Equal(t, []string{"20260303_140509.csv"}, fs.order)
	f := fs.files["20260303_140509.csv"]
	assert.Equal(t, "Timestamp(ns),Value,MotorActive\n10000000,1.5,1\n20000000,-0.25,0\n", f.String())
	assert.True(t, f.closed)
	assert.GreaterOrEqual(t, f.synced, 1)

	summaries := sink.all()
	require.Len(t, summaries, 1)
	assert.Equal(t, "20260303_140509.csv", summaries[0].Name)
	assert.Equal(t, 2, summaries[0].Rows)
	assert.False(t, summaries[0].Failed)
	assert.Equal(t, testWall, summaries[0].Started)
}

func TestWriter_FlushesEveryChunk(t *testing.T) {
	fs := newMemFS()
	w := NewWriter(fs, clock.NewFake(testWall), nil, nil)

	w.Handle(sample.NewData(samplesFrom(0, 3)))
	f := fs.files[fs.order[0]]
	assert.Equal(t, 4, strings.Count(f.String(), "\n"))
	assert.Equal(t, 1, f.synced)

	w.Handle(sample.NewData(samplesFrom(3, 2)))
	assert.Equal(t, 6, strings.Count(f.String(), "\n"))
	assert.Equal(t, 2, f.synced)
	assert.False(t, f.closed)
}

func TestWriter_EndWithoutSessionIsNoop(t *testing.T) {
	fs := newMemFS()
	sink := &recordSink{}
	w := NewWriter(fs, clock.NewFake(testWall), sink, nil)

	assert.NotPanics(t, func() {
		w.Handle(sample.EndOfStream())
		w.Handle(sample.EndOfStream())
	})
	assert.Empty(t, fs.order)
	assert.Empty(t, sink.all())
}

func TestWriter_OpenFailureDropsSession(t *testing.T) {
	fs := newMemFS()
	fs.openErr = errors.New("card removed")
	sink := &recordSink{}
	w := NewWriter(fs, clock.NewFake(testWall), sink, nil)

	w.Handle(sample.NewData(samplesFrom(0, 5)))
	w.Handle(sample.NewData(samplesFrom(5, 2)))
	w.Handle(sample.EndOfStream())

	summaries := sink.all()
	require.Len(t, summaries, 1)
	assert.True(t, summaries[0].Failed)
	assert.Equal(t, 0, summaries[0].Rows)
	assert.Equal(t, 7, summaries[0].Dropped)

	// The next session gets a fresh attempt.
	fs.openErr = nil
	w.Handle(sample.NewData(samplesFrom(0, 1)))
	w.Handle(sample.EndOfStream())

	summaries = sink.all()
	require.Len(t, summaries, 2)
	assert.False(t, summaries[1].Failed)
	assert.Equal(t, 1, summaries[1].Rows)
}

func TestWriter_WriteFailureKeepsGoing(t *testing.T) {
	fs := newMemFS()
	sink := &recordSink{}
	w := NewWriter(fs, clock.NewFake(testWall), sink, nil)

	fs.writeErr = errors.New("disk full")
	w.Handle(sample.NewData(samplesFrom(0, 3)))
	fs.writeErr = nil
	w.Handle(sample.NewData(samplesFrom(3, 3)))
	w.Handle(sample.EndOfStream())

	summaries := sink.all()
	require.Len(t, summaries, 1)
	assert.True(t, summaries[0].Failed)
	assert.True(t, fs.files[fs.order[0]].closed)
}

func TestWriter_NameCollision(t *testing.T) {
	fs := newMemFS()
	w := NewWriter(fs, clock.NewFake(testWall), nil, nil)

	for range 3 {
		w.Handle(sample.NewData(samplesFrom(0, 1)))
		w.Handle(sample.EndOfStream())
	}

	assert.Equal(t, []string{
		"20260303_140509.csv",
		"20260303_140509_1.csv",
		"20260303_140509_2.csv",
	}, fs.order)
}

func TestWriter_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(OSFS{Dir: dir}, clock.NewFake(testWall), nil, nil)

	want := samplesFrom(0, 137)
	for i := 0; i < len(want); i += 50 {
		end := min(i+50, len(want))
		w.Handle(sample.NewData(append([]sample.Sample(nil), want[i:end]...)))
	}
	w.Handle(sample.EndOfStream())

	f, err := os.Open(filepath.Join(dir, "20260303_140509.csv"))
	require.NoError(t, err)
	defer f.Close()

	got, err := ReadSession(f)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestWriter_RunUntilCancelled(t *testing.T) {
	fs := newMemFS()
	sink := &recordSink{}
	w := NewWriter(fs, clock.NewFake(testWall), sink, nil)
	q := sample.NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, q) }()

	require.NoError(t, q.Push(ctx, sample.EndOfStream()))
	require.NoError(t, q.Push(ctx, sample.NewData(samplesFrom(0, 4))))
	require.NoError(t, q.Push(ctx, sample.EndOfStream()))
	require.NoError(t, q.Push(ctx, sample.NewData(samplesFrom(0, 1))))

	require.Eventually(t, func() bool { return len(sink.all()) == 1 }, time.Second, time.Millisecond)

	// Shutdown closes the unfinished second session.
	require.Eventually(t, func() bool { return q.Len() == 0 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("writer did not stop")
	}

	summaries := sink.all()
	require.Len(t, summaries, 2)
	assert.Equal(t, 4, summaries[0].Rows)
	assert.Equal(t, 1, summaries[1].Rows)
}

func TestOSFS_CreateRefusesOverwrite(t *testing.T) {
	fs := OSFS{Dir: filepath.Join(t.TempDir(), "nested")}

	f, err := fs.Create("a.csv")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = fs.Create("a.csv")
	assert.ErrorIs(t, err, os.ErrExist)
}
