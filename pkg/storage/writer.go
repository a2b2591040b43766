package storage

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/itohio/loadrig/pkg/clock"
	"github.com/itohio/loadrig/pkg/sample"
	"go.uber.org/zap"
)

// Summary describes a finished session file.
type Summary struct {
	Name    string
	Started time.Time
	Ended   time.Time
	Rows    int
	Dropped int  // Rows lost because the file could not be opened
	Failed  bool // Open or write failures happened during the session
}

// Sink receives a Summary whenever the writer closes a session.
type Sink interface {
	SessionClosed(Summary)
}

// Writer drains a chunk queue into one CSV file per recording session.
// It is the only component doing file I/O.
type Writer struct {
	fs     FS
	clk    clock.Clock
	logger *zap.Logger
	sink   Sink

	file    File
	buf     *bufio.Writer
	csv     *csv.Writer
	current Summary
	active  bool // A session is in progress, with or without an open file
}

// NewWriter creates a writer storing files in fs. Sink may be nil.
func NewWriter(fs FS, clk clock.Clock, sink Sink, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		fs:     fs,
		clk:    clk,
		sink:   sink,
		logger: logger,
	}
}

// Run pops chunks until ctx is cancelled. Storage failures never stop the
// loop. An open file is closed on return.
func (w *Writer) Run(ctx context.Context, q *sample.Queue) error {
	defer w.abort()

	for {
		c, err := q.Pop(ctx)
		if err != nil {
			w.logger.Info("[writer] received shutdown signal")
			return err
		}
		w.Handle(c)
	}
}

// Handle processes one chunk.
func (w *Writer) Handle(c sample.Chunk) {
	if c.IsEnd() {
		w.finish()
		return
	}

	if !w.active {
		w.begin()
	}

	if w.file == nil {
		w.current.Dropped += c.Len()
		return
	}

	if err := w.writeChunk(c); err != nil {
		w.current.Failed = true
		w.logger.Error("[writer] error writing chunk", zap.Error(err), zap.String("file", w.current.Name), zap.Int("samples", c.Len()))
	}
}

// begin starts a session and opens its file.
func (w *Writer) begin() {
	wall := w.clk.Wall()
	w.active = true
	w.current = Summary{Started: wall}

	if !clock.Synced(wall) {
		w.logger.Warn("[writer] wall clock not synchronized, session name may be meaningless", zap.Time("wall", wall))
	}

	file, name, err := w.open(wall)
	if err != nil {
		w.current.Name = SessionName(wall)
		w.current.Failed = true
		w.logger.Error("[writer] error opening a file, dropping session", zap.Error(err), zap.String("file", w.current.Name))
		return
	}

	w.file = file
	w.current.Name = name
	w.buf = bufio.NewWriter(file)
	w.csv = csv.NewWriter(w.buf)

	if err := w.csv.Write(Header); err != nil {
		w.current.Failed = true
		w.logger.Error("[writer] error writing header", zap.Error(err), zap.String("file", name))
	}

	w.logger.Info("[writer] session file opened", zap.String("file", name))
}

// open creates a file named after wall, adding a suffix if the name is taken.
func (w *Writer) open(wall time.Time) (File, string, error) {
	for n := range maxNameAttempts {
		name := suffixedName(wall, n)
		file, err := w.fs.Create(name)
		if err == nil {
			return file, name, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, name, fmt.Errorf("%w: %w", ErrOpen, err)
		}
	}
	return nil, "", fmt.Errorf("%w: no free name for %s", ErrOpen, SessionName(wall))
}

// writeChunk appends one row per sample and flushes to durable storage.
func (w *Writer) writeChunk(c sample.Chunk) error {
	row := make([]string, 3)
	for _, s := range c.Samples() {
		row[0] = strconv.FormatInt(int64(s.Timestamp), 10)
		row[1] = strconv.FormatFloat(float64(s.Value), 'f', -1, 32)
		row[2] = "0"
		if s.MotorActive {
			row[2] = "1"
		}
		if err := w.csv.Write(row); err != nil {
			return fmt.Errorf("%w: %w", ErrWrite, err)
		}
		w.current.Rows++
	}
	return w.flush()
}

// flush pushes buffered rows through to the file and syncs it.
func (w *Writer) flush() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

// finish closes the session on the end-of-stream marker. Without an active
// session it does nothing.
func (w *Writer) finish() {
	if !w.active {
		return
	}

	if w.file != nil {
		if err := w.flush(); err != nil {
			w.current.Failed = true
			w.logger.Error("[writer] error flushing file", zap.Error(err), zap.String("file", w.current.Name))
		}
		if err := w.file.Close(); err != nil {
			w.current.Failed = true
			w.logger.Error("[writer] error closing file", zap.Error(err), zap.String("file", w.current.Name))
		}
	}

	w.current.Ended = w.clk.Wall()
	summary := w.current

	w.file = nil
	w.buf = nil
	w.csv = nil
	w.active = false
	w.current = Summary{}

	w.logger.Info("[writer] session closed",
		zap.String("file", summary.Name),
		zap.Int("rows", summary.Rows),
		zap.Int("dropped", summary.Dropped),
		zap.Bool("failed", summary.Failed),
	)

	if w.sink != nil {
		w.sink.SessionClosed(summary)
	}
}

// abort closes a session left open at shutdown.
func (w *Writer) abort() {
	if w.active {
		w.logger.Warn("[writer] closing session without end of stream", zap.String("file", w.current.Name))
		w.finish()
	}
}
