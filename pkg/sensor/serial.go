package sensor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

const (
	// DefaultBaudRate is the baud rate of the load-cell bridge firmware.
	DefaultBaudRate = 115200
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial reads a load-cell bridge MCU that streams "micros,raw" lines.
// The latest reading is cached; each reading is handed out at most once.
type Serial struct {
	port     string
	baudRate int
	logger   *zap.Logger

	conn      io.ReadCloser
	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
	done      chan struct{}

	latest int32
	fresh  bool
	lines  uint64
	bad    uint64
}

// NewSerial creates a bridge reader for the given port and baud rate.
func NewSerial(port string, baudRate int, logger *zap.Logger) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Serial{
		port:     port,
		baudRate: baudRate,
		logger:   logger,
	}
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{
			Name:        name,
			Description: name,
		})
	}

	return result, nil
}

// Connect opens the serial port and starts reading lines.
func (s *Serial) Connect() error {
	port, err := serial.Open(s.port, &serial.Mode{
		BaudRate: s.baudRate,
	})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.port, err)
	}

	if err := port.ResetInputBuffer(); err != nil {
		s.logger.Warn("[sensor] could not reset input buffer", zap.Error(err), zap.String("portName", s.port))
	}

	if err := s.attach(port); err != nil {
		port.Close()
		return err
	}
	return nil
}

// attach starts reading lines from conn.
func (s *Serial) attach(conn io.ReadCloser) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return fmt.Errorf("already connected")
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.conn = conn
	s.connected = true
	s.done = make(chan struct{})

	go s.readLines(s.ctx, conn, s.done)

	return nil
}

// Close stops reading and closes the port.
func (s *Serial) Close() error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return nil
	}

	s.cancel()
	err := s.conn.Close()
	s.conn = nil
	s.connected = false
	done := s.done
	s.mu.Unlock()

	<-done

	if err != nil {
		return fmt.Errorf("failed to close serial port %s: %w", s.port, err)
	}
	return nil
}

// IsConnected returns whether the port is open.
func (s *Serial) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// ReadRaw returns the latest reading received since the previous call, or
// ErrUnavailable when no new line has arrived.
func (s *Serial) ReadRaw() (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.fresh {
		return 0, ErrUnavailable
	}
	s.fresh = false
	return s.latest, nil
}

// Stats returns the number of parsed and rejected lines.
func (s *Serial) Stats() (lines, bad uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lines, s.bad
}

// readLines parses lines until the context is cancelled or the port fails.
func (s *Serial) readLines(ctx context.Context, conn io.Reader, done chan<- struct{}) {
	defer close(done)

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		_, raw, err := parseLine(line)
		s.mu.Lock()
		if err != nil {
			s.bad++
		} else {
			s.latest = raw
			s.fresh = true
			s.lines++
		}
		s.mu.Unlock()

		if err != nil {
			s.logger.Debug("[sensor] failed to parse line", zap.Error(err), zap.String("line", line))
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil && !errors.Is(err, io.EOF) {
		s.logger.Warn("[sensor] error reading from serial port", zap.Error(err), zap.String("portName", s.port))
	}
}

// parseLine parses a bridge line.
// Format: board_micros,raw
// Example: 1234567,8388112
func parseLine(line string) (uint64, int32, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid line format: expected 2 comma-separated values, got %d", len(parts))
	}

	micros, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid timestamp: %w", err)
	}

	raw, err := strconv.ParseInt(parts[1], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid reading: %w", err)
	}

	// HX711 output is 24-bit two's complement.
	if raw < -(1<<23) || raw >= 1<<23 {
		return 0, 0, fmt.Errorf("reading out of range: %d", raw)
	}

	return micros, int32(raw), nil
}
