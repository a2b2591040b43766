package telemetry

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/itohio/loadrig/pkg/clock"
	"github.com/itohio/loadrig/pkg/config"
	"github.com/itohio/loadrig/pkg/sample"
	"go.uber.org/zap"
)

// maxDatagram keeps batches below a typical Ethernet MTU.
const maxDatagram = 1400

// Sender streams samples as Influx line protocol to a UDP listener such as
// Telegraf. Observe never blocks: samples are dropped when the buffer is full.
type Sender struct {
	conn        io.WriteCloser
	ch          chan sample.Sample
	measurement string
	epoch       time.Time // wall time at monotonic zero
	logger      *zap.Logger

	sent    atomic.Uint64
	dropped atomic.Uint64
}

// Dial connects a sender to cfg.Addr over UDP.
func Dial(cfg config.TelemetryConfig, clk clock.Clock, logger *zap.Logger) (*Sender, error) {
	addr, err := net.ResolveUDPAddr("udp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("resolve telemetry address %s: %w", cfg.Addr, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial telemetry address %s: %w", cfg.Addr, err)
	}
	return New(conn, cfg, clk, logger), nil
}

// New creates a sender writing datagrams to conn.
func New(conn io.WriteCloser, cfg config.TelemetryConfig, clk clock.Clock, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	buffer := cfg.Buffer
	if buffer < 1 {
		buffer = 1
	}
	return &Sender{
		conn:        conn,
		ch:          make(chan sample.Sample, buffer),
		measurement: cfg.Measurement,
		epoch:       clk.Wall().Add(-clk.Now()),
		logger:      logger,
	}
}

// Observe queues a sample for sending.
func (s *Sender) Observe(smp sample.Sample) {
	select {
	case s.ch <- smp:
	default:
		s.dropped.Add(1)
	}
}

// Run sends queued samples until ctx is cancelled, then closes the connection.
func (s *Sender) Run(ctx context.Context) error {
	defer s.conn.Close()

	buf := make([]byte, 0, maxDatagram+128)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("[telemetry] received shutdown signal",
				zap.Uint64("sent", s.Sent()),
				zap.Uint64("dropped", s.Dropped()),
			)
			return ctx.Err()
		case smp := <-s.ch:
			buf = s.AppendLine(buf[:0], smp)
			n := 1
		batch:
			for len(buf) < maxDatagram {
				select {
				case smp := <-s.ch:
					buf = s.AppendLine(buf, smp)
					n++
				default:
					break batch
				}
			}

			if _, err := s.conn.Write(buf); err != nil {
				s.logger.Warn("[telemetry] error writing datagram", zap.Error(err), zap.Int("samples", n))
				continue
			}
			s.sent.Add(uint64(n))
		}
	}
}

// AppendLine appends one line of Influx line protocol for smp to buf:
//
//	loadcell value=12.5,motor=1i 1709474709000000000
func (s *Sender) AppendLine(buf []byte, smp sample.Sample) []byte {
	buf = append(buf, s.measurement...)
	buf = append(buf, " value="...)
	buf = strconv.AppendFloat(buf, float64(smp.Value), 'f', -1, 32)
	buf = append(buf, ",motor="...)
	if smp.MotorActive {
		buf = append(buf, '1')
	} else {
		buf = append(buf, '0')
	}
	buf = append(buf, "i "...)
	buf = strconv.AppendInt(buf, s.epoch.Add(smp.Timestamp).UnixNano(), 10)
	return append(buf, '\n')
}

// Sent returns the number of samples written to the connection.
func (s *Sender) Sent() uint64 {
	return s.sent.Load()
}

// Dropped returns the number of samples discarded because the buffer was full.
func (s *Sender) Dropped() uint64 {
	return s.dropped.Load()
}
