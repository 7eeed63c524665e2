package udp

import (
	"context"
	"net"
	"sync"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/slonana-labs/validator-core/internal/telemetry"
)

// SenderConfig tunes batch size and poll cadence.
type SenderConfig struct {
	MaxBatchSize int
	PollInterval time.Duration
}

// DefaultSenderConfig matches the spec's batching defaults.
func DefaultSenderConfig() SenderConfig {
	return SenderConfig{MaxBatchSize: 64, PollInterval: 2 * time.Millisecond}
}

// Sender drains a Queue and flushes batches to the network, using
// golang.org/x/net/ipv4's WriteBatch (a sendmmsg-equivalent) where the
// platform supports it, falling back to sequential WriteTo per packet
// otherwise or on a batch write error.
type Sender struct {
	conn *net.UDPConn
	pc   *ipv4.PacketConn
	cfg  SenderConfig
	log  telemetry.Logger

	bufPool sync.Pool

	sent   uint64
	failed uint64
	mu     sync.Mutex
}

// NewSender wraps conn for batched sends.
func NewSender(conn *net.UDPConn, cfg SenderConfig, log telemetry.Logger) *Sender {
	return &Sender{
		conn: conn,
		pc:   ipv4.NewPacketConn(conn),
		cfg:  cfg,
		log:  log,
		bufPool: sync.Pool{
			New: func() any { return make([]ipv4.Message, 0, cfg.MaxBatchSize) },
		},
	}
}

// Run repeatedly drains q and flushes batches until ctx is cancelled.
func (s *Sender) Run(ctx context.Context, q *Queue) {
	for {
		batch, err := q.DrainBatch(ctx, s.cfg.MaxBatchSize)
		if err != nil {
			return
		}
		s.flush(batch)
	}
}

func (s *Sender) flush(batch []Packet) {
	msgs := s.bufPool.Get().([]ipv4.Message)
	msgs = msgs[:0]
	for _, p := range batch {
		msgs = append(msgs, ipv4.Message{
			Buffers: [][]byte{p.Data},
			Addr:    p.UDPAddr(),
		})
	}

	n, err := s.pc.WriteBatch(msgs, 0)
	if err != nil || n < len(msgs) {
		s.sendFallback(batch[max(n, 0):])
	}

	s.mu.Lock()
	s.sent += uint64(n)
	s.mu.Unlock()

	s.bufPool.Put(msgs)
}

func (s *Sender) sendFallback(batch []Packet) {
	for _, p := range batch {
		if _, err := s.conn.WriteToUDP(p.Data, p.UDPAddr()); err != nil {
			s.mu.Lock()
			s.failed++
			s.mu.Unlock()
			if s.log != nil {
				s.log.Warn("udp send failed", "dest", p.UDPAddr().String(), "error", err.Error())
			}
			continue
		}
		s.mu.Lock()
		s.sent++
		s.mu.Unlock()
	}
}

// Stats returns (sent, failed) counters.
func (s *Sender) Stats() (sent, failed uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent, s.failed
}
