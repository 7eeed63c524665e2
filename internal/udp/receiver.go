package udp

import (
	"context"
	"net"
	"sync"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/slonana-labs/validator-core/internal/telemetry"
)

// ReceiverConfig tunes batch size and per-packet buffer size.
type ReceiverConfig struct {
	MaxBatchSize int
	BufferSize   int
	ReadTimeout  time.Duration
}

// DefaultReceiverConfig matches the spec's batching defaults.
func DefaultReceiverConfig() ReceiverConfig {
	return ReceiverConfig{MaxBatchSize: 64, BufferSize: 1280, ReadTimeout: 200 * time.Millisecond}
}

// Handler processes one received datagram.
type Handler func(data []byte, from *net.UDPAddr)

// Receiver drains the socket in batches via ipv4.PacketConn.ReadBatch (a
// recvmmsg-equivalent), reusing a pool of fixed-size buffers per read to
// avoid per-packet allocation.
type Receiver struct {
	conn *net.UDPConn
	pc   *ipv4.PacketConn
	cfg  ReceiverConfig
	log  telemetry.Logger

	bufPool sync.Pool

	received uint64
	mu       sync.Mutex
}

// NewReceiver wraps conn for batched reads.
func NewReceiver(conn *net.UDPConn, cfg ReceiverConfig, log telemetry.Logger) *Receiver {
	return &Receiver{
		conn: conn,
		pc:   ipv4.NewPacketConn(conn),
		cfg:  cfg,
		log:  log,
		bufPool: sync.Pool{
			New: func() any { return make([]byte, cfg.BufferSize) },
		},
	}
}

// Run reads batches and dispatches each datagram to handle until ctx is
// cancelled or the socket errors.
func (r *Receiver) Run(ctx context.Context, handle Handler) error {
	msgs := make([]ipv4.Message, r.cfg.MaxBatchSize)
	bufs := make([][]byte, r.cfg.MaxBatchSize)
	for i := range msgs {
		buf := r.bufPool.Get().([]byte)
		bufs[i] = buf
		msgs[i] = ipv4.Message{Buffers: [][]byte{buf}}
	}
	defer func() {
		for _, b := range bufs {
			r.bufPool.Put(b)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		r.conn.SetReadDeadline(time.Now().Add(r.cfg.ReadTimeout))
		n, err := r.pc.ReadBatch(msgs, 0)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return err
		}

		r.mu.Lock()
		r.received += uint64(n)
		r.mu.Unlock()

		for i := 0; i < n; i++ {
			addr, _ := msgs[i].Addr.(*net.UDPAddr)
			handle(bufs[i][:msgs[i].N], addr)
		}
	}
}

// Received returns the total datagrams read.
func (r *Receiver) Received() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.received
}
