package udp

import (
	"context"
)

// Queue is a three-band priority queue over outbound packets: every Pop
// drains high before normal before low, giving votes and other high
// priority traffic head-of-line precedence without starving the rest as
// long as high-priority volume stays bounded.
type Queue struct {
	high   chan Packet
	normal chan Packet
	low    chan Packet
}

// NewQueue returns a Queue whose three bands each hold up to capacity
// buffered packets before Push blocks.
func NewQueue(capacity int) *Queue {
	return &Queue{
		high:   make(chan Packet, capacity),
		normal: make(chan Packet, capacity),
		low:    make(chan Packet, capacity),
	}
}

// Push enqueues p onto the band its Priority selects, blocking until room
// is available or ctx is cancelled. Use TryPush for a non-blocking attempt.
func (q *Queue) Push(ctx context.Context, p Packet) error {
	ch := q.channelFor(p.Priority)
	select {
	case ch <- p:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPush enqueues p without blocking, returning false if the band is full.
func (q *Queue) TryPush(p Packet) bool {
	ch := q.channelFor(p.Priority)
	select {
	case ch <- p:
		return true
	default:
		return false
	}
}

func (q *Queue) channelFor(priority uint8) chan Packet {
	switch BandOf(priority) {
	case BandHigh:
		return q.high
	case BandNormal:
		return q.normal
	default:
		return q.low
	}
}

// Pop removes and returns one packet, preferring high over normal over low,
// or blocks until one is available or ctx is cancelled.
func (q *Queue) Pop(ctx context.Context) (Packet, error) {
	select {
	case p := <-q.high:
		return p, nil
	default:
	}
	select {
	case p := <-q.normal:
		return p, nil
	default:
	}
	select {
	case p := <-q.high:
		return p, nil
	case p := <-q.normal:
		return p, nil
	case p := <-q.low:
		return p, nil
	case <-ctx.Done():
		return Packet{}, ctx.Err()
	}
}

// DrainBatch pulls up to maxBatchSize packets without blocking once the
// first is obtained, for the sender's batch-building loop.
func (q *Queue) DrainBatch(ctx context.Context, maxBatchSize int) ([]Packet, error) {
	first, err := q.Pop(ctx)
	if err != nil {
		return nil, err
	}
	batch := make([]Packet, 0, maxBatchSize)
	batch = append(batch, first)
	for len(batch) < maxBatchSize {
		p, ok := q.tryPop()
		if !ok {
			break
		}
		batch = append(batch, p)
	}
	return batch, nil
}

func (q *Queue) tryPop() (Packet, bool) {
	select {
	case p := <-q.high:
		return p, true
	default:
	}
	select {
	case p := <-q.normal:
		return p, true
	default:
	}
	select {
	case p := <-q.low:
		return p, true
	default:
	}
	return Packet{}, false
}

// Len reports the approximate number of queued packets across all bands,
// for backpressure monitoring.
func (q *Queue) Len() int {
	return len(q.high) + len(q.normal) + len(q.low)
}
