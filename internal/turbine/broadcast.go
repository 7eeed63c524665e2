package turbine

import (
	"sync"
	"time"

	"github.com/slonana-labs/validator-core/internal/shred"
	"github.com/slonana-labs/validator-core/internal/telemetry"
	"github.com/slonana-labs/validator-core/internal/types"
)

// Parameters tunes the broadcast/retransmit policy.
type Parameters struct {
	Fanout                int
	MaxRetransmitPeers    int
	MaxRetransmitAttempts int
	TrackingMaxAge        time.Duration
}

// DefaultParameters returns the fanout-8, R-4 defaults.
func DefaultParameters() Parameters {
	return Parameters{
		Fanout:                8,
		MaxRetransmitPeers:    DefaultMaxRetransmitPeers,
		MaxRetransmitAttempts: 1,
		TrackingMaxAge:        30 * time.Second,
	}
}

// SendFunc delivers a shred to a set of peer nodes.
type SendFunc func(s shred.Shred, targets []Node)

// ReceiveFunc is invoked once per newly-seen shred.
type ReceiveFunc func(s shred.Shred)

type trackKey struct {
	slot  types.Slot
	index uint32
}

type trackEntry struct {
	seenAt   time.Time
	attempts int
}

// Broadcaster drives the send/receive/retransmit loop for one node's place
// in a Tree, deduplicating shreds it has already handled.
type Broadcaster struct {
	mu     sync.Mutex
	tree   *Tree
	self   Node
	params Parameters
	send   SendFunc
	log    telemetry.Logger

	seen map[trackKey]*trackEntry

	duplicates uint64
	forwarded  uint64
}

// NewBroadcaster builds a Broadcaster for self's position in tree.
func NewBroadcaster(tree *Tree, self Node, params Parameters, send SendFunc, log telemetry.Logger) *Broadcaster {
	return &Broadcaster{
		tree:   tree,
		self:   self,
		params: params,
		send:   send,
		log:    log,
		seen:   make(map[trackKey]*trackEntry),
	}
}

// Broadcast sends s to self's children, and additionally to hash-mix
// retransmit peers while s.attempts < MaxRetransmitAttempts.
func (b *Broadcaster) Broadcast(s shred.Shred) {
	b.mu.Lock()
	key := trackKey{s.Slot, s.Index}
	entry, ok := b.seen[key]
	if !ok {
		entry = &trackEntry{}
		b.seen[key] = entry
	}
	entry.seenAt = time.Now()

	i := b.tree.IndexOf(b.self)
	targets := b.tree.ChildrenOf(b.self)
	if i >= 0 && entry.attempts < b.params.MaxRetransmitAttempts {
		targets = append(targets, b.tree.RetransmitPeers(i, b.params.MaxRetransmitPeers)...)
		entry.attempts++
	}
	b.forwarded++
	b.mu.Unlock()

	if len(targets) > 0 {
		b.send(s, targets)
	}
}

// Receive handles an inbound shred: drops duplicates, otherwise validates,
// invokes onReceive, and forwards to self's children.
func (b *Broadcaster) Receive(s shred.Shred, onReceive ReceiveFunc) error {
	key := trackKey{s.Slot, s.Index}

	b.mu.Lock()
	if _, ok := b.seen[key]; ok {
		b.duplicates++
		b.mu.Unlock()
		return nil
	}
	b.seen[key] = &trackEntry{seenAt: time.Now()}
	b.mu.Unlock()

	if err := s.Validate(); err != nil {
		return err
	}
	if onReceive != nil {
		onReceive(s)
	}
	b.Broadcast(s)
	return nil
}

// CleanupOlderThan removes tracking entries older than maxAge, relative to
// now, bounding memory for long-running nodes.
func (b *Broadcaster) CleanupOlderThan(now time.Time, maxAge time.Duration) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	removed := 0
	for k, e := range b.seen {
		if now.Sub(e.seenAt) > maxAge {
			delete(b.seen, k)
			removed++
		}
	}
	return removed
}

// Stats returns (duplicates, forwarded) counters.
func (b *Broadcaster) Stats() (duplicates, forwarded uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.duplicates, b.forwarded
}
