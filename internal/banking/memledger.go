package banking

import (
	"sync"

	"github.com/slonana-labs/validator-core/internal/types"
)

// MemLedger is an in-memory LedgerSink for wiring and tests: it tracks only
// the latest committed slot/hash and accepts StoreBlock idempotently.
type MemLedger struct {
	mu         sync.Mutex
	slot       types.Slot
	hash       types.Hash
	stored     map[types.Hash]bool
	blockCount int
}

// NewMemLedger returns a ledger seeded at genesisSlot/genesisHash.
func NewMemLedger(genesisSlot types.Slot, genesisHash types.Hash) *MemLedger {
	return &MemLedger{slot: genesisSlot, hash: genesisHash, stored: make(map[types.Hash]bool)}
}

func (l *MemLedger) GetLatestSlot() types.Slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.slot
}

func (l *MemLedger) GetLatestBlockHash() types.Hash {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hash
}

func (l *MemLedger) StoreBlock(b Block) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stored[b.BlockHash] {
		return nil
	}
	l.stored[b.BlockHash] = true
	l.blockCount++
	if b.Slot > l.slot {
		l.slot = b.Slot
		l.hash = b.BlockHash
	}
	return nil
}

// BlockCount reports how many distinct blocks have been stored.
func (l *MemLedger) BlockCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.blockCount
}

// NoopExecutionEngine accepts every transaction without side effects,
// standing in for the black-box execution engine spec.md §4.4 leaves
// unspecified beyond its (tx) -> error contract.
type NoopExecutionEngine struct{}

func (NoopExecutionEngine) Execute(tx Transaction) error { return nil }
