// Package forkchoice implements the block graph, vote aggregation and
// stake-weighted head selection for the validator core.
package forkchoice

import (
	"time"

	"github.com/slonana-labs/validator-core/internal/types"
)

// blockID is a stable arena index for a BlockMetadata entry, replacing the
// raw-pointer aliasing pattern of the original block graph.
type blockID int

const noBlock blockID = -1

// BlockMetadata describes one tracked block in the graph.
type BlockMetadata struct {
	Hash              types.Hash
	ParentHash        types.Hash
	Slot              types.Slot
	StakeWeight       uint64
	ConfirmationCount uint32
	IsProcessed       bool
	IsConfirmed       bool
	Voters            map[types.PublicKey]struct{}
	ArrivalTime       time.Time
}

func newBlockMetadata(hash, parent types.Hash, slot types.Slot) *BlockMetadata {
	return &BlockMetadata{
		Hash:        hash,
		ParentHash:  parent,
		Slot:        slot,
		Voters:      make(map[types.PublicKey]struct{}),
		ArrivalTime: time.Now(),
	}
}

// blockArena owns every tracked BlockMetadata, indexed by blockID. Ids come
// from a counter that only grows, so an id is never reused; garbage
// collection removes a block from both the id map and the hash index.
type blockArena struct {
	blocksByID map[blockID]*BlockMetadata
	byHash     map[types.Hash]blockID
	nextID     blockID
}

func newBlockArena() *blockArena {
	return &blockArena{
		blocksByID: make(map[blockID]*BlockMetadata),
		byHash:     make(map[types.Hash]blockID),
	}
}

func (a *blockArena) insert(b *BlockMetadata) blockID {
	id := a.nextID
	a.nextID++
	a.blocksByID[id] = b
	a.byHash[b.Hash] = id
	return id
}

func (a *blockArena) get(id blockID) (*BlockMetadata, bool) {
	b, ok := a.blocksByID[id]
	return b, ok
}

func (a *blockArena) idForHash(h types.Hash) (blockID, bool) {
	id, ok := a.byHash[h]
	return id, ok
}

func (a *blockArena) byHashLookup(h types.Hash) (*BlockMetadata, bool) {
	id, ok := a.byHash[h]
	if !ok {
		return nil, false
	}
	return a.get(id)
}

// remove drops a block from the arena entirely. Used only by garbage
// collection, which has already verified the block is unreferenced.
func (a *blockArena) remove(id blockID) {
	b, ok := a.blocksByID[id]
	if !ok {
		return
	}
	delete(a.blocksByID, id)
	delete(a.byHash, b.Hash)
}

func (a *blockArena) len() int { return len(a.blocksByID) }
