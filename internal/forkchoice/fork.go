package forkchoice

import (
	"time"

	"github.com/slonana-labs/validator-core/internal/types"
)

// forkID is a stable arena index for a Fork.
type forkID int

const noFork forkID = -1

// Fork is a chain of blocks from a root ancestor to a leaf candidate.
type Fork struct {
	HeadHash                  types.Hash
	RootHash                  types.Hash
	HeadSlot                  types.Slot
	RootSlot                  types.Slot
	StakeWeight               uint64
	ConfirmationCount         uint32
	IsOptimisticallyConfirmed bool
	IsRooted                  bool
	Blocks                    []types.Hash
	LastVoteTime              time.Time
}

type forkArena struct {
	forksByID map[forkID]*Fork
	// blockToFork maps a block's hash to the fork that currently contains
	// it, replacing the raw Fork* aliasing in the original graph.
	blockToFork map[types.Hash]forkID
	nextID      forkID
}

func newForkArena() *forkArena {
	return &forkArena{
		forksByID:   make(map[forkID]*Fork),
		blockToFork: make(map[types.Hash]forkID),
	}
}

func (a *forkArena) insert(f *Fork) forkID {
	id := a.nextID
	a.nextID++
	a.forksByID[id] = f
	for _, h := range f.Blocks {
		a.blockToFork[h] = id
	}
	return id
}

func (a *forkArena) get(id forkID) (*Fork, bool) {
	f, ok := a.forksByID[id]
	return f, ok
}

func (a *forkArena) forkOf(h types.Hash) (forkID, bool) {
	id, ok := a.blockToFork[h]
	return id, ok
}

func (a *forkArena) remove(id forkID) {
	f, ok := a.forksByID[id]
	if !ok {
		return
	}
	for _, h := range f.Blocks {
		if cur, ok := a.blockToFork[h]; ok && cur == id {
			delete(a.blockToFork, h)
		}
	}
	delete(a.forksByID, id)
}

func (a *forkArena) all() []forkID {
	ids := make([]forkID, 0, len(a.forksByID))
	for id := range a.forksByID {
		ids = append(ids, id)
	}
	return ids
}
