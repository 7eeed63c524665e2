package forkchoice

import "github.com/slonana-labs/validator-core/internal/types"

// GetHead returns the hash of the currently selected head block.
func (e *Engine) GetHead() types.Hash {
	e.data.RLock()
	defer e.data.RUnlock()
	return e.currentHead
}

// GetRoot returns the hash of the current root block.
func (e *Engine) GetRoot() (types.Hash, types.Slot) {
	e.data.RLock()
	defer e.data.RUnlock()
	return e.currentRoot, e.currentRootSlot
}

// ActiveFork describes one tracked fork for external consumers.
type ActiveFork struct {
	HeadHash                  types.Hash
	RootHash                  types.Hash
	HeadSlot                  types.Slot
	RootSlot                  types.Slot
	StakeWeight               uint64
	IsOptimisticallyConfirmed bool
	IsRooted                  bool
}

// GetActiveForks returns a snapshot of every tracked fork.
func (e *Engine) GetActiveForks() []ActiveFork {
	e.data.RLock()
	defer e.data.RUnlock()
	out := make([]ActiveFork, 0, len(e.forks.forksByID))
	for _, id := range e.forks.all() {
		f, ok := e.forks.get(id)
		if !ok {
			continue
		}
		out = append(out, ActiveFork{
			HeadHash:                  f.HeadHash,
			RootHash:                  f.RootHash,
			HeadSlot:                  f.HeadSlot,
			RootSlot:                  f.RootSlot,
			StakeWeight:               e.supportingStake(f.HeadHash),
			IsOptimisticallyConfirmed: f.IsOptimisticallyConfirmed,
			IsRooted:                  f.IsRooted,
		})
	}
	return out
}

// GetAncestors returns up to max ancestors of hash, nearest first, within
// hash's fork. Returns nil if hash is unknown.
func (e *Engine) GetAncestors(hash types.Hash, max int) []types.Hash {
	e.data.RLock()
	defer e.data.RUnlock()
	forkOf, ok := e.forks.forkOf(hash)
	if !ok {
		return nil
	}
	f, ok := e.forks.get(forkOf)
	if !ok {
		return nil
	}
	idx := indexOfHash(f.Blocks, hash)
	if idx < 0 {
		return nil
	}
	var out []types.Hash
	for i := idx - 1; i >= 0 && len(out) < max; i-- {
		out = append(out, f.Blocks[i])
	}
	return out
}

// GetDescendants returns every block that descends from hash within hash's
// fork, nearest first. Returns nil if hash is unknown.
func (e *Engine) GetDescendants(hash types.Hash) []types.Hash {
	e.data.RLock()
	defer e.data.RUnlock()
	forkOf, ok := e.forks.forkOf(hash)
	if !ok {
		return nil
	}
	f, ok := e.forks.get(forkOf)
	if !ok {
		return nil
	}
	idx := indexOfHash(f.Blocks, hash)
	if idx < 0 {
		return nil
	}
	var out []types.Hash
	for i := idx + 1; i < len(f.Blocks); i++ {
		out = append(out, f.Blocks[i])
	}
	return out
}

// IsAncestor reports whether candidate is an ancestor of hash (or equal).
func (e *Engine) IsAncestor(candidate, hash types.Hash) bool {
	if candidate == hash {
		return true
	}
	for _, h := range e.GetAncestors(hash, 1<<30) {
		if h == candidate {
			return true
		}
	}
	return false
}

// IsOptimisticallyConfirmed reports whether hash's block is confirmed.
func (e *Engine) IsOptimisticallyConfirmed(hash types.Hash) bool {
	e.data.RLock()
	defer e.data.RUnlock()
	meta, ok := e.blocksArena.byHashLookup(hash)
	if !ok {
		return false
	}
	return meta.IsConfirmed
}

// IsRooted reports whether hash's block lies at or below the current root.
func (e *Engine) IsRooted(hash types.Hash) bool {
	e.data.RLock()
	defer e.data.RUnlock()
	if hash == e.currentRoot {
		return true
	}
	meta, ok := e.blocksArena.byHashLookup(hash)
	if !ok {
		return false
	}
	return meta.Slot <= e.currentRootSlot
}

// GetStakeWeight returns the supporting stake accumulated on hash's block,
// or zero if hash is unknown.
func (e *Engine) GetStakeWeight(hash types.Hash) uint64 {
	e.data.RLock()
	defer e.data.RUnlock()
	return e.supportingStake(hash)
}

// GetConfirmationCount returns the confirmation count recorded on hash's
// block, or zero if unknown.
func (e *Engine) GetConfirmationCount(hash types.Hash) uint32 {
	e.data.RLock()
	defer e.data.RUnlock()
	meta, ok := e.blocksArena.byHashLookup(hash)
	if !ok {
		return 0
	}
	return meta.ConfirmationCount
}

// VerifyConsistency is an advisory read-only check: every fork's block chain
// must end at its recorded HeadHash and every block on it must exist in the
// arena. It never mutates state.
func (e *Engine) VerifyConsistency() bool {
	e.data.RLock()
	defer e.data.RUnlock()
	for _, id := range e.forks.all() {
		f, ok := e.forks.get(id)
		if !ok {
			continue
		}
		if len(f.Blocks) == 0 || f.Blocks[len(f.Blocks)-1] != f.HeadHash {
			return false
		}
		for _, h := range f.Blocks {
			if _, ok := e.blocksArena.byHashLookup(h); !ok {
				return false
			}
		}
	}
	return true
}
