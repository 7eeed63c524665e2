// Package validator holds the stake-weighted validator set shared by fork
// choice (stake lookups) and turbine (tree construction), modeled on the
// teacher's validators.Manager/Set split (validators/validators.go) but
// collapsed to the single-subnet case this spec needs.
package validator

import (
	"sort"
	"sync"

	"github.com/slonana-labs/validator-core/internal/types"
)

// Info describes one validator's identity and stake.
type Info struct {
	Identity types.PublicKey
	Stake    uint64
}

// Set is a thread-safe stake table.
type Set struct {
	mu   sync.RWMutex
	byID map[types.PublicKey]uint64
}

// NewSet returns an empty validator set.
func NewSet() *Set {
	return &Set{byID: make(map[types.PublicKey]uint64)}
}

// Upsert records or overwrites a validator's stake.
func (s *Set) Upsert(id types.PublicKey, stake uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[id] = stake
}

// GetWeight returns the stake for id, or 0 if unknown.
func (s *Set) GetWeight(id types.PublicKey) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byID[id]
}

// TotalWeight returns the sum of all known stakes.
func (s *Set) TotalWeight() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total uint64
	for _, w := range s.byID {
		total += w
	}
	return total
}

// Len reports the number of known validators.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Sorted returns all validators ordered by stake descending, ties broken by
// identity bytes ascending for determinism.
func (s *Set) Sorted() []Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Info, 0, len(s.byID))
	for id, w := range s.byID {
		out = append(out, Info{Identity: id, Stake: w})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Stake != out[j].Stake {
			return out[i].Stake > out[j].Stake
		}
		return types.Hash(out[i].Identity).Less(types.Hash(out[j].Identity))
	})
	return out
}
