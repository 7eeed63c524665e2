// Package lockout implements the Tower BFT lockout algebra: a single vote's
// commitment window and the sorted set operations the tower (internal/tower)
// builds on.
package lockout

import (
	"encoding/binary"
	"sort"

	"github.com/slonana-labs/validator-core/internal/types"
)

// MaxConfirmationCount caps the exponent used by Lockout.Period, per spec.
const MaxConfirmationCount = 32

// Lockout commits a vote on Slot for 2^ConfirmationCount further slots.
type Lockout struct {
	Slot              types.Slot
	ConfirmationCount uint32
}

// Period returns min(2^ConfirmationCount, 2^32).
func (l Lockout) Period() uint64 {
	cc := l.ConfirmationCount
	if cc > MaxConfirmationCount {
		cc = MaxConfirmationCount
	}
	period := uint64(1) << cc
	const max = uint64(1) << 32
	if period > max {
		return max
	}
	return period
}

// LocksOut reports whether this lockout prevents voting on slot s:
// l.Slot < s <= l.Slot + Period().
func (l Lockout) LocksOut(s types.Slot) bool {
	return s > l.Slot && uint64(s) <= uint64(l.Slot)+l.Period()
}

// ExpiredAt reports whether the lockout has expired as of currentSlot.
func (l Lockout) ExpiredAt(currentSlot types.Slot) bool {
	return uint64(currentSlot) >= uint64(l.Slot)+l.Period()
}

// Set is an ascending-by-slot collection of non-conflicting lockouts.
type Set struct {
	lockouts []Lockout
}

// NewSet returns an empty lockout set.
func NewSet() *Set {
	return &Set{}
}

// Lockouts returns the underlying ascending slice. Callers must not mutate it.
func (s *Set) Lockouts() []Lockout {
	return s.lockouts
}

// Len reports the number of lockouts held.
func (s *Set) Len() int {
	return len(s.lockouts)
}

// Add inserts lockout, replacing any existing entry for the same slot and
// preserving ascending order.
func (s *Set) Add(l Lockout) {
	i := sort.Search(len(s.lockouts), func(i int) bool {
		return s.lockouts[i].Slot >= l.Slot
	})
	if i < len(s.lockouts) && s.lockouts[i].Slot == l.Slot {
		s.lockouts[i] = l
		return
	}
	s.lockouts = append(s.lockouts, Lockout{})
	copy(s.lockouts[i+1:], s.lockouts[i:])
	s.lockouts[i] = l
}

// RemoveExpired drops every lockout expired as of currentSlot and returns
// the count removed.
func (s *Set) RemoveExpired(currentSlot types.Slot) int {
	kept := s.lockouts[:0]
	removed := 0
	for _, l := range s.lockouts {
		if l.ExpiredAt(currentSlot) {
			removed++
			continue
		}
		kept = append(kept, l)
	}
	s.lockouts = kept
	return removed
}

// IsSlotLockedOut reports whether any lockout in the set locks out s.
func (s *Set) IsSlotLockedOut(slotToCheck types.Slot) bool {
	for _, l := range s.lockouts {
		if l.LocksOut(slotToCheck) {
			return true
		}
	}
	return false
}

// GetActive returns the lockouts that have not yet expired as of currentSlot.
func (s *Set) GetActive(currentSlot types.Slot) []Lockout {
	active := make([]Lockout, 0, len(s.lockouts))
	for _, l := range s.lockouts {
		if !l.ExpiredAt(currentSlot) {
			active = append(active, l)
		}
	}
	return active
}

// UpdateConfirmationCount sets the confirmation count on the lockout for
// slot, if one exists.
func (s *Set) UpdateConfirmationCount(slot types.Slot, count uint32) bool {
	for i := range s.lockouts {
		if s.lockouts[i].Slot == slot {
			s.lockouts[i].ConfirmationCount = count
			return true
		}
	}
	return false
}

// Validate reports whether the set is strictly ascending by slot and
// pairwise non-conflicting (spec.md's validate_lockouts).
func Validate(lockouts []Lockout) bool {
	for i := 1; i < len(lockouts); i++ {
		if lockouts[i-1].Slot >= lockouts[i].Slot {
			return false
		}
	}
	for i, a := range lockouts {
		for j, b := range lockouts {
			if i == j {
				continue
			}
			if a.LocksOut(b.Slot) {
				return false
			}
		}
	}
	return true
}

// Serialize encodes the set as a u32 count prefix followed by little-endian
// {u64 slot, u32 count} per lockout.
func (s *Set) Serialize() []byte {
	buf := make([]byte, 4+12*len(s.lockouts))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(s.lockouts)))
	off := 4
	for _, l := range s.lockouts {
		binary.LittleEndian.PutUint64(buf[off:off+8], uint64(l.Slot))
		binary.LittleEndian.PutUint32(buf[off+8:off+12], l.ConfirmationCount)
		off += 12
	}
	return buf
}

// Deserialize decodes a buffer produced by Serialize into a new Set.
func Deserialize(data []byte) (*Set, error) {
	if len(data) < 4 {
		return nil, types.NewError(types.KindInvalidInput, "lockout set: truncated header", nil)
	}
	count := binary.LittleEndian.Uint32(data[0:4])
	want := 4 + 12*int(count)
	if len(data) < want {
		return nil, types.NewError(types.KindInvalidInput, "lockout set: truncated body", nil)
	}
	s := &Set{lockouts: make([]Lockout, 0, count)}
	off := 4
	for i := uint32(0); i < count; i++ {
		slot := types.Slot(binary.LittleEndian.Uint64(data[off : off+8]))
		cc := binary.LittleEndian.Uint32(data[off+8 : off+12])
		s.lockouts = append(s.lockouts, Lockout{Slot: slot, ConfirmationCount: cc})
		off += 12
	}
	return s, nil
}

// SerializeOne encodes a single lockout as little-endian {u64 slot, u32 count}.
func SerializeOne(l Lockout) []byte {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(l.Slot))
	binary.LittleEndian.PutUint32(buf[8:12], l.ConfirmationCount)
	return buf
}
