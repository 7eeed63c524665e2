// Package tower implements Tower BFT: the per-validator stack of lockouts
// that enforces vote safety, modeled on the teacher's confidence/threshold
// state machines but specialized to spec.md's §4.3 fixed rules rather than
// a generic sampling protocol.
package tower

import (
	"encoding/binary"
	"sync"

	"github.com/slonana-labs/validator-core/internal/lockout"
	"github.com/slonana-labs/validator-core/internal/types"
)

// MaxHeight is the maximum number of lockouts a tower may hold before the
// oldest is rooted.
const MaxHeight = 32

// Tower is a single validator's vote history. One mutex guards the whole
// structure; writers hold it through a full record-vote cycle.
type Tower struct {
	mu           sync.Mutex
	lockouts     *lockout.Set
	rootSlot     types.Slot
	lastVoteSlot types.Slot
	voted        bool
}

// New returns a Tower rooted at rootSlot with no recorded votes.
func New(rootSlot types.Slot) *Tower {
	return &Tower{
		lockouts: lockout.NewSet(),
		rootSlot: rootSlot,
	}
}

// RootSlot returns the tower's current root.
func (t *Tower) RootSlot() types.Slot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rootSlot
}

// LastVoteSlot returns the most recently recorded vote slot.
func (t *Tower) LastVoteSlot() types.Slot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastVoteSlot
}

// Height returns the number of lockouts currently held.
func (t *Tower) Height() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lockouts.Len()
}

// Lockouts returns a snapshot of the held lockouts, ascending by slot.
func (t *Tower) Lockouts() []lockout.Lockout {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]lockout.Lockout, len(t.lockouts.Lockouts()))
	copy(out, t.lockouts.Lockouts())
	return out
}

// CanVoteOn reports whether s is legal to vote on: above root and the last
// vote, and not locked out by any held lockout.
func (t *Tower) CanVoteOn(s types.Slot) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.canVoteOnLocked(s)
}

func (t *Tower) canVoteOnLocked(s types.Slot) bool {
	if s <= t.rootSlot {
		return false
	}
	if t.voted && s <= t.lastVoteSlot {
		return false
	}
	return !t.lockouts.IsSlotLockedOut(s)
}

// RecordVote appends a vote on s, failing if CanVoteOn(s) is false. Once the
// tower would exceed MaxHeight, the oldest lockout's slot is promoted to the
// new root.
func (t *Tower) RecordVote(s types.Slot) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.canVoteOnLocked(s) {
		return types.NewError(types.KindInvalidInput, "vote illegal: slot locked out or not ahead of root/last vote", nil)
	}

	t.lockouts.Add(lockout.Lockout{Slot: s, ConfirmationCount: 0})
	t.lastVoteSlot = s
	t.voted = true

	if t.lockouts.Len() > MaxHeight {
		oldest := t.lockouts.Lockouts()[0]
		t.rootSlot = oldest.Slot
		remaining := t.lockouts.Lockouts()[1:]
		kept := lockout.NewSet()
		for _, l := range remaining {
			kept.Add(l)
		}
		t.lockouts = kept
	}
	return nil
}

// UpdateConfirmationCount mutates the confirmation count on slot's lockout,
// reporting whether an entry existed.
func (t *Tower) UpdateConfirmationCount(slot types.Slot, count uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lockouts.UpdateConfirmationCount(slot, count)
}

// CanSwitchToFork reports whether no currently held lockout covers slot s.
func (t *Tower) CanSwitchToFork(s types.Slot) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.lockouts.IsSlotLockedOut(s)
}

// ResetToRoot clears all lockouts and sets both root and last-vote slot to
// newRoot.
func (t *Tower) ResetToRoot(newRoot types.Slot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lockouts = lockout.NewSet()
	t.rootSlot = newRoot
	t.lastVoteSlot = newRoot
	t.voted = false
}

// IsValid asserts strictly ascending lockouts with no pairwise conflict and
// root_slot <= last_vote_slot.
func (t *Tower) IsValid() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rootSlot > t.lastVoteSlot {
		return false
	}
	return lockout.Validate(t.lockouts.Lockouts())
}

// Serialize encodes {root_slot, last_vote_slot, count, (slot, cc)...}
// little-endian.
func (t *Tower) Serialize() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	ls := t.lockouts.Lockouts()
	buf := make([]byte, 20+12*len(ls))
	binary.LittleEndian.PutUint64(buf[0:8], uint64(t.rootSlot))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(t.lastVoteSlot))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(len(ls)))
	off := 20
	for _, l := range ls {
		binary.LittleEndian.PutUint64(buf[off:off+8], uint64(l.Slot))
		binary.LittleEndian.PutUint32(buf[off+8:off+12], l.ConfirmationCount)
		off += 12
	}
	return buf
}

// Deserialize decodes a buffer produced by Serialize into a new Tower.
func Deserialize(data []byte) (*Tower, error) {
	if len(data) < 20 {
		return nil, types.NewError(types.KindInvalidInput, "tower: truncated header", nil)
	}
	rootSlot := types.Slot(binary.LittleEndian.Uint64(data[0:8]))
	lastVoteSlot := types.Slot(binary.LittleEndian.Uint64(data[8:16]))
	count := binary.LittleEndian.Uint32(data[16:20])
	want := 20 + 12*int(count)
	if len(data) < want {
		return nil, types.NewError(types.KindInvalidInput, "tower: truncated body", nil)
	}
	set := lockout.NewSet()
	off := 20
	for i := uint32(0); i < count; i++ {
		slot := types.Slot(binary.LittleEndian.Uint64(data[off : off+8]))
		cc := binary.LittleEndian.Uint32(data[off+8 : off+12])
		set.Add(lockout.Lockout{Slot: slot, ConfirmationCount: cc})
		off += 12
	}
	return &Tower{
		lockouts:     set,
		rootSlot:     rootSlot,
		lastVoteSlot: lastVoteSlot,
		voted:        count > 0 || lastVoteSlot > 0,
	}, nil
}

// VoteHistory is the rolling per-root vote history a validator keeps
// alongside its Tower (spec §4.3's "vote-state side").
type VoteHistory struct {
	mu    sync.Mutex
	votes map[types.Slot]types.Slot // vote slot -> the same slot; used as a membership set
	order []types.Slot              // slots in recorded order
}

// NewVoteHistory returns an empty rolling history.
func NewVoteHistory() *VoteHistory {
	return &VoteHistory{votes: make(map[types.Slot]types.Slot)}
}

// Record adds slot to the history.
func (h *VoteHistory) Record(slot types.Slot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.votes[slot]; ok {
		return
	}
	h.votes[slot] = slot
	h.order = append(h.order, slot)
}

// UpdateRootSlot drops every entry strictly below r.
func (h *VoteHistory) UpdateRootSlot(r types.Slot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	kept := h.order[:0]
	for _, s := range h.order {
		if s < r {
			delete(h.votes, s)
			continue
		}
		kept = append(kept, s)
	}
	h.order = kept
}

// Len reports the number of tracked votes.
func (h *VoteHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.order)
}
