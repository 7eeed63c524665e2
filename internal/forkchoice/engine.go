package forkchoice

import (
	"bytes"
	"sync"
	"time"

	"github.com/slonana-labs/validator-core/internal/telemetry"
	"github.com/slonana-labs/validator-core/internal/types"
	"github.com/slonana-labs/validator-core/internal/validator"
)

const (
	optimisticallyConfirmedBonus = 50_000
	rootedBonus                  = 100_000
	slotWeightFactor             = 1000
	confirmationWeightFactor     = 1000

	recentVotesCapacity = 10_000
	updateRateLimit     = 100 * time.Millisecond
)

// Parameters configures thresholds and housekeeping cadence for an Engine.
type Parameters struct {
	OptimisticConfirmationThresholdPct uint64
	RootingThresholdPct                uint64
	WeightCacheTTL                     time.Duration
	MaxCacheEntries                    int
	VoteLogHorizon                     time.Duration
	BlockRetention                     time.Duration
	ForkLagSlots                       types.Slot
}

// DefaultParameters matches spec.md §6's configuration surface defaults.
func DefaultParameters() Parameters {
	return Parameters{
		OptimisticConfirmationThresholdPct: 67,
		RootingThresholdPct:                67,
		WeightCacheTTL:                      500 * time.Millisecond,
		MaxCacheEntries:                     10_000,
		VoteLogHorizon:                      time.Hour,
		BlockRetention:                      2 * time.Hour,
		ForkLagSlots:                        1000,
	}
}

type voteRecord struct {
	vote VoteInfo
	at   time.Time
}

// VoteInfo is one observed vote.
type VoteInfo struct {
	Slot              types.Slot
	BlockHash         types.Hash
	ValidatorIdentity types.PublicKey
	StakeWeight       uint64
	LockoutDistance   uint32
	Timestamp         time.Time
}

// Engine is the block graph, fork index and vote log, guarded by the
// four-lock hierarchy described in spec.md §5: vote_processing -> data ->
// weight_cache -> fork_weights. Callers must never invoke AddVote while
// holding data as a reader.
type Engine struct {
	voteProcessing sync.Mutex

	data sync.RWMutex
	blocksArena *blockArena
	forks       *forkArena
	validators  *validator.Set

	currentHead     types.Hash
	currentHeadID   forkID
	currentRoot     types.Hash
	currentRootSlot types.Slot

	recentVotes []voteRecord

	weights *weightCache

	forkWeightsMu    sync.Mutex
	lastWeightUpdate time.Time

	params Parameters
	log    telemetry.Logger

	forkSwitches uint64
}

// New creates an Engine rooted at genesisHash/genesisSlot.
func New(genesisHash types.Hash, genesisSlot types.Slot, validators *validator.Set, params Parameters, log telemetry.Logger) *Engine {
	if log == nil {
		log = telemetry.NoOp()
	}
	e := &Engine{
		blocksArena: newBlockArena(),
		forks:       newForkArena(),
		validators:  validators,
		weights:     newWeightCache(params.WeightCacheTTL, params.MaxCacheEntries),
		params:      params,
		log:         log,
	}

	genesisMeta := newBlockMetadata(genesisHash, types.Hash{}, genesisSlot)
	genesisMeta.IsProcessed = true
	e.blocksArena.insert(genesisMeta)

	genesisFork := &Fork{
		HeadHash: genesisHash,
		RootHash: genesisHash,
		HeadSlot: genesisSlot,
		RootSlot: genesisSlot,
		IsRooted: true,
		Blocks:   []types.Hash{genesisHash},
	}
	id := e.forks.insert(genesisFork)

	e.currentHead = genesisHash
	e.currentHeadID = id
	e.currentRoot = genesisHash
	e.currentRootSlot = genesisSlot
	return e
}

// AddBlock ingests a new block into the graph. Must never be called while
// the caller holds data as a reader.
func (e *Engine) AddBlock(hash, parentHash types.Hash, slot types.Slot) {
	e.data.Lock()
	meta := newBlockMetadata(hash, parentHash, slot)
	e.blocksArena.insert(meta)

	if parentForkID, ok := e.forks.forkOf(parentHash); ok {
		parentFork, _ := e.forks.get(parentForkID)
		if parentFork.HeadHash == parentHash {
			parentFork.HeadHash = hash
			parentFork.HeadSlot = slot
			parentFork.Blocks = append(parentFork.Blocks, hash)
			e.forks.blockToFork[hash] = parentForkID
		} else {
			idx := indexOfHash(parentFork.Blocks, parentHash)
			var ancestry []types.Hash
			if idx >= 0 {
				ancestry = append(ancestry, parentFork.Blocks[:idx+1]...)
			} else {
				ancestry = append(ancestry, parentHash)
			}
			newFork := &Fork{
				HeadHash: hash,
				RootHash: parentFork.RootHash,
				HeadSlot: slot,
				RootSlot: parentFork.RootSlot,
				Blocks:   append(ancestry, hash),
			}
			e.forks.insert(newFork)
		}
	} else {
		newFork := &Fork{
			HeadHash: hash,
			RootHash: parentHash,
			HeadSlot: slot,
			RootSlot: slot,
			Blocks:   []types.Hash{parentHash, hash},
		}
		e.forks.insert(newFork)
	}
	e.data.Unlock()

	e.updateForkWeights(false)
}

// AddVote ingests one vote. Serializes with other vote ingestion via
// vote_processing, then takes data as a writer to update aggregation.
func (e *Engine) AddVote(v VoteInfo) {
	e.voteProcessing.Lock()
	defer e.voteProcessing.Unlock()

	e.data.Lock()
	e.recentVotes = append(e.recentVotes, voteRecord{vote: v, at: time.Now()})
	if len(e.recentVotes) > recentVotesCapacity {
		e.recentVotes = e.recentVotes[len(e.recentVotes)-recentVotesCapacity:]
	}
	e.validators.Upsert(v.ValidatorIdentity, v.StakeWeight)

	// Credit the voted block and every ancestor on its fork.
	if forkOf, ok := e.forks.forkOf(v.BlockHash); ok {
		fork, _ := e.forks.get(forkOf)
		idx := indexOfHash(fork.Blocks, v.BlockHash)
		if idx >= 0 {
			for i := 0; i <= idx; i++ {
				if meta, ok := e.blocksArena.byHashLookup(fork.Blocks[i]); ok {
					meta.StakeWeight += v.StakeWeight
				}
			}
		}
	}
	if meta, ok := e.blocksArena.byHashLookup(v.BlockHash); ok {
		if _, seen := meta.Voters[v.ValidatorIdentity]; !seen {
			meta.Voters[v.ValidatorIdentity] = struct{}{}
		}
	}
	e.data.Unlock()

	e.drainOptimisticConfirmations()
	e.scanForRooting()
	e.updateForkWeights(false)
}

// ProcessVotesBatch ingests a slice of votes in order.
func (e *Engine) ProcessVotesBatch(votes []VoteInfo) {
	for _, v := range votes {
		e.AddVote(v)
	}
}

func indexOfHash(hashes []types.Hash, h types.Hash) int {
	for i, x := range hashes {
		if x == h {
			return i
		}
	}
	return -1
}

// weight computes w(F) per spec.md §4.4.
func (e *Engine) weight(f *Fork) int64 {
	var headStake uint64
	if meta, ok := e.blocksArena.byHashLookup(f.HeadHash); ok {
		headStake = meta.StakeWeight
	}
	w := int64(f.HeadSlot) * slotWeightFactor
	w += int64(headStake)
	if f.IsOptimisticallyConfirmed {
		w += optimisticallyConfirmedBonus
	}
	if f.IsRooted {
		w += rootedBonus
	}
	w += int64(f.ConfirmationCount) * confirmationWeightFactor
	return w
}

// updateForkWeights recomputes the cached weight for every fork and selects
// a new head, rate-limited to once per 100ms unless force is true.
func (e *Engine) updateForkWeights(force bool) {
	e.forkWeightsMu.Lock()
	now := time.Now()
	if !force && now.Sub(e.lastWeightUpdate) < updateRateLimit {
		e.forkWeightsMu.Unlock()
		return
	}
	e.lastWeightUpdate = now
	e.forkWeightsMu.Unlock()

	e.data.RLock()
	ids := e.forks.all()
	type scored struct {
		id     forkID
		fork   *Fork
		weight int64
	}
	var best *scored
	for _, id := range ids {
		f, ok := e.forks.get(id)
		if !ok {
			continue
		}
		var w int64
		if cached, hit := e.weights.get(id, now); hit {
			w = cached
		} else {
			w = e.weight(f)
			e.weights.put(id, w, now)
		}
		cand := &scored{id: id, fork: f, weight: w}
		if best == nil || isBetter(cand.weight, cand.fork, best.weight, best.fork) {
			best = cand
		}
	}
	var newHead types.Hash
	var newHeadID forkID = noFork
	if best != nil {
		newHead = best.fork.HeadHash
		newHeadID = best.id
	}
	oldHead := e.currentHead
	e.data.RUnlock()

	if newHeadID != noFork && newHead != oldHead {
		e.data.Lock()
		e.currentHead = newHead
		e.currentHeadID = newHeadID
		e.forkSwitches++
		e.data.Unlock()
		e.log.Info("fork choice head changed", "head", newHead.String())
	}
}

// isBetter reports whether (w1, f1) outranks (w2, f2) under the tie-break
// rule: higher weight; if equal, higher head slot; if still equal,
// lexicographically greater head hash.
func isBetter(w1 int64, f1 *Fork, w2 int64, f2 *Fork) bool {
	if w1 != w2 {
		return w1 > w2
	}
	if f1.HeadSlot != f2.HeadSlot {
		return f1.HeadSlot > f2.HeadSlot
	}
	return bytes.Compare(f1.HeadHash[:], f2.HeadHash[:]) > 0
}

// supportingStake returns the stake credited to the block during vote
// ingestion. Each vote credits its target block and every block before it on
// the target's fork, so this is the stake of votes for the block itself or
// for a later block on that fork.
func (e *Engine) supportingStake(hash types.Hash) uint64 {
	meta, ok := e.blocksArena.byHashLookup(hash)
	if !ok {
		return 0
	}
	return meta.StakeWeight
}

func (e *Engine) thresholdStake(pct uint64) uint64 {
	total := e.validators.TotalWeight()
	return total * pct / 100
}

// drainOptimisticConfirmations scans tracked blocks and flips any whose
// supporting stake has crossed the optimistic-confirmation threshold.
func (e *Engine) drainOptimisticConfirmations() {
	e.data.Lock()
	defer e.data.Unlock()
	threshold := e.thresholdStake(e.params.OptimisticConfirmationThresholdPct)
	for _, meta := range e.blocksArena.blocksByID {
		if meta.IsConfirmed {
			continue
		}
		if meta.StakeWeight >= threshold && threshold > 0 {
			meta.IsConfirmed = true
			if forkOf, ok := e.forks.forkOf(meta.Hash); ok {
				if f, ok := e.forks.get(forkOf); ok {
					f.IsOptimisticallyConfirmed = true
				}
			}
		}
	}
}

// scanForRooting promotes any block whose supporting stake has crossed the
// rooting threshold to the new root.
func (e *Engine) scanForRooting() {
	e.data.Lock()
	defer e.data.Unlock()
	threshold := e.thresholdStake(e.params.RootingThresholdPct)
	if threshold == 0 {
		return
	}
	for _, meta := range e.blocksArena.blocksByID {
		if meta.StakeWeight < threshold {
			continue
		}
		if meta.Slot <= e.currentRootSlot && meta.Hash != e.currentRoot {
			continue
		}
		if meta.Hash == e.currentRoot {
			continue
		}
		e.currentRoot = meta.Hash
		e.currentRootSlot = meta.Slot
		if forkOf, ok := e.forks.forkOf(meta.Hash); ok {
			if f, ok := e.forks.get(forkOf); ok {
				f.IsRooted = true
				f.RootHash = meta.Hash
				f.RootSlot = meta.Slot
			}
		}
	}
}

// GarbageCollect performs the three sweeps from spec.md §4.4.
func (e *Engine) GarbageCollect() {
	now := time.Now()
	e.data.Lock()
	cutoff := now.Add(-e.params.VoteLogHorizon)
	kept := e.recentVotes[:0]
	for _, r := range e.recentVotes {
		if r.at.After(cutoff) {
			kept = append(kept, r)
		}
	}
	e.recentVotes = kept

	blockCutoff := now.Add(-e.params.BlockRetention)
	referenced := make(map[types.Hash]struct{})
	for _, id := range e.forks.all() {
		f, _ := e.forks.get(id)
		for _, h := range f.Blocks {
			referenced[h] = struct{}{}
		}
	}
	for id, meta := range e.blocksArena.blocksByID {
		if _, ok := referenced[meta.Hash]; ok {
			continue
		}
		if meta.ArrivalTime.Before(blockCutoff) {
			e.blocksArena.remove(id)
		}
	}

	headSlot := e.headSlotLocked()
	for _, id := range e.forks.all() {
		f, _ := e.forks.get(id)
		if f.IsRooted {
			continue
		}
		if headSlot > f.HeadSlot && headSlot-f.HeadSlot > e.params.ForkLagSlots {
			e.forks.remove(id)
		}
	}
	e.data.Unlock()

	e.weights.expireStale(now)
}

func (e *Engine) headSlotLocked() types.Slot {
	if f, ok := e.forks.get(e.currentHeadID); ok {
		return f.HeadSlot
	}
	return 0
}

// ForkSwitchCount reports how many times the current head has changed forks.
func (e *Engine) ForkSwitchCount() uint64 {
	e.data.RLock()
	defer e.data.RUnlock()
	return e.forkSwitches
}
