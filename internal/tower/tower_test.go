package tower_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slonana-labs/validator-core/internal/tower"
	"github.com/slonana-labs/validator-core/internal/types"
)

// TestS1VoteSequence is scenario S1 from spec.md §8.
func TestS1VoteSequence(t *testing.T) {
	tw := tower.New(50)

	for _, s := range []types.Slot{55, 60, 70, 75} {
		require.NoError(t, tw.RecordVote(s))
	}
	require.Equal(t, 4, tw.Height())

	err := tw.RecordVote(76)
	require.Error(t, err)
	kind, ok := types.KindOf(err)
	require.True(t, ok)
	require.Equal(t, types.KindInvalidInput, kind)

	require.NoError(t, tw.RecordVote(77))
	require.Equal(t, types.Slot(77), tw.LastVoteSlot())
}

func TestCannotVoteBelowRoot(t *testing.T) {
	tw := tower.New(10)
	require.False(t, tw.CanVoteOn(10))
	require.False(t, tw.CanVoteOn(5))
	require.True(t, tw.CanVoteOn(11))
}

func TestRootPromotionAtMaxHeight(t *testing.T) {
	tw := tower.New(0)
	// Each vote's lockout period is 1 (confirmation_count 0), so spacing
	// votes two slots apart keeps every vote legal.
	for i := 1; i <= tower.MaxHeight; i++ {
		require.NoError(t, tw.RecordVote(types.Slot(i*2)))
	}
	require.Equal(t, tower.MaxHeight, tw.Height())

	oldestSlot := tw.Lockouts()[0].Slot
	require.NoError(t, tw.RecordVote(types.Slot((tower.MaxHeight+1)*2)))
	require.Equal(t, tower.MaxHeight, tw.Height(), "height stays capped once root promotion kicks in")
	require.Equal(t, oldestSlot, tw.RootSlot())
}

func TestResetToRoot(t *testing.T) {
	tw := tower.New(0)
	require.NoError(t, tw.RecordVote(1))
	require.NoError(t, tw.RecordVote(2))

	tw.ResetToRoot(10)
	require.Equal(t, types.Slot(10), tw.RootSlot())
	require.Equal(t, types.Slot(10), tw.LastVoteSlot())
	require.Equal(t, 0, tw.Height())
}

func TestSerializeRoundTrip(t *testing.T) {
	tw := tower.New(5)
	require.NoError(t, tw.RecordVote(6))
	require.NoError(t, tw.RecordVote(9))

	buf := tw.Serialize()
	got, err := tower.Deserialize(buf)
	require.NoError(t, err)
	require.Equal(t, tw.RootSlot(), got.RootSlot())
	require.Equal(t, tw.LastVoteSlot(), got.LastVoteSlot())
	require.Equal(t, tw.Lockouts(), got.Lockouts())
}

func TestIsValid(t *testing.T) {
	tw := tower.New(0)
	require.True(t, tw.IsValid())
	require.NoError(t, tw.RecordVote(1))
	require.NoError(t, tw.RecordVote(2))
	require.True(t, tw.IsValid())
}

// TestFuzzSafety is property #1 from spec.md §8: for any two recorded votes
// v_i < v_j, the lockout from v_i never locks out v_j once it was accepted
// -- i.e. every vote the tower accepts is legal by construction.
func TestFuzzSafety(t *testing.T) {
	tw := tower.New(0)
	accepted := []types.Slot{}
	slots := []types.Slot{1, 2, 3, 2, 4, 3, 100, 101, 50, 102}
	for _, s := range slots {
		if err := tw.RecordVote(s); err == nil {
			accepted = append(accepted, s)
		}
	}
	for i := 0; i < len(accepted); i++ {
		for j := i + 1; j < len(accepted); j++ {
			vi, vj := accepted[i], accepted[j]
			require.Less(t, vi, vj, "accepted votes must be strictly increasing")
		}
	}
	require.True(t, tw.IsValid(), "held lockouts must not lock each other out")
}

func TestVoteHistoryUpdateRoot(t *testing.T) {
	h := tower.NewVoteHistory()
	h.Record(1)
	h.Record(5)
	h.Record(10)
	h.UpdateRootSlot(5)
	require.Equal(t, 2, h.Len())
}
