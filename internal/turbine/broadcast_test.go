package turbine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/slonana-labs/validator-core/internal/shred"
	"github.com/slonana-labs/validator-core/internal/telemetry"
	"github.com/slonana-labs/validator-core/internal/turbine"
	"github.com/slonana-labs/validator-core/internal/types"
)

func testShred(slot types.Slot, index uint32) shred.Shred {
	return shred.NewData(slot, index, 1, 0, []byte("payload"))
}

func TestBroadcastSendsToChildren(t *testing.T) {
	tr := buildTree(10, 2)
	self, _ := tr.NodeAt(0)

	var sentTargets []turbine.Node
	send := func(s shred.Shred, targets []turbine.Node) {
		sentTargets = targets
	}
	b := turbine.NewBroadcaster(tr, self, turbine.DefaultParameters(), send, telemetry.NoOp())
	b.Broadcast(testShred(1, 0))

	require.Equal(t, tr.ChildrenOf(self), sentTargets[:len(tr.ChildrenOf(self))])
	_, forwarded := b.Stats()
	require.Equal(t, uint64(1), forwarded)
}

func TestReceiveDropsDuplicates(t *testing.T) {
	tr := buildTree(6, 2)
	self, _ := tr.NodeAt(1)

	calls := 0
	send := func(s shred.Shred, targets []turbine.Node) {}
	b := turbine.NewBroadcaster(tr, self, turbine.DefaultParameters(), send, telemetry.NoOp())

	onReceive := func(s shred.Shred) { calls++ }
	s := testShred(5, 3)
	require.NoError(t, b.Receive(s, onReceive))
	require.NoError(t, b.Receive(s, onReceive))

	require.Equal(t, 1, calls)
	duplicates, _ := b.Stats()
	require.Equal(t, uint64(1), duplicates)
}

func TestReceiveRejectsInvalidShred(t *testing.T) {
	tr := buildTree(4, 2)
	self, _ := tr.NodeAt(0)
	b := turbine.NewBroadcaster(tr, self, turbine.DefaultParameters(), func(shred.Shred, []turbine.Node) {}, telemetry.NoOp())

	invalid := testShred(1, 0)
	invalid.Version = 0
	err := b.Receive(invalid, nil)
	require.Error(t, err)
}

func TestCleanupOlderThanRemovesStaleEntries(t *testing.T) {
	tr := buildTree(4, 2)
	self, _ := tr.NodeAt(0)
	b := turbine.NewBroadcaster(tr, self, turbine.DefaultParameters(), func(shred.Shred, []turbine.Node) {}, telemetry.NoOp())

	b.Broadcast(testShred(1, 0))
	b.Broadcast(testShred(1, 1))

	removed := b.CleanupOlderThan(time.Now().Add(time.Hour), time.Minute)
	require.Equal(t, 2, removed)
}
