package fault_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slonana-labs/validator-core/internal/fault"
	"github.com/slonana-labs/validator-core/internal/types"
)

func TestClassifyTokenWholeWord(t *testing.T) {
	require.Equal(t, fault.WriteKind, fault.ClassifyToken("write_block"))
	require.Equal(t, fault.WriteKind, fault.ClassifyToken("commit_batch"))
	require.Equal(t, fault.ReadKind, fault.ClassifyToken("read_state"))
	require.Equal(t, fault.HealthKind, fault.ClassifyToken("health_check"))

	// "read_write" contains the token "read", but it also contains the
	// token "write" and write tokens take precedence, so it must classify
	// as a write, not a read.
	require.Equal(t, fault.WriteKind, fault.ClassifyToken("read_write"))
}

func TestDegradationModeTable(t *testing.T) {
	d := fault.NewDegradationManager()
	require.Equal(t, fault.Normal, d.GetMode("banking"))
	require.True(t, d.Allow("banking", fault.WriteKind))

	d.SetMode("banking", fault.ReadOnly)
	require.True(t, d.Allow("banking", fault.ReadKind))
	require.True(t, d.Allow("banking", fault.HealthKind))
	require.False(t, d.Allow("banking", fault.WriteKind))

	d.SetMode("banking", fault.EssentialOnly)
	require.False(t, d.Allow("banking", fault.ReadKind))
	require.True(t, d.Allow("banking", fault.HealthKind))

	d.SetMode("banking", fault.Offline)
	require.False(t, d.Allow("banking", fault.ReadKind))
	require.False(t, d.Allow("banking", fault.HealthKind))
	require.False(t, d.Allow("banking", fault.WriteKind))
}

func TestDegradationGuardReturnsDegradedKind(t *testing.T) {
	d := fault.NewDegradationManager()
	d.SetMode("turbine", fault.EssentialOnly)
	err := d.Guard("turbine", fault.WriteKind)
	require.Error(t, err)
	kind, ok := types.KindOf(err)
	require.True(t, ok)
	require.Equal(t, types.KindDegraded, kind)

	require.NoError(t, d.Guard("turbine", fault.HealthKind))
}

func TestDegradationModesAreIndependentPerComponent(t *testing.T) {
	d := fault.NewDegradationManager()
	d.SetMode("banking", fault.Offline)
	require.Equal(t, fault.Normal, d.GetMode("forkchoice"))
	require.True(t, d.Allow("forkchoice", fault.WriteKind))
}

func TestDegradationSnapshotReflectsOnlyExplicitlySetComponents(t *testing.T) {
	d := fault.NewDegradationManager()
	d.SetMode("banking", fault.ReadOnly)
	d.SetMode("turbine", fault.Offline)

	snap := d.Snapshot()
	require.Equal(t, fault.ReadOnly, snap["banking"])
	require.Equal(t, fault.Offline, snap["turbine"])
	_, ok := snap["forkchoice"]
	require.False(t, ok)
}
