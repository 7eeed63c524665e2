package udp_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/slonana-labs/validator-core/internal/udp"
)

func TestBandOf(t *testing.T) {
	require.Equal(t, udp.BandLow, udp.BandOf(0))
	require.Equal(t, udp.BandLow, udp.BandOf(63))
	require.Equal(t, udp.BandNormal, udp.BandOf(64))
	require.Equal(t, udp.BandNormal, udp.BandOf(191))
	require.Equal(t, udp.BandHigh, udp.BandOf(192))
	require.Equal(t, udp.BandHigh, udp.BandOf(255))
}

func TestQueuePrefersHighThenNormalThenLow(t *testing.T) {
	q := udp.NewQueue(8)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, udp.Packet{Data: []byte("low"), Priority: 0}))
	require.NoError(t, q.Push(ctx, udp.Packet{Data: []byte("normal"), Priority: 100}))
	require.NoError(t, q.Push(ctx, udp.Packet{Data: []byte("high"), Priority: 200}))

	first, err := q.Pop(ctx)
	require.NoError(t, err)
	require.Equal(t, "high", string(first.Data))

	second, err := q.Pop(ctx)
	require.NoError(t, err)
	require.Equal(t, "normal", string(second.Data))

	third, err := q.Pop(ctx)
	require.NoError(t, err)
	require.Equal(t, "low", string(third.Data))
}

func TestQueueDrainBatchCapsAtMaxBatchSize(t *testing.T) {
	q := udp.NewQueue(32)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		require.True(t, q.TryPush(udp.Packet{Data: []byte{byte(i)}, Priority: 200}))
	}

	batch, err := q.DrainBatch(ctx, 4)
	require.NoError(t, err)
	require.Len(t, batch, 4)
	require.Equal(t, 6, q.Len())
}

func TestQueuePopBlocksUntilCancel(t *testing.T) {
	q := udp.NewQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	require.Error(t, err)
}

func TestTryPushFullBandFails(t *testing.T) {
	q := udp.NewQueue(1)
	require.True(t, q.TryPush(udp.Packet{Priority: 200}))
	require.False(t, q.TryPush(udp.Packet{Priority: 200}))
}
