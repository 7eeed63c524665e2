package connpool_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/slonana-labs/validator-core/internal/connpool"
)

func TestGetOrCreateDialsOnce(t *testing.T) {
	c := connpool.New(connpool.DefaultConfig())
	id := connpool.ConnectionID{RemoteAddress: "127.0.0.1", RemotePort: 19001}
	now := time.Now()

	info, err := c.GetOrCreate(id, now)
	require.NoError(t, err)
	require.Equal(t, connpool.StateConnected, info.State)
	require.Equal(t, 1, c.Len())

	again, err := c.GetOrCreate(id, now.Add(time.Second))
	require.NoError(t, err)
	require.Equal(t, info.Socket, again.Socket)
	require.Equal(t, 1, c.Len())
}

func TestGetOrCreateRedialsAfterTTL(t *testing.T) {
	cfg := connpool.DefaultConfig()
	cfg.TTL = time.Millisecond
	c := connpool.New(cfg)
	id := connpool.ConnectionID{RemoteAddress: "127.0.0.1", RemotePort: 19002}

	first, err := c.GetOrCreate(id, time.Now())
	require.NoError(t, err)

	second, err := c.GetOrCreate(id, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.NotSame(t, first.Socket, second.Socket)
}

// TestConnectionCacheHitRate is property #10 from spec.md §8: repeated
// lookups for an already-connected peer within ttl never redial.
func TestConnectionCacheHitRate(t *testing.T) {
	c := connpool.New(connpool.DefaultConfig())
	id := connpool.ConnectionID{RemoteAddress: "127.0.0.1", RemotePort: 19003}
	now := time.Now()

	first, err := c.GetOrCreate(id, now)
	require.NoError(t, err)

	hits := 0
	for i := 0; i < 100; i++ {
		info, err := c.GetOrCreate(id, now.Add(time.Duration(i)*time.Millisecond))
		require.NoError(t, err)
		if info.Socket == first.Socket {
			hits++
		}
	}
	require.Equal(t, 100, hits)
}

func TestHealthySuccessRateThreshold(t *testing.T) {
	info := &connpool.ConnectionInfo{State: connpool.StateConnected, SuccessfulSends: 96, FailedSends: 4}
	require.True(t, info.Healthy())

	info2 := &connpool.ConnectionInfo{State: connpool.StateConnected, SuccessfulSends: 90, FailedSends: 10}
	require.False(t, info2.Healthy())
}

func TestEvictionAtMaxSize(t *testing.T) {
	cfg := connpool.DefaultConfig()
	cfg.MaxSize = 2
	c := connpool.New(cfg)
	now := time.Now()

	ids := []connpool.ConnectionID{
		{RemoteAddress: "127.0.0.1", RemotePort: 19010},
		{RemoteAddress: "127.0.0.1", RemotePort: 19011},
		{RemoteAddress: "127.0.0.1", RemotePort: 19012},
	}
	for i, id := range ids {
		_, err := c.GetOrCreate(id, now.Add(time.Duration(i)*time.Millisecond))
		require.NoError(t, err)
	}
	require.LessOrEqual(t, c.Len(), 2)
}

func TestRemoveAndCloseAll(t *testing.T) {
	c := connpool.New(connpool.DefaultConfig())
	id := connpool.ConnectionID{RemoteAddress: "127.0.0.1", RemotePort: 19020}
	_, err := c.GetOrCreate(id, time.Now())
	require.NoError(t, err)

	c.Remove(id)
	require.Equal(t, 0, c.Len())

	_, err = c.GetOrCreate(id, time.Now())
	require.NoError(t, err)
	c.CloseAll()
	require.Equal(t, 0, c.Len())
}
