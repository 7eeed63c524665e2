package connpool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/slonana-labs/validator-core/internal/telemetry"
)

func TestReapOnceRemovesExpiredConnections(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TTL = time.Millisecond
	c := New(cfg)
	id := ConnectionID{RemoteAddress: "127.0.0.1", RemotePort: 19100}
	_, err := c.GetOrCreate(id, time.Now())
	require.NoError(t, err)

	d := NewDaemons(c, DefaultDaemonConfig(), telemetry.NoOp())
	reaped := d.reapOnce(time.Now().Add(time.Hour))
	require.Equal(t, 1, reaped)
	require.Equal(t, 0, c.Len())
}

func TestReconnectOnceResetsStateOnSuccess(t *testing.T) {
	c := New(DefaultConfig())
	id := ConnectionID{RemoteAddress: "127.0.0.1", RemotePort: 19101}
	_, err := c.GetOrCreate(id, time.Now())
	require.NoError(t, err)
	c.markFailed(id)

	d := NewDaemons(c, DefaultDaemonConfig(), telemetry.NoOp())
	d.reconnectOnce(time.Now())

	info := c.conns[id]
	require.Equal(t, StateConnected, info.State)
	require.Equal(t, 0, info.ReconnectAttempts)
}
