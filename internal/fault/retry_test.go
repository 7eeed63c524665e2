package fault_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/slonana-labs/validator-core/internal/fault"
)

func TestIsRetryable(t *testing.T) {
	require.True(t, fault.IsRetryable(errors.New("Connection Timeout")))
	require.True(t, fault.IsRetryable(errors.New("service UNAVAILABLE")))
	require.True(t, fault.IsRetryable(errors.New("please retry, rate limit exceeded")))
	require.False(t, fault.IsRetryable(errors.New("invalid signature")))
	require.False(t, fault.IsRetryable(nil))
}

func TestRetryWithBackoffSucceedsEventually(t *testing.T) {
	attempts := 0
	op := func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient failure")
		}
		return nil
	}
	policy := fault.RetryPolicy{
		MaxAttempts:       5,
		InitialDelay:      1 * time.Millisecond,
		MaxDelay:          10 * time.Millisecond,
		BackoffMultiplier: 2,
		JitterFactor:      0.1,
	}
	err := fault.RetryWithBackoff(context.Background(), op, policy)
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestRetryWithBackoffExhausts(t *testing.T) {
	attempts := 0
	op := func() error {
		attempts++
		return errors.New("always fails")
	}
	policy := fault.RetryPolicy{
		MaxAttempts:       3,
		InitialDelay:      1 * time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2,
		JitterFactor:      0.1,
	}
	err := fault.RetryWithBackoff(context.Background(), op, policy)
	require.Error(t, err)
	require.Equal(t, 3, attempts)
}

func TestRetryWithBackoffNeverSleepsAfterFinalAttempt(t *testing.T) {
	policy := fault.RetryPolicy{
		MaxAttempts:       1,
		InitialDelay:      time.Hour,
		MaxDelay:          time.Hour,
		BackoffMultiplier: 2,
		JitterFactor:      0.1,
	}
	start := time.Now()
	err := fault.RetryWithBackoff(context.Background(), func() error { return errors.New("fail") }, policy)
	require.Error(t, err)
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestRetryCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := fault.RetryPolicy{
		MaxAttempts:       5,
		InitialDelay:      time.Hour,
		MaxDelay:          time.Hour,
		BackoffMultiplier: 2,
		JitterFactor:      0.1,
	}
	cancel()
	err := fault.RetryWithBackoff(ctx, func() error { return errors.New("fail") }, policy)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRetryPolicyPresetsDiffer(t *testing.T) {
	rpc := fault.NewRPCRetryPolicy()
	network := fault.NewNetworkRetryPolicy()
	storage := fault.NewStorageRetryPolicy()

	require.Equal(t, uint32(3), rpc.MaxAttempts)
	require.Equal(t, 50*time.Millisecond, rpc.InitialDelay)

	require.Equal(t, uint32(5), network.MaxAttempts)
	require.Equal(t, 1.5, network.BackoffMultiplier)

	require.Equal(t, 200*time.Millisecond, storage.InitialDelay)
	require.Equal(t, 0.05, storage.JitterFactor)

	for _, p := range []fault.RetryPolicy{rpc, network, storage} {
		require.True(t, p.RetryOnTimeout)
		require.True(t, p.RetryOnConnectionError)
		require.True(t, p.RetryOnTransientError)
	}
}

func TestRetryAsyncDoesNotBlockCaller(t *testing.T) {
	policy := fault.RetryPolicy{
		MaxAttempts:       2,
		InitialDelay:      50 * time.Millisecond,
		MaxDelay:          50 * time.Millisecond,
		BackoffMultiplier: 1,
		JitterFactor:      0.01,
	}
	ch := fault.RetryAsync(context.Background(), func() error { return errors.New("fail") }, policy)
	select {
	case <-ch:
		t.Fatal("RetryAsync must not resolve before the caller regains control")
	default:
	}
	<-ch
}
