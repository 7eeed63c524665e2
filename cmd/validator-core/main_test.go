package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/slonana-labs/validator-core/internal/telemetry"
)

func TestRunCompletesWithinTimeout(t *testing.T) {
	err := run(context.Background(), telemetry.NoOp(), "127.0.0.1:0", 200*time.Millisecond, 50)
	require.NoError(t, err)
}
