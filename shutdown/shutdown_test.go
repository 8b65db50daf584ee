package shutdown

import (
	"context"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanup(t *testing.T) { //nolint:paralleltest
	var order []int

	BeforeShutdown(func(context.Context) { order = append(order, 1) })
	BeforeShutdown(func(context.Context) { order = append(order, 2) })

	Cleanup(t.Context())
	Cleanup(t.Context())

	assert.Equal(t, []int{1, 2}, order)
}

func TestCleanup_DetachedContext(t *testing.T) { //nolint:paralleltest
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	var hookErr error

	BeforeShutdown(func(ctx context.Context) { hookErr = ctx.Err() })
	Cleanup(ctx)

	require.NoError(t, hookErr)
}

func TestSetupHandler_Signal(t *testing.T) { //nolint:paralleltest
	ctx, stop := SetupHandler(t.Context())
	defer stop()

	var called atomic.Bool

	BeforeShutdown(func(context.Context) { called.Store(true) })

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context was not cancelled after signal")
	}

	assert.True(t, called.Load())
}

func TestSetupHandler_Stop(t *testing.T) { //nolint:paralleltest
	ctx, stop := SetupHandler(t.Context())

	stop()
	stop()

	select {
	case <-ctx.Done():
	default:
		t.Fatal("stop should cancel the context")
	}
}
