// Package shutdown runs cleanup hooks once when the process is interrupted
// or finishes normally.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/amp-labs/amp-fsm/logger"
)

// Hook is a cleanup step. The context is detached from the cancelled parent.
type Hook func(ctx context.Context)

var (
	mut   sync.Mutex //nolint:gochecknoglobals
	hooks []Hook     //nolint:gochecknoglobals
)

// BeforeShutdown registers a hook. Hooks run in registration order.
func BeforeShutdown(h Hook) {
	mut.Lock()
	defer mut.Unlock()

	hooks = append(hooks, h)
}

// SetupHandler returns a context cancelled on SIGINT or SIGTERM. The signal
// also runs the registered hooks. Call stop to release the signal handler.
func SetupHandler(parent context.Context) (ctx context.Context, stop func()) {
	ctx, cancel := context.WithCancel(parent)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})

	go func() {
		select {
		case sig := <-signals:
			logger.Get(ctx).Warn("Received " + sig.String() + ", shutting down")
			Cleanup(ctx)
			cancel()
		case <-done:
		}
	}()

	var once sync.Once

	return ctx, func() {
		once.Do(func() {
			signal.Stop(signals)
			close(done)
			cancel()
		})
	}
}

// Cleanup runs and clears the registered hooks. Later calls do nothing until
// new hooks are registered.
func Cleanup(ctx context.Context) {
	mut.Lock()
	pending := hooks
	hooks = nil
	mut.Unlock()

	ctx = context.WithoutCancel(ctx)

	for _, h := range pending {
		h(ctx)
	}
}
