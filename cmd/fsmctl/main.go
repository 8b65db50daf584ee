// Command fsmctl inspects and exercises YAML state machine definitions.
package main

import (
	"context"
	"os"

	"github.com/amp-labs/amp-fsm/logger"
	"github.com/amp-labs/amp-fsm/shutdown"
	"github.com/amp-labs/amp-fsm/telemetry"
)

func main() {
	ctx, stop := shutdown.SetupHandler(context.Background())

	code := run(ctx)

	shutdown.Cleanup(ctx)
	stop()
	os.Exit(code)
}

func run(ctx context.Context) int {
	logger.ConfigureLogging(ctx, "fsmctl", logger.WithOutput(os.Stderr))

	config, err := telemetry.LoadConfigFromEnv(ctx, "cli")
	if err != nil {
		logger.Get(ctx).Error("Invalid telemetry configuration", "error", err)

		return 1
	}

	if err := telemetry.Initialize(ctx, config); err != nil {
		logger.Get(ctx).Error("Initializing telemetry failed", "error", err)

		return 1
	}

	shutdown.BeforeShutdown(func(ctx context.Context) {
		if err := telemetry.Shutdown(ctx); err != nil {
			logger.Get(ctx).Warn("Telemetry shutdown failed", "error", err)
		}
	})

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		return 1
	}

	return 0
}
