package statemachine

import (
	"context"
	"log/slog"
	"time"

	"github.com/amp-labs/amp-fsm/logger"
)

// Logger provides logging hooks for transition invocations.
type Logger interface {
	TransitionStarted(ctx context.Context, entityType string, op Operation, source State)
	TransitionCompleted(ctx context.Context, entityType string, op Operation, source, target State, duration time.Duration)
	TransitionFailed(ctx context.Context, entityType string, op Operation, source State, duration time.Duration, err error)
}

// DefaultLogger implements Logger using the context-scoped slog logger, which
// Machine.Fire has already tagged with the entity type and id.
type DefaultLogger struct {
	// Base, when set, replaces the context-scoped logger.
	Base *slog.Logger
}

// NewDefaultLogger creates a new default logger.
func NewDefaultLogger() *DefaultLogger {
	return &DefaultLogger{}
}

func (l *DefaultLogger) get(ctx context.Context, entityType string) *slog.Logger {
	if l.Base != nil {
		return l.Base.With("entity", entityType)
	}

	return logger.Get(ctx)
}

func (l *DefaultLogger) TransitionStarted(ctx context.Context, entityType string, op Operation, source State) {
	fields := []any{
		"operation", op,
		"source", source,
	}

	if id := actorID(ActorFrom(ctx)); id != "" {
		fields = append(fields, "actor", id)
	}

	l.get(ctx, entityType).DebugContext(ctx, "Transition started", fields...)
}

func (l *DefaultLogger) TransitionCompleted(
	ctx context.Context,
	entityType string,
	op Operation,
	source, target State,
	duration time.Duration,
) {
	l.get(ctx, entityType).InfoContext(ctx, "Transition completed",
		"operation", op,
		"source", source,
		"target", target,
		"duration_ms", duration.Milliseconds(),
	)
}

func (l *DefaultLogger) TransitionFailed(
	ctx context.Context,
	entityType string,
	op Operation,
	source State,
	duration time.Duration,
	err error,
) {
	fields := []any{
		"operation", op,
		"source", source,
		"duration_ms", duration.Milliseconds(),
		"kind", failureKind(err),
		"error", err,
	}

	// InvalidResult means a body or compute func broke its contract; the
	// other rejection kinds are expected traffic.
	if te, ok := AsTransitionError(err); ok && te.Kind != KindInvalidResult {
		l.get(ctx, entityType).WarnContext(ctx, "Transition rejected", fields...)
	} else {
		l.get(ctx, entityType).ErrorContext(ctx, "Transition failed", fields...)
	}
}
