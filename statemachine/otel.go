package statemachine

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "statemachine"

// startFireSpan creates the span covering one Fire invocation.
// Uses the global tracer initialized by github.com/amp-labs/amp-fsm/telemetry.
// The caller is responsible for calling span.End().
//
//nolint:spancheck // Span lifecycle managed by caller
func startFireSpan(
	ctx context.Context,
	entityType string,
	op Operation,
	source State,
	actor Actor,
) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "statemachine.fire")
	span.SetAttributes(
		attribute.String("entity", entityType),
		attribute.String("operation", string(op)),
		attribute.String("source", string(source)),
	)

	if actor != nil {
		span.SetAttributes(attribute.String("actor_hash", hashID(actor.ID())))
	}

	logSpanDebug(ctx, "started", "statemachine.fire", span)

	return ctx, span
}

// endFireSpan records the outcome of the invocation on span and ends it.
func endFireSpan(span trace.Span, target State, err error) {
	if target != "" {
		span.SetAttributes(attribute.String("target", string(target)))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("failure_kind", failureKind(err)))
	} else {
		span.SetStatus(codes.Ok, "completed")
	}

	span.End()
}

// hashID creates a short hash of an ID for span attributes (privacy).
func hashID(id string) string {
	if id == "" {
		return ""
	}

	return strconv.FormatUint(xxh3.HashString(id), 16)
}

// logSpanDebug logs span creation when FSM_DEBUG is set.
func logSpanDebug(ctx context.Context, phase string, spanName string, span trace.Span) {
	if !isDebugMode() {
		return
	}

	spanCtx := span.SpanContext()
	slog.DebugContext(ctx, "OTEL Span "+phase,
		"span_name", spanName,
		"trace_id", spanCtx.TraceID().String(),
		"span_id", spanCtx.SpanID().String(),
	)
}

// isDebugMode checks if FSM_DEBUG mode is enabled.
func isDebugMode() bool {
	return strings.EqualFold(os.Getenv("FSM_DEBUG"), "1") ||
		strings.EqualFold(os.Getenv("FSM_DEBUG"), "true")
}
