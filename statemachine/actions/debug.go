package actions

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/amp-labs/amp-fsm/statemachine"
)

// ActionTracer records body invocations for debugging.
type ActionTracer struct {
	mu     sync.Mutex
	traces []ActionTrace
}

// ActionTrace represents a single body invocation.
type ActionTrace struct {
	Name     string
	Args     statemachine.Args
	Result   any
	Error    error
	Duration time.Duration
}

// NewActionTracer creates a new action tracer.
func NewActionTracer() *ActionTracer {
	return &ActionTracer{}
}

// Trace wraps body so each invocation is recorded under name.
func Trace[E any](tracer *ActionTracer, name string, body statemachine.Body[E]) statemachine.Body[E] {
	return func(ctx context.Context, entity E, args statemachine.Args) (any, error) {
		start := time.Now()
		result, err := body(ctx, entity, args)

		tracer.mu.Lock()
		tracer.traces = append(tracer.traces, ActionTrace{
			Name:     name,
			Args:     args.Clone(),
			Result:   result,
			Error:    err,
			Duration: time.Since(start),
		})
		tracer.mu.Unlock()

		return result, err
	}
}

// GetTraces returns all recorded invocations in order.
func (t *ActionTracer) GetTraces() []ActionTrace {
	t.mu.Lock()
	defer t.mu.Unlock()

	return slices.Clone(t.traces)
}

// String renders the traces one per line.
func (t *ActionTracer) String() string {
	var sb strings.Builder

	for i, trace := range t.GetTraces() {
		status := "ok"
		if trace.Error != nil {
			status = "error: " + trace.Error.Error()
		}

		fmt.Fprintf(&sb, "%d. %s (%s) result=%v %s\n", i+1, trace.Name, trace.Duration.Round(time.Microsecond), trace.Result, status)
	}

	return sb.String()
}
