package statemachine

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Each test uses its own entity label so parallel tests never share a series.

func TestTransitionMetrics(t *testing.T) {
	t.Parallel()

	const entity = "metrics_post"

	machine := blogMachine(entity)
	p := newPost("p1", "Hello")

	_, err := machine.Fire(context.Background(), p, "publish", Args{"trusted": true})
	require.NoError(t, err)

	_, err = machine.Fire(context.Background(), p, "publish", nil)
	require.Error(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(
		transitionsTotal.WithLabelValues(entity, "publish", "new", "published"),
	), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(
		transitionFailuresTotal.WithLabelValues(entity, "publish", "invalid_transition"),
	), 0)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(transitionDuration, "fsm_transition_duration_seconds"), 2)
}

func TestObserverMetrics(t *testing.T) {
	t.Parallel()

	const entity = "metrics_observer"

	machine := blogMachine(entity)
	machine.Bus().MustSubscribe(PreTransition, entity, func(context.Context, Event) error { return nil })
	machine.Bus().MustSubscribe(PostTransition, entity, func(context.Context, Event) error {
		return errors.New("boom")
	})

	_, err := machine.Fire(context.Background(), newPost("p1", "Hello"), "remove", nil)
	require.Error(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(
		observerCallsTotal.WithLabelValues(entity, "pre_transition", outcomeSuccess),
	), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(
		observerCallsTotal.WithLabelValues(entity, "post_transition", outcomeError),
	), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(
		transitionFailuresTotal.WithLabelValues(entity, "remove", "observer_error"),
	), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(
		transitionsTotal.WithLabelValues(entity, "remove", "new", "removed"),
	), 0)
}

func TestMetricsDisabled(t *testing.T) {
	t.Parallel()

	const entity = "metrics_disabled"

	machine := blogMachine(entity, WithMetrics(false))

	_, err := machine.Fire(context.Background(), newPost("p1", "Hello"), "remove", nil)
	require.NoError(t, err)

	assert.InDelta(t, 0, testutil.ToFloat64(
		transitionsTotal.WithLabelValues(entity, "remove", "new", "removed"),
	), 0)
}

func TestFailureKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err      error
		expected string
	}{
		{err: &TransitionError{Kind: KindNotAllowed}, expected: "not_allowed"},
		{err: &TransitionError{Kind: KindConditionsNotMet}, expected: "conditions_not_met"},
		{err: &BodyError{Err: errPublishFailed}, expected: "body_error"},
		{err: &ObserverError{Err: errPublishFailed}, expected: "observer_error"},
		{err: ErrNotKeyed, expected: "not_keyed"},
		{err: errors.New("redis down"), expected: "lock_error"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, failureKind(tt.err))
	}

	assert.Equal(t, "unknown", sanitizeEntity(""))
	assert.Equal(t, "none", sanitizeState(""))
}
