package statemachine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTarget_Fixed(t *testing.T) {
	t.Parallel()

	target := Fixed[*post](statePublished)

	state, err := target.resolve(nil, "ignored", nil)
	require.NoError(t, err)
	assert.Equal(t, statePublished, state)
	assert.Equal(t, TargetFixed, target.Kind())
	assert.Equal(t, []State{statePublished}, target.Allowed())
}

func TestTarget_OutcomeMapped(t *testing.T) {
	t.Parallel()

	target := OutcomeMapped[*post](stateForModerators, statePublished)
	assert.Equal(t, TargetOutcome, target.Kind())

	for _, result := range []any{statePublished, "published"} {
		state, err := target.resolve(nil, result, nil)
		require.NoError(t, err)
		assert.Equal(t, statePublished, state)
	}

	for _, result := range []any{stateRejected, "rejected", 1, nil} {
		_, err := target.resolve(nil, result, nil)
		require.Error(t, err)
	}
}

func TestTarget_OutcomeAllowedIsCopied(t *testing.T) {
	t.Parallel()

	allowed := []State{statePublished}
	target := OutcomeMapped[*post](allowed...)
	allowed[0] = stateRejected

	got := target.Allowed()
	got[0] = stateRemoved

	assert.Equal(t, []State{statePublished}, target.Allowed())
}

func TestTarget_PredicateComputed(t *testing.T) {
	t.Parallel()

	target := PredicateComputed[*post](moderationOutcome, statePublished, stateRejected)
	assert.Equal(t, TargetComputed, target.Kind())

	p := newPost("p1", "Hello")

	// Deterministic for the same inputs.
	for range 3 {
		state, err := target.resolve(p, nil, Args{"approve": true})
		require.NoError(t, err)
		assert.Equal(t, statePublished, state)
	}

	state, err := target.resolve(p, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, stateRejected, state)

	outside := PredicateComputed[*post](func(*post, any, Args) State { return stateNew }, statePublished)

	_, err = outside.resolve(p, nil, nil)
	require.Error(t, err)
}

func TestTargetKind_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "fixed", TargetFixed.String())
	assert.Equal(t, "outcome", TargetOutcome.String())
	assert.Equal(t, "computed", TargetComputed.String())
	assert.Equal(t, "TargetKind(9)", TargetKind(9).String())
}
