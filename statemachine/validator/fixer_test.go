package validator

import (
	"testing"

	"github.com/amp-labs/amp-fsm/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoveUnreachableState(t *testing.T) {
	t.Parallel()

	config := docConfig(
		statemachine.TransitionConfig{Operation: "submit", Sources: []string{"draft"}, Target: fixed("review"), Body: "submit", OnError: "archived"},
		statemachine.TransitionConfig{Operation: "restore", Sources: []string{"archived"}, Target: fixed("draft")},
		statemachine.TransitionConfig{Operation: "publish", Sources: []string{"review", "archived"}, Target: fixed("published")},
		statemachine.TransitionConfig{
			Operation: "decide",
			Sources:   []string{"review"},
			Target:    statemachine.TargetConfig{Type: statemachine.TargetTypeOutcome, Allowed: []string{"published", "archived"}},
		},
	)

	require.NoError(t, RemoveUnreachableState("archived").Apply(config))

	assert.Equal(t, []string{"draft", "review", "published"}, config.States)
	require.Len(t, config.Transitions, 3)
	assert.Empty(t, config.Transitions[0].OnError)
	assert.Equal(t, []string{"review"}, config.Transitions[1].Sources)
	assert.Equal(t, []string{"published"}, config.Transitions[2].Target.Allowed)

	err := RemoveUnreachableState("archived").Apply(config)
	require.ErrorIs(t, err, ErrStateNotFound)
}

func TestRenameState(t *testing.T) {
	t.Parallel()

	config := &statemachine.Config{
		Entity:       "doc",
		InitialState: "Draft",
		States:       []string{"Draft", "done"},
		Transitions: []statemachine.TransitionConfig{
			{Operation: "finish", Sources: []string{"Draft"}, Target: fixed("done"), OnError: "Draft"},
			{Operation: "reopen", Sources: []string{"done"}, Target: fixed("Draft")},
		},
	}

	require.NoError(t, RenameState("Draft", "draft").Apply(config))

	assert.Equal(t, "draft", config.InitialState)
	assert.Equal(t, []string{"draft", "done"}, config.States)
	assert.Equal(t, []string{"draft"}, config.Transitions[0].Sources)
	assert.Equal(t, "draft", config.Transitions[0].OnError)
	assert.Equal(t, "draft", config.Transitions[1].Target.State)

	require.ErrorIs(t, RenameState("draft", "done").Apply(config), ErrStateAlreadyExists)
	require.ErrorIs(t, RenameState("missing", "other").Apply(config), ErrStateNotFound)
}

func TestApplyFixes_FromResult(t *testing.T) {
	t.Parallel()

	config := &statemachine.Config{
		Entity:       "doc",
		InitialState: "Draft",
		States:       []string{"Draft", "published", "orphan"},
		Transitions: []statemachine.TransitionConfig{
			{Operation: "doPublish", Sources: []string{"Draft"}, Target: fixed("published")},
			{Operation: "doPublish", Sources: []string{"Draft"}, Target: fixed("published")},
		},
	}

	result := Validate(config)
	require.False(t, result.Valid)
	require.NoError(t, ApplyFixes(config, result.Fixes()))

	after := Validate(config)
	assert.True(t, after.Valid, after.String())
	assert.False(t, after.HasWarnings(), after.String())
	assert.Equal(t, []string{"draft", "published"}, config.States)
	require.Len(t, config.Transitions, 1)
	assert.Equal(t, "do_publish", config.Transitions[0].Operation)
}

func TestApplyFixes_StopsOnError(t *testing.T) {
	t.Parallel()

	config := docConfig()

	err := ApplyFixes(config, []*Fix{nil, RenameOperation("missing", "other")})
	require.ErrorIs(t, err, ErrOperationNotFound)
	assert.Contains(t, err.Error(), "Rename operation from 'missing' to 'other'")
}
