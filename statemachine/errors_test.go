package statemachine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransitionError_Message(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err      *TransitionError
		expected string
	}{
		{
			err:      &TransitionError{Kind: KindInvalidTransition, EntityType: "doc", Operation: "publish", Source: "published"},
			expected: `invalid transition: doc "publish" from "published"`,
		},
		{
			err:      &TransitionError{Kind: KindNotAllowed, Operation: "moderate", Source: "new", Permission: "is_moderator"},
			expected: `transition not allowed "moderate" from "new" (permission "is_moderator")`,
		},
		{
			err:      &TransitionError{Kind: KindConditionsNotMet, Operation: "moderate", Source: "new", Condition: "has_title"},
			expected: `transition conditions not met "moderate" from "new" (condition "has_title")`,
		},
		{
			err:      &TransitionError{Kind: KindInvalidResult, Operation: "publish", Source: "new", Target: "archived"},
			expected: `invalid transition result "publish" from "new" (resolved "archived")`,
		},
		{
			err:      &TransitionError{Kind: KindInvalidResult, Operation: "publish", Source: "new", Result: 42},
			expected: `invalid transition result "publish" from "new" (result 42)`,
		},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.err.Error())
	}
}

func TestTransitionError_Is(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("handler: %w", &TransitionError{Kind: KindConditionsNotMet})

	assert.True(t, IsConditionsNotMet(wrapped))
	assert.False(t, IsNotAllowed(wrapped))
	assert.False(t, IsInvalidResult(wrapped))
	assert.False(t, IsInvalidTransition(wrapped))

	te, ok := AsTransitionError(wrapped)
	assert.True(t, ok)
	assert.Equal(t, KindConditionsNotMet, te.Kind)

	_, ok = AsTransitionError(errors.New("plain"))
	assert.False(t, ok)
}

func TestFailureKind_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "not_allowed", KindNotAllowed.String())
	assert.Equal(t, "FailureKind(0)", FailureKind(0).String())
}
