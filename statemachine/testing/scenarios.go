package testing

import (
	"context"
	"testing"

	"github.com/amp-labs/amp-fsm/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Step is one Fire call of a scenario and its expected outcome.
type Step struct {
	Operation statemachine.Operation
	Args      statemachine.Args
	Actor     statemachine.Actor

	// WantState is the state expected after the step. Empty skips the check.
	WantState statemachine.State

	// WantKind expects a rejection of this kind. Zero expects success.
	WantKind statemachine.FailureKind

	// WantErr expects an error matching with errors.Is.
	WantErr error

	// WantResult, when set, is compared with the body result.
	WantResult any
}

// Scenario drives a fresh entity through a list of steps.
type Scenario[E statemachine.Entity] struct {
	Name   string
	Entity func() E
	Steps  []Step
}

// RunScenario executes a scenario as a subtest and checks every step and
// the notification protocol.
func RunScenario[E statemachine.Entity](t *testing.T, machine *statemachine.Machine[E], scenario Scenario[E]) {
	t.Helper()

	t.Run(scenario.Name, func(t *testing.T) {
		entity := scenario.Entity()
		recorder := NewRecorder(t, machine.Bus(), machine.EntityType(), OnlyEntity(entity))

		for i, step := range scenario.Steps {
			ctx := context.Background()
			if step.Actor != nil {
				ctx = statemachine.WithActor(ctx, step.Actor)
			}

			result, err := machine.Fire(ctx, entity, step.Operation, step.Args)

			switch {
			case step.WantKind != 0:
				te, ok := statemachine.AsTransitionError(err)
				require.True(t, ok, "step %d (%s): expected %s rejection, got %v", i, step.Operation, step.WantKind, err)
				assert.Equal(t, step.WantKind, te.Kind, "step %d (%s)", i, step.Operation)
			case step.WantErr != nil:
				require.ErrorIs(t, err, step.WantErr, "step %d (%s)", i, step.Operation)
			default:
				require.NoError(t, err, "step %d (%s)", i, step.Operation)
			}

			if step.WantResult != nil {
				assert.Equal(t, step.WantResult, result, "step %d (%s) result", i, step.Operation)
			}

			if step.WantState != "" {
				assert.Equal(t, step.WantState, entity.CurrentState(), "step %d (%s) state", i, step.Operation)
			}
		}

		recorder.AssertProtocol()
	})
}
