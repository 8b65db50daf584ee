package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/amp-labs/amp-fsm/cli"
	"github.com/amp-labs/amp-fsm/logger"
	"github.com/amp-labs/amp-fsm/statemachine"
	"github.com/amp-labs/amp-fsm/statemachine/actions"
	"github.com/amp-labs/amp-fsm/statemachine/conditions"
	"github.com/spf13/cobra"
)

const quitChoice = "[quit]"

var (
	errSimulatedFailure = errors.New("simulated body failure")
	errBadStep          = errors.New("malformed step")
)

// simEntity is the stand-in entity every simulated invocation runs against.
type simEntity struct {
	statemachine.StateField
}

// simActor is the actor given by --actor id:role,role.
type simActor struct {
	id    string
	roles []string
}

func (a simActor) ID() string      { return a.id }
func (a simActor) Roles() []string { return a.roles }

// step is one --step value: op, op=result or op! for a failing body.
type step struct {
	op     statemachine.Operation
	result string
	fail   bool
}

func parseStep(raw string) (step, error) {
	raw = strings.TrimSpace(raw)

	if op, ok := strings.CutSuffix(raw, "!"); ok {
		raw = op

		if raw == "" {
			return step{}, fmt.Errorf("%w: %q", errBadStep, "!")
		}

		return step{op: statemachine.Operation(raw), fail: true}, nil
	}

	op, result, _ := strings.Cut(raw, "=")
	if op == "" {
		return step{}, fmt.Errorf("%w: %q", errBadStep, raw)
	}

	return step{op: statemachine.Operation(op), result: result}, nil
}

func (s step) args() statemachine.Args {
	args := statemachine.Args{}

	if s.result != "" {
		args["result"] = s.result
	}

	if s.fail {
		args["fail"] = true
	}

	return args
}

func parseActor(raw string) statemachine.Actor {
	if raw == "" {
		return nil
	}

	id, roles, _ := strings.Cut(raw, ":")

	actor := simActor{id: id}
	if roles != "" {
		actor.roles = strings.Split(roles, ",")
	}

	return actor
}

// simulationCatalog resolves every body, compute function, condition and
// permission the definition names. Bodies return args["result"] and fail when
// args["fail"] is set. Known condition and permission builders behave for
// real; unknown ones pass. A non-nil tracer records every body call.
func simulationCatalog(tracer *actions.ActionTracer) *statemachine.Catalog[*simEntity] {
	body := func(_ context.Context, _ *simEntity, args statemachine.Args) (any, error) {
		if fail, _ := args.GetBool("fail"); fail {
			return nil, errSimulatedFailure
		}

		result, _ := args.Get("result")

		return result, nil
	}

	var fallback statemachine.Body[*simEntity] = body
	if tracer != nil {
		fallback = actions.Trace(tracer, "body", fallback)
	}

	compute := func(entity *simEntity, result any, args statemachine.Args) statemachine.State {
		if s, ok := args.GetString("result"); ok {
			return statemachine.State(s)
		}

		if s, ok := result.(string); ok {
			return statemachine.State(s)
		}

		return entity.CurrentState()
	}

	catalog := statemachine.NewCatalog(
		statemachine.Permissive[*simEntity](),
		statemachine.FallbackBody(fallback),
		statemachine.FallbackCompute[*simEntity](compute),
	)

	return conditions.RegisterDefaults(catalog)
}

type simulator struct {
	machine *statemachine.Machine[*simEntity]
	entity  *simEntity
	out     io.Writer
	tracer  *actions.ActionTracer
}

func newSimulator(config *statemachine.Config, out io.Writer, trace, logTransitions bool) (*simulator, error) {
	var tracer *actions.ActionTracer
	if trace {
		tracer = actions.NewActionTracer()
	}

	opts := []statemachine.Option{statemachine.WithMetrics(false)}
	if logTransitions {
		opts = append(opts, statemachine.WithLogger(statemachine.NewDefaultLogger()))
	}

	machine, err := statemachine.BuildMachine(config, simulationCatalog(tracer), opts...)
	if err != nil {
		return nil, err
	}

	return &simulator{
		machine: machine,
		entity:  &simEntity{StateField: statemachine.NewStateField(statemachine.State(config.InitialState))},
		out:     out,
		tracer:  tracer,
	}, nil
}

// fire runs one step and reports it. Rejections are printed, not returned.
func (s *simulator) fire(ctx context.Context, st step) error {
	source := s.entity.CurrentState()

	result, err := s.machine.Fire(ctx, s.entity, st.op, st.args())

	var (
		te *statemachine.TransitionError
		be *statemachine.BodyError
	)

	switch {
	case err == nil:
		fmt.Fprintf(s.out, "%s: %s -> %s", st.op, source, s.entity.CurrentState())

		if result != nil {
			fmt.Fprintf(s.out, " (result %v)", result)
		}

		fmt.Fprintln(s.out)
	case errors.As(err, &be):
		fmt.Fprintf(s.out, "%s: %s -> %s (body failed: %v)\n", st.op, source, s.entity.CurrentState(), be.Err)
	case errors.As(err, &te):
		fmt.Fprintf(s.out, "%s: rejected in %s: %s\n", st.op, source, te.Kind)
	default:
		return err
	}

	return nil
}

func (s *simulator) interactive(ctx context.Context, prompt cli.IO) error {
	for {
		state := s.entity.CurrentState()

		ops := s.machine.Available(s.entity)
		if len(ops) == 0 {
			fmt.Fprintf(s.out, "no operations available from %s\n", state)

			return nil
		}

		choices := make([]string, 0, len(ops)+1)
		for _, op := range ops {
			choices = append(choices, string(op))
		}

		choice, err := prompt.Select(fmt.Sprintf("Operation (state: %s)", state), append(choices, quitChoice)...)
		if err != nil {
			return err
		}

		if choice == quitChoice {
			return nil
		}

		st := step{op: statemachine.Operation(choice)}

		if targets := s.machine.Targets(s.entity, st.op); len(targets) > 1 {
			names := make([]string, len(targets))
			for i, t := range targets {
				names[i] = string(t)
			}

			if st.result, err = prompt.Select("Result", names...); err != nil {
				return err
			}
		}

		if err := s.fire(ctx, st); err != nil {
			return err
		}
	}
}

func newSimulateCmd() *cobra.Command {
	var (
		steps       []string
		actor       string
		interactive bool
		trace       bool
		logs        bool
	)

	cmd := &cobra.Command{
		Use:   "simulate <config.yaml>",
		Short: "Run operations against a definition without real bodies",
		Long: `Starts an entity in the initial state and fires each --step in order.
A step is "op", "op=result" to choose the body result (and so the outcome or
computed target), or "op!" to make the body fail. Known conditions such as
arg_true and permissions such as has_role are evaluated; unknown ones pass.`,
		Example: `  fsmctl simulate blog.yaml --actor alice:moderator --step publish=for_moderators --step moderate=published`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := statemachine.LoadConfig(args[0])
			if err != nil {
				return err
			}

			sim, err := newSimulator(config, cmd.OutOrStdout(), trace, logs)
			if err != nil {
				return err
			}

			ctx := logger.WithSubsystem(cmd.Context(), "simulate")
			if a := parseActor(actor); a != nil {
				ctx = statemachine.WithActor(ctx, a)
			}

			for _, raw := range steps {
				st, err := parseStep(raw)
				if err != nil {
					return err
				}

				if err := sim.fire(ctx, st); err != nil {
					return err
				}
			}

			if interactive {
				if err := sim.interactive(ctx, cli.IO{}); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "final state: %s\n", sim.entity.CurrentState())

			if sim.tracer != nil {
				fmt.Fprint(cmd.OutOrStdout(), "body calls:\n"+sim.tracer.String())
			}

			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&steps, "step", "s", nil, "operation to fire: op, op=result or op!")
	cmd.Flags().StringVar(&actor, "actor", "", "actor as id or id:role1,role2")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "pick operations from a menu after the steps")
	cmd.Flags().BoolVar(&trace, "trace", false, "list every body call with its result after the run")
	cmd.Flags().BoolVar(&logs, "log", false, "log each transition through the process logger")

	return cmd
}
