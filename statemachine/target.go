package statemachine

import (
	"fmt"
	"slices"
)

// TargetKind tags the variants of Target.
type TargetKind int

const (
	TargetFixed TargetKind = iota
	TargetOutcome
	TargetComputed
)

func (k TargetKind) String() string {
	switch k {
	case TargetFixed:
		return "fixed"
	case TargetOutcome:
		return "outcome"
	case TargetComputed:
		return "computed"
	default:
		return fmt.Sprintf("TargetKind(%d)", int(k))
	}
}

// ComputeFunc derives a target from the entity, the body's result and the
// invocation args.
type ComputeFunc[E any] func(entity E, result any, args Args) State

// Target resolves the state a rule moves the entity to. The set of variants
// is closed: Fixed, OutcomeMapped and PredicateComputed.
type Target[E any] interface {
	Kind() TargetKind

	// Allowed lists every state the target can resolve to.
	Allowed() []State

	resolve(entity E, result any, args Args) (State, error)
}

// errResultNotAllowed is translated into an InvalidResult TransitionError.
type errResultNotAllowed struct {
	resolved State
	result   any
}

func (e *errResultNotAllowed) Error() string {
	return fmt.Sprintf("resolved target %q (from result %v) is not an allowed state", e.resolved, e.result)
}

type fixedTarget[E any] struct {
	state State
}

// Fixed always resolves to state.
func Fixed[E any](state State) Target[E] { //nolint:ireturn
	return &fixedTarget[E]{state: state}
}

func (t *fixedTarget[E]) Kind() TargetKind {
	return TargetFixed
}

func (t *fixedTarget[E]) Allowed() []State {
	return []State{t.state}
}

func (t *fixedTarget[E]) resolve(E, any, Args) (State, error) {
	return t.state, nil
}

type outcomeTarget[E any] struct {
	allowed []State
}

// OutcomeMapped uses the body's result as the target. The result must be a
// State or a string naming one of allowed.
func OutcomeMapped[E any](allowed ...State) Target[E] { //nolint:ireturn
	return &outcomeTarget[E]{allowed: slices.Clone(allowed)}
}

func (t *outcomeTarget[E]) Kind() TargetKind {
	return TargetOutcome
}

func (t *outcomeTarget[E]) Allowed() []State {
	return slices.Clone(t.allowed)
}

func (t *outcomeTarget[E]) resolve(_ E, result any, _ Args) (State, error) {
	var state State

	switch val := result.(type) {
	case State:
		state = val
	case string:
		state = State(val)
	default:
		return "", &errResultNotAllowed{result: result}
	}

	if !slices.Contains(t.allowed, state) {
		return "", &errResultNotAllowed{resolved: state, result: result}
	}

	return state, nil
}

type computedTarget[E any] struct {
	fn      ComputeFunc[E]
	allowed []State
}

// PredicateComputed runs fn after the body and uses its answer as the target,
// which must be one of allowed.
func PredicateComputed[E any](fn ComputeFunc[E], allowed ...State) Target[E] { //nolint:ireturn
	return &computedTarget[E]{
		fn:      fn,
		allowed: slices.Clone(allowed),
	}
}

func (t *computedTarget[E]) Kind() TargetKind {
	return TargetComputed
}

func (t *computedTarget[E]) Allowed() []State {
	return slices.Clone(t.allowed)
}

func (t *computedTarget[E]) resolve(entity E, result any, args Args) (State, error) {
	state := t.fn(entity, result, args)
	if !slices.Contains(t.allowed, state) {
		return "", &errResultNotAllowed{resolved: state, result: result}
	}

	return state, nil
}
