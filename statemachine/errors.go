package statemachine

import (
	"errors"
	"fmt"
	"strings"
)

// Transition failures. Every failure returned by Machine.Fire for one of
// these reasons is a *TransitionError that unwraps to the matching sentinel.
var (
	// ErrInvalidTransition indicates no rule for the operation accepts the current state.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrNotAllowed indicates the actor lacks permission for every candidate rule.
	ErrNotAllowed = errors.New("transition not allowed")
	// ErrConditionsNotMet indicates every candidate rule had a failing condition.
	ErrConditionsNotMet = errors.New("transition conditions not met")
	// ErrInvalidResult indicates a dynamic target resolved outside its allowed states.
	ErrInvalidResult = errors.New("invalid transition result")
)

// Configuration and runtime support errors.
var (
	// ErrInvalidRule indicates a rule failed shape validation at registration.
	ErrInvalidRule = errors.New("invalid transition rule")
	// ErrRegistryFrozen indicates a registration after the registry was frozen.
	ErrRegistryFrozen = errors.New("registry is frozen")
	// ErrUnknownReference indicates a configuration named a function missing from the catalog.
	ErrUnknownReference = errors.New("unknown catalog reference")
	// ErrBusClosed indicates a subscription attempt on a closed bus.
	ErrBusClosed = errors.New("notification bus is closed")
	// ErrNotKeyed indicates an entity without a lock key was fired on a machine with a locker.
	ErrNotKeyed = errors.New("entity does not implement Keyed")
	// ErrNilEntity indicates Fire was called with a nil entity.
	ErrNilEntity = errors.New("entity is nil")

	// ErrInvalidConfig indicates a declarative configuration is malformed.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrEntityNameRequired indicates that a configuration entity name is required.
	ErrEntityNameRequired = errors.New("entity name is required")
	// ErrStateRequired indicates that at least one state is required.
	ErrStateRequired = errors.New("at least one state is required")
	// ErrInitialStateRequired indicates that an initial state is required.
	ErrInitialStateRequired = errors.New("initial state is required")
	// ErrInitialStateNotFound indicates that the initial state is not declared.
	ErrInitialStateNotFound = errors.New("initial state is not a declared state")
	// ErrDuplicateStateName indicates that a state is declared twice.
	ErrDuplicateStateName = errors.New("duplicate state name")
	// ErrOperationRequired indicates that a transition has no operation.
	ErrOperationRequired = errors.New("transition operation is required")
	// ErrSourcesRequired indicates that a transition has no sources.
	ErrSourcesRequired = errors.New("transition sources are required")
	// ErrTargetRequired indicates that a transition has no target.
	ErrTargetRequired = errors.New("transition target is required")
	// ErrUnknownTargetType indicates that a target type is not fixed, outcome or computed.
	ErrUnknownTargetType = errors.New("unknown target type")
	// ErrAllowedRequired indicates that a dynamic target declares no allowed states.
	ErrAllowedRequired = errors.New("dynamic target requires allowed states")
	// ErrComputeFuncRequired indicates that a computed target names no function.
	ErrComputeFuncRequired = errors.New("computed target requires a func")
	// ErrStateNotDeclared indicates that a transition references an undeclared state.
	ErrStateNotDeclared = errors.New("state is not declared")
	// ErrNameRequired indicates that a condition or permission has no name.
	ErrNameRequired = errors.New("reference name is required")
	// ErrNoConfigLoader indicates that no loader was provided for a path-less load.
	ErrNoConfigLoader = errors.New("no config loader registered; use SetConfigLoader() or provide a file path")
)

// FailureKind classifies a TransitionError.
type FailureKind int

const (
	KindInvalidTransition FailureKind = iota + 1
	KindNotAllowed
	KindConditionsNotMet
	KindInvalidResult
)

func (k FailureKind) String() string {
	switch k {
	case KindInvalidTransition:
		return "invalid_transition"
	case KindNotAllowed:
		return "not_allowed"
	case KindConditionsNotMet:
		return "conditions_not_met"
	case KindInvalidResult:
		return "invalid_result"
	default:
		return fmt.Sprintf("FailureKind(%d)", int(k))
	}
}

func (k FailureKind) sentinel() error {
	switch k {
	case KindInvalidTransition:
		return ErrInvalidTransition
	case KindNotAllowed:
		return ErrNotAllowed
	case KindConditionsNotMet:
		return ErrConditionsNotMet
	case KindInvalidResult:
		return ErrInvalidResult
	default:
		return nil
	}
}

// TransitionError describes why an operation did not change the entity.
type TransitionError struct {
	Kind       FailureKind
	EntityType string
	Operation  Operation
	Source     State

	// Target is set for InvalidResult when the resolved value was a state.
	Target State

	// Condition names the failing condition for ConditionsNotMet.
	Condition string

	// Permission names the denying permission for NotAllowed.
	Permission string

	// Result is the body's result for InvalidResult.
	Result any
}

func (e *TransitionError) Error() string {
	var sb strings.Builder

	sb.WriteString(e.Kind.sentinel().Error())

	if e.EntityType != "" {
		fmt.Fprintf(&sb, ": %s", e.EntityType)
	}

	fmt.Fprintf(&sb, " %q from %q", e.Operation, e.Source)

	switch e.Kind {
	case KindNotAllowed:
		if e.Permission != "" {
			fmt.Fprintf(&sb, " (permission %q)", e.Permission)
		}
	case KindConditionsNotMet:
		fmt.Fprintf(&sb, " (condition %q)", e.Condition)
	case KindInvalidResult:
		if e.Target != "" {
			fmt.Fprintf(&sb, " (resolved %q)", e.Target)
		} else {
			fmt.Fprintf(&sb, " (result %v)", e.Result)
		}
	case KindInvalidTransition:
	}

	return sb.String()
}

func (e *TransitionError) Unwrap() error {
	return e.Kind.sentinel()
}

// IsInvalidTransition reports whether err is an invalid transition failure.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

// IsNotAllowed reports whether err is a permission failure.
func IsNotAllowed(err error) bool {
	return errors.Is(err, ErrNotAllowed)
}

// IsConditionsNotMet reports whether err is a condition failure.
func IsConditionsNotMet(err error) bool {
	return errors.Is(err, ErrConditionsNotMet)
}

// IsInvalidResult reports whether err is an invalid dynamic result.
func IsInvalidResult(err error) bool {
	return errors.Is(err, ErrInvalidResult)
}

// AsTransitionError extracts the TransitionError from err, if any.
func AsTransitionError(err error) (*TransitionError, bool) {
	var te *TransitionError
	if errors.As(err, &te) {
		return te, true
	}

	return nil, false
}

// BodyError wraps an error returned by an operation body.
type BodyError struct {
	EntityType string
	Operation  Operation
	Source     State
	Err        error
}

func (e *BodyError) Error() string {
	return fmt.Sprintf("%s %q from %q: %v", e.EntityType, e.Operation, e.Source, e.Err)
}

func (e *BodyError) Unwrap() error {
	return e.Err
}

// ObserverError wraps an error returned by a bus observer.
type ObserverError struct {
	Channel Channel
	EventID string
	Err     error
}

func (e *ObserverError) Error() string {
	return fmt.Sprintf("%s observer for event %s: %v", e.Channel, e.EventID, e.Err)
}

func (e *ObserverError) Unwrap() error {
	return e.Err
}
