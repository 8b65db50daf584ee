package statemachine

import (
	"fmt"
	"maps"
	"slices"
)

// Rule declares one transition: when Operation is requested from one of
// Sources, and Permission and Conditions pass, run Body and move to Target.
type Rule[E any] struct {
	Operation  Operation
	Sources    []State
	Target     Target[E]
	Conditions []Condition[E]
	Permission *Permission[E]
	Body       Body[E]

	// OnError, when set, is the state the entity moves to if Body fails.
	OnError State

	// Custom carries free-form metadata such as UI labels.
	Custom map[string]any
}

// accepts reports whether the rule is a candidate from state s.
func (r *Rule[E]) accepts(s State) bool {
	for _, src := range r.Sources {
		switch src {
		case AnyState:
			return true
		case AnyOtherState:
			return s != r.fixedTarget()
		case s:
			return true
		}
	}

	return false
}

func (r *Rule[E]) fixedTarget() State {
	if ft, ok := r.Target.(*fixedTarget[E]); ok {
		return ft.state
	}

	return ""
}

func (r *Rule[E]) validate() error {
	if r.Operation == "" {
		return fmt.Errorf("%w: operation is empty", ErrInvalidRule)
	}

	if len(r.Sources) == 0 {
		return fmt.Errorf("%w: %q has no sources", ErrInvalidRule, r.Operation)
	}

	for _, src := range r.Sources {
		if src == "" {
			return fmt.Errorf("%w: %q has an empty source", ErrInvalidRule, r.Operation)
		}

		if (src == AnyState || src == AnyOtherState) && len(r.Sources) > 1 {
			return fmt.Errorf("%w: %q mixes wildcard %q with other sources", ErrInvalidRule, r.Operation, src)
		}
	}

	if r.Target == nil {
		return fmt.Errorf("%w: %q has no target", ErrInvalidRule, r.Operation)
	}

	switch target := r.Target.(type) {
	case *fixedTarget[E]:
		if target.state == "" || target.state == AnyState || target.state == AnyOtherState {
			return fmt.Errorf("%w: %q has invalid fixed target %q", ErrInvalidRule, r.Operation, target.state)
		}
	case *outcomeTarget[E]:
		if len(target.allowed) == 0 {
			return fmt.Errorf("%w: %q outcome target allows no states", ErrInvalidRule, r.Operation)
		}
	case *computedTarget[E]:
		if target.fn == nil {
			return fmt.Errorf("%w: %q computed target has no func", ErrInvalidRule, r.Operation)
		}

		if len(target.allowed) == 0 {
			return fmt.Errorf("%w: %q computed target allows no states", ErrInvalidRule, r.Operation)
		}
	}

	if r.Sources[0] == AnyOtherState && r.Target.Kind() != TargetFixed {
		return fmt.Errorf("%w: %q uses %q without a fixed target", ErrInvalidRule, r.Operation, AnyOtherState)
	}

	for i, cond := range r.Conditions {
		if cond.Check == nil {
			return fmt.Errorf("%w: %q condition %d (%s) has no check", ErrInvalidRule, r.Operation, i, cond.Name)
		}
	}

	if r.Permission != nil && r.Permission.Allow == nil {
		return fmt.Errorf("%w: %q permission %s has no check", ErrInvalidRule, r.Operation, r.Permission.Name)
	}

	return nil
}

func (r *Rule[E]) clone() *Rule[E] {
	out := *r
	out.Sources = slices.Clone(r.Sources)
	out.Conditions = slices.Clone(r.Conditions)

	if r.Permission != nil {
		perm := *r.Permission
		out.Permission = &perm
	}

	if r.Custom != nil {
		out.Custom = maps.Clone(r.Custom)
	}

	return &out
}
