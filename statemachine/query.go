package statemachine

import "context"

// Available returns the operations with at least one rule accepting the
// entity's current state, in registration order. Conditions and permissions
// are not evaluated.
func (m *Machine[E]) Available(entity E) []Operation {
	source := entity.CurrentState()

	var ops []Operation

	for _, op := range m.registry.Operations() {
		if len(m.candidates(op, source)) > 0 {
			ops = append(ops, op)
		}
	}

	return ops
}

// Permitted returns the operations that would currently select a rule: some
// candidate's permission (for the actor in ctx) and conditions pass. Bodies
// are not run, so a dynamic target may still reject the invocation.
func (m *Machine[E]) Permitted(ctx context.Context, entity E, args Args) []Operation {
	source := entity.CurrentState()
	actor := ActorFrom(ctx)

	var ops []Operation

	for _, op := range m.registry.Operations() {
		for _, rule := range m.candidates(op, source) {
			if !permits(ctx, rule, entity, actor) {
				continue
			}

			if _, ok := firstFailedCondition(ctx, rule, entity, args); ok {
				ops = append(ops, op)

				break
			}
		}
	}

	return ops
}

// CanFire reports whether some candidate rule for op has all conditions
// passing. Permissions are not checked; see HasPermission.
func (m *Machine[E]) CanFire(ctx context.Context, entity E, op Operation, args Args) bool {
	for _, rule := range m.candidates(op, entity.CurrentState()) {
		if _, ok := firstFailedCondition(ctx, rule, entity, args); ok {
			return true
		}
	}

	return false
}

// HasPermission reports whether the actor in ctx passes the permission of
// some candidate rule for op. Rules without a permission admit everyone.
func (m *Machine[E]) HasPermission(ctx context.Context, entity E, op Operation) bool {
	actor := ActorFrom(ctx)

	for _, rule := range m.candidates(op, entity.CurrentState()) {
		if permits(ctx, rule, entity, actor) {
			return true
		}
	}

	return false
}

// Targets returns the states op could move the entity to from its current
// state, following every candidate rule. OnError states are included.
func (m *Machine[E]) Targets(entity E, op Operation) []State {
	var states []State

	seen := make(map[State]struct{})

	add := func(s State) {
		if _, ok := seen[s]; ok || s == "" {
			return
		}

		seen[s] = struct{}{}
		states = append(states, s)
	}

	for _, rule := range m.candidates(op, entity.CurrentState()) {
		for _, s := range rule.Target.Allowed() {
			add(s)
		}

		add(rule.OnError)
	}

	return states
}
