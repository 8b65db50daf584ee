// Package statemachine provides a declarative transition engine for entities
// that carry a single state attribute.
//
// Rules are registered once, at configuration time, in a Registry. A Machine
// matches a requested operation against those rules, checks permission and
// conditions, runs the operation body, resolves the target state (fixed, taken
// from the body's result, or computed from it) and publishes pre- and
// post-transition events on a Bus around the single assignment of the new
// state.
//
// A Machine does not serialize concurrent invocations against the same
// entity. Callers either own that serialization (row locks, optimistic
// checks in their persistence layer) or configure one with WithLocker.
package statemachine

import "context"

// State is a token from the application's finite state alphabet.
type State string

const (
	// AnyState matches every current state when used as a rule source.
	AnyState State = "*"

	// AnyOtherState matches every current state except the rule's fixed target.
	AnyOtherState State = "+"
)

func (s State) String() string {
	return string(s)
}

// Operation names the action that triggers a transition.
type Operation string

func (o Operation) String() string {
	return string(o)
}

// Entity is an object whose lifecycle is governed by a Machine.
type Entity interface {
	CurrentState() State
	SetState(state State)
}

// Keyed entities can be serialized through a Locker. The key must identify
// the entity across every process sharing the Locker.
type Keyed interface {
	LockKey() string
}

// StateField holds an entity's current state. Embed it to satisfy Entity.
type StateField struct {
	state State
}

// NewStateField creates a field holding the initial state.
func NewStateField(initial State) StateField {
	return StateField{state: initial}
}

// CurrentState returns the current value of the field.
func (f *StateField) CurrentState() State {
	return f.state
}

// SetState overwrites the field. Machines call it exactly once per completed
// transition; calling it directly bypasses every rule.
func (f *StateField) SetState(state State) {
	f.state = state
}

// Body is the business logic of an operation. Its result is returned to the
// caller of Fire and feeds dynamic targets.
type Body[E any] func(ctx context.Context, entity E, args Args) (any, error)

// Condition is a named precondition over the entity and the invocation args.
type Condition[E any] struct {
	Name  string
	Check func(ctx context.Context, entity E, args Args) bool
}

// NewCondition creates a named condition.
func NewCondition[E any](name string, check func(ctx context.Context, entity E, args Args) bool) Condition[E] {
	return Condition[E]{
		Name:  name,
		Check: check,
	}
}

// Permission decides whether an actor may take a rule. The actor is nil when
// the context carries none.
type Permission[E any] struct {
	Name  string
	Allow func(ctx context.Context, entity E, actor Actor) bool
}

// NewPermission creates a named permission.
func NewPermission[E any](name string, allow func(ctx context.Context, entity E, actor Actor) bool) Permission[E] {
	return Permission[E]{
		Name:  name,
		Allow: allow,
	}
}
