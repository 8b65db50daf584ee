package statemachine

import (
	"context"
	"errors"
	"fmt"
)

// Builder provides a fluent API for declaring the rules of an entity type.
//
//	reg, err := statemachine.NewBuilder[*Post]().
//		Operation("publish", publish).From("new").ToOutcome("for_moderators", "published").Done().
//		Operation("moderate", nil).From("for_moderators").ToComputed(moderate, "published", "rejected").
//		When("has_title", hasTitle).Done().
//		Build()
type Builder[E Entity] struct {
	rules []*RuleBuilder[E]
}

// NewBuilder creates an empty builder.
func NewBuilder[E Entity]() *Builder[E] {
	return &Builder[E]{}
}

// Operation starts a rule for op with the given body, which may be nil.
func (b *Builder[E]) Operation(op Operation, body Body[E]) *RuleBuilder[E] {
	rb := &RuleBuilder[E]{
		parent: b,
		rule: Rule[E]{
			Operation: op,
			Body:      body,
		},
	}

	b.rules = append(b.rules, rb)

	return rb
}

// Add appends a fully formed rule.
func (b *Builder[E]) Add(rule Rule[E]) *Builder[E] {
	b.rules = append(b.rules, &RuleBuilder[E]{parent: b, rule: rule})

	return b
}

// Build registers every declared rule, in declaration order, in a new
// registry. All rule errors are reported together.
func (b *Builder[E]) Build() (*Registry[E], error) {
	registry := NewRegistry[E]()

	var errs []error

	for i, rb := range b.rules {
		if err := registry.Register(rb.rule); err != nil {
			errs = append(errs, fmt.Errorf("rule %d: %w", i, err))
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return registry, nil
}

// Machine builds the registry and wraps it in a Machine.
func (b *Builder[E]) Machine(entityType string, opts ...Option) (*Machine[E], error) {
	registry, err := b.Build()
	if err != nil {
		return nil, err
	}

	return New(entityType, registry, opts...), nil
}

// RuleBuilder declares one rule. Finish it with Done.
type RuleBuilder[E Entity] struct {
	parent *Builder[E]
	rule   Rule[E]
}

// From sets the source states.
func (r *RuleBuilder[E]) From(sources ...State) *RuleBuilder[E] {
	r.rule.Sources = append(r.rule.Sources, sources...)

	return r
}

// FromAny accepts every current state.
func (r *RuleBuilder[E]) FromAny() *RuleBuilder[E] {
	return r.From(AnyState)
}

// To sets a fixed target.
func (r *RuleBuilder[E]) To(target State) *RuleBuilder[E] {
	r.rule.Target = Fixed[E](target)

	return r
}

// ToOutcome takes the target from the body's result.
func (r *RuleBuilder[E]) ToOutcome(allowed ...State) *RuleBuilder[E] {
	r.rule.Target = OutcomeMapped[E](allowed...)

	return r
}

// ToComputed computes the target with fn after the body ran.
func (r *RuleBuilder[E]) ToComputed(fn ComputeFunc[E], allowed ...State) *RuleBuilder[E] {
	r.rule.Target = PredicateComputed(fn, allowed...)

	return r
}

// When adds a named condition.
func (r *RuleBuilder[E]) When(name string, check func(ctx context.Context, entity E, args Args) bool) *RuleBuilder[E] {
	r.rule.Conditions = append(r.rule.Conditions, NewCondition[E](name, check))

	return r
}

// If adds prebuilt conditions.
func (r *RuleBuilder[E]) If(conds ...Condition[E]) *RuleBuilder[E] {
	r.rule.Conditions = append(r.rule.Conditions, conds...)

	return r
}

// Permit sets the permission.
func (r *RuleBuilder[E]) Permit(name string, allow func(ctx context.Context, entity E, actor Actor) bool) *RuleBuilder[E] {
	perm := NewPermission[E](name, allow)
	r.rule.Permission = &perm

	return r
}

// WithPermission sets a prebuilt permission.
func (r *RuleBuilder[E]) WithPermission(perm Permission[E]) *RuleBuilder[E] {
	r.rule.Permission = &perm

	return r
}

// OnError routes body failures to state.
func (r *RuleBuilder[E]) OnError(state State) *RuleBuilder[E] {
	r.rule.OnError = state

	return r
}

// Custom attaches a metadata entry.
func (r *RuleBuilder[E]) Custom(key string, value any) *RuleBuilder[E] {
	if r.rule.Custom == nil {
		r.rule.Custom = make(map[string]any)
	}

	r.rule.Custom[key] = value

	return r
}

// Done returns to the parent builder.
func (r *RuleBuilder[E]) Done() *Builder[E] {
	return r.parent
}
