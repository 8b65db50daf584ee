package statemachine

import (
	"fmt"
	"slices"
	"sync"
)

// Registry holds the transition rules of one entity type, grouped by
// operation in registration order. It is populated at configuration time
// and read-only once frozen.
type Registry[E any] struct {
	mu     sync.RWMutex
	byOp   map[Operation][]*Rule[E]
	order  []Operation
	all    []*Rule[E]
	frozen bool
}

// NewRegistry creates an empty registry.
func NewRegistry[E any]() *Registry[E] {
	return &Registry[E]{
		byOp: make(map[Operation][]*Rule[E]),
	}
}

// Register validates the shape of rule and appends a copy of it.
func (r *Registry[E]) Register(rule Rule[E]) error {
	if err := rule.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("%w: cannot register %q", ErrRegistryFrozen, rule.Operation)
	}

	stored := rule.clone()

	if _, seen := r.byOp[stored.Operation]; !seen {
		r.order = append(r.order, stored.Operation)
	}

	r.byOp[stored.Operation] = append(r.byOp[stored.Operation], stored)
	r.all = append(r.all, stored)

	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry[E]) MustRegister(rules ...Rule[E]) *Registry[E] {
	for _, rule := range rules {
		if err := r.Register(rule); err != nil {
			panic(err)
		}
	}

	return r
}

// Lookup returns copies of the rules for op in registration order.
func (r *Registry[E]) Lookup(op Operation) []*Rule[E] {
	return cloneRules(r.lookup(op))
}

// lookup returns the stored rules for op. Callers must not modify them.
func (r *Registry[E]) lookup(op Operation) []*Rule[E] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.byOp[op]
}

// Operations returns every registered operation in first-registration order.
func (r *Registry[E]) Operations() []Operation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.order)
}

// Rules returns copies of every rule in registration order.
func (r *Registry[E]) Rules() []*Rule[E] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return cloneRules(r.all)
}

func cloneRules[E any](rules []*Rule[E]) []*Rule[E] {
	if len(rules) == 0 {
		return nil
	}

	out := make([]*Rule[E], len(rules))
	for i, rule := range rules {
		out[i] = rule.clone()
	}

	return out
}

// Len returns the number of registered rules.
func (r *Registry[E]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.all)
}

// Freeze makes the registry read-only. It is idempotent.
func (r *Registry[E]) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Frozen reports whether Freeze was called.
func (r *Registry[E]) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.frozen
}

// States returns every concrete state referenced by a rule, in first-seen
// order. Wildcards are omitted.
func (r *Registry[E]) States() []State {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var states []State

	add := func(s State) {
		if s == "" || s == AnyState || s == AnyOtherState || slices.Contains(states, s) {
			return
		}

		states = append(states, s)
	}

	for _, rule := range r.all {
		for _, src := range rule.Sources {
			add(src)
		}

		for _, dst := range rule.Target.Allowed() {
			add(dst)
		}

		add(rule.OnError)
	}

	return states
}
