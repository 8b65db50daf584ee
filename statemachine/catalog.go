package statemachine

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/mitchellh/mapstructure"
)

// CheckFunc is the predicate of a Condition.
type CheckFunc[E any] func(ctx context.Context, entity E, args Args) bool

// AllowFunc is the predicate of a Permission.
type AllowFunc[E any] func(ctx context.Context, entity E, actor Actor) bool

// ConditionBuilder creates a condition predicate from configuration params.
type ConditionBuilder[E any] func(params map[string]any) (CheckFunc[E], error)

// PermissionBuilder creates a permission predicate from configuration params.
type PermissionBuilder[E any] func(params map[string]any) (AllowFunc[E], error)

// Catalog maps the names used in a Config to Go functions.
type Catalog[E any] struct {
	bodies      map[string]Body[E]
	conditions  map[string]ConditionBuilder[E]
	permissions map[string]PermissionBuilder[E]
	computes    map[string]ComputeFunc[E]

	permissive      bool
	fallbackBody    Body[E]
	fallbackCompute ComputeFunc[E]
}

// CatalogOption configures a Catalog.
type CatalogOption[E any] func(*Catalog[E])

// Permissive makes unknown conditions and permissions pass instead of
// failing the build.
func Permissive[E any]() CatalogOption[E] {
	return func(c *Catalog[E]) {
		c.permissive = true
	}
}

// FallbackBody is used for bodies the catalog does not know.
func FallbackBody[E any](body Body[E]) CatalogOption[E] {
	return func(c *Catalog[E]) {
		c.fallbackBody = body
	}
}

// FallbackCompute is used for compute functions the catalog does not know.
func FallbackCompute[E any](fn ComputeFunc[E]) CatalogOption[E] {
	return func(c *Catalog[E]) {
		c.fallbackCompute = fn
	}
}

// NewCatalog creates an empty catalog.
func NewCatalog[E any](opts ...CatalogOption[E]) *Catalog[E] {
	catalog := &Catalog[E]{
		bodies:      make(map[string]Body[E]),
		conditions:  make(map[string]ConditionBuilder[E]),
		permissions: make(map[string]PermissionBuilder[E]),
		computes:    make(map[string]ComputeFunc[E]),
	}

	for _, opt := range opts {
		opt(catalog)
	}

	return catalog
}

// RegisterBody registers an operation body.
func (c *Catalog[E]) RegisterBody(name string, body Body[E]) *Catalog[E] {
	c.bodies[name] = body

	return c
}

// RegisterCondition registers a parameterless condition.
func (c *Catalog[E]) RegisterCondition(name string, check CheckFunc[E]) *Catalog[E] {
	c.conditions[name] = func(map[string]any) (CheckFunc[E], error) {
		return check, nil
	}

	return c
}

// RegisterConditionBuilder registers a condition built from params.
func (c *Catalog[E]) RegisterConditionBuilder(name string, builder ConditionBuilder[E]) *Catalog[E] {
	c.conditions[name] = builder

	return c
}

// RegisterPermission registers a parameterless permission.
func (c *Catalog[E]) RegisterPermission(name string, allow AllowFunc[E]) *Catalog[E] {
	c.permissions[name] = func(map[string]any) (AllowFunc[E], error) {
		return allow, nil
	}

	return c
}

// RegisterPermissionBuilder registers a permission built from params.
func (c *Catalog[E]) RegisterPermissionBuilder(name string, builder PermissionBuilder[E]) *Catalog[E] {
	c.permissions[name] = builder

	return c
}

// RegisterCompute registers a target compute function.
func (c *Catalog[E]) RegisterCompute(name string, fn ComputeFunc[E]) *Catalog[E] {
	c.computes[name] = fn

	return c
}

func (c *Catalog[E]) body(name string) (Body[E], error) {
	if body, ok := c.bodies[name]; ok {
		return body, nil
	}

	if c.fallbackBody != nil {
		return c.fallbackBody, nil
	}

	return nil, fmt.Errorf("%w: body %q", ErrUnknownReference, name)
}

func (c *Catalog[E]) condition(ref RefConfig) (Condition[E], error) {
	builder, ok := c.conditions[ref.Name]
	if !ok {
		if c.permissive {
			return NewCondition[E](ref.Name, func(context.Context, E, Args) bool { return true }), nil
		}

		return Condition[E]{}, fmt.Errorf("%w: condition %q", ErrUnknownReference, ref.Name)
	}

	check, err := builder(maps.Clone(ref.Params))
	if err != nil {
		return Condition[E]{}, fmt.Errorf("condition %q: %w", ref.Name, err)
	}

	return NewCondition[E](ref.Name, check), nil
}

func (c *Catalog[E]) permission(ref RefConfig) (*Permission[E], error) {
	builder, ok := c.permissions[ref.Name]
	if !ok {
		if c.permissive {
			perm := NewPermission[E](ref.Name, func(context.Context, E, Actor) bool { return true })

			return &perm, nil
		}

		return nil, fmt.Errorf("%w: permission %q", ErrUnknownReference, ref.Name)
	}

	allow, err := builder(maps.Clone(ref.Params))
	if err != nil {
		return nil, fmt.Errorf("permission %q: %w", ref.Name, err)
	}

	perm := NewPermission[E](ref.Name, allow)

	return &perm, nil
}

func (c *Catalog[E]) compute(name string) (ComputeFunc[E], error) {
	if name == "" {
		return nil, ErrComputeFuncRequired
	}

	if fn, ok := c.computes[name]; ok {
		return fn, nil
	}

	if c.fallbackCompute != nil {
		return c.fallbackCompute, nil
	}

	return nil, fmt.Errorf("%w: compute %q", ErrUnknownReference, name)
}

// DecodeParams decodes configuration params into T, converting loosely typed
// YAML scalars where needed.
func DecodeParams[T any](params map[string]any) (T, error) {
	var out T

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return out, err
	}

	if err := decoder.Decode(params); err != nil {
		return out, fmt.Errorf("decoding params: %w", err)
	}

	return out, nil
}

// BuildRegistry validates cfg and binds every transition to catalog
// functions, in declaration order. Every unresolved name is reported.
func BuildRegistry[E any](cfg *Config, catalog *Catalog[E]) (*Registry[E], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registry := NewRegistry[E]()

	var errs []error

	for i, tc := range cfg.Transitions {
		rule, err := buildRule(tc, catalog)
		if err == nil {
			err = registry.Register(rule)
		}

		if err != nil {
			errs = append(errs, fmt.Errorf("transition %d (%s): %w", i, tc.Operation, err))
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return registry, nil
}

// BuildMachine builds the registry for cfg and wraps it in a Machine named
// after cfg.Entity.
func BuildMachine[E Entity](cfg *Config, catalog *Catalog[E], opts ...Option) (*Machine[E], error) {
	registry, err := BuildRegistry(cfg, catalog)
	if err != nil {
		return nil, err
	}

	return New(cfg.Entity, registry, opts...), nil
}

func buildRule[E any](tc TransitionConfig, catalog *Catalog[E]) (Rule[E], error) {
	rule := Rule[E]{
		Operation: Operation(tc.Operation),
		OnError:   State(tc.OnError),
		Custom:    maps.Clone(tc.Custom),
	}

	var errs []error

	for _, src := range tc.Sources {
		rule.Sources = append(rule.Sources, State(src))
	}

	if tc.Body != "" {
		body, err := catalog.body(tc.Body)
		if err != nil {
			errs = append(errs, err)
		}

		rule.Body = body
		rule.Custom = withCustom(rule.Custom, "body", tc.Body)
	}

	allowed := make([]State, 0, len(tc.Target.Allowed))
	for _, s := range tc.Target.Allowed {
		allowed = append(allowed, State(s))
	}

	switch tc.Target.Type {
	case TargetTypeFixed:
		rule.Target = Fixed[E](State(tc.Target.State))
	case TargetTypeOutcome:
		rule.Target = OutcomeMapped[E](allowed...)
	case TargetTypeComputed:
		fn, err := catalog.compute(tc.Target.Func)
		if err != nil {
			errs = append(errs, err)
		} else {
			rule.Target = PredicateComputed(fn, allowed...)
			rule.Custom = withCustom(rule.Custom, "func", tc.Target.Func)
		}
	}

	for _, ref := range tc.Conditions {
		cond, err := catalog.condition(ref)
		if err != nil {
			errs = append(errs, err)

			continue
		}

		rule.Conditions = append(rule.Conditions, cond)
	}

	if tc.Permission != nil {
		perm, err := catalog.permission(*tc.Permission)
		if err != nil {
			errs = append(errs, err)
		}

		rule.Permission = perm
	}

	return rule, errors.Join(errs...)
}

func withCustom(custom map[string]any, key string, value any) map[string]any {
	if custom == nil {
		custom = make(map[string]any)
	}

	custom[key] = value

	return custom
}
