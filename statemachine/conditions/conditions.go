// Package conditions provides reusable conditions and permissions and the
// combinators to compose them.
package conditions

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/amp-labs/amp-fsm/statemachine"
)

// All passes when every condition passes. Conditions are checked in order
// and checking stops at the first failure.
func All[E any](name string, conds ...statemachine.Condition[E]) statemachine.Condition[E] {
	return statemachine.NewCondition[E](name, func(ctx context.Context, entity E, args statemachine.Args) bool {
		for _, cond := range conds {
			if !cond.Check(ctx, entity, args) {
				return false
			}
		}

		return true
	})
}

// AnyOf passes when at least one condition passes.
func AnyOf[E any](name string, conds ...statemachine.Condition[E]) statemachine.Condition[E] {
	return statemachine.NewCondition[E](name, func(ctx context.Context, entity E, args statemachine.Args) bool {
		for _, cond := range conds {
			if cond.Check(ctx, entity, args) {
				return true
			}
		}

		return false
	})
}

// Not inverts a condition. The result is named "not_<name>".
func Not[E any](cond statemachine.Condition[E]) statemachine.Condition[E] {
	return statemachine.NewCondition[E]("not_"+cond.Name, func(ctx context.Context, entity E, args statemachine.Args) bool {
		return !cond.Check(ctx, entity, args)
	})
}

// ArgTrue passes when the invocation arg key is the boolean true.
func ArgTrue[E any](key string) statemachine.Condition[E] {
	return statemachine.NewCondition[E]("arg_"+key, func(_ context.Context, _ E, args statemachine.Args) bool {
		v, ok := args.GetBool(key)

		return ok && v
	})
}

// ArgPresent passes when the invocation carries arg key.
func ArgPresent[E any](key string) statemachine.Condition[E] {
	return statemachine.NewCondition[E]("has_arg_"+key, func(_ context.Context, _ E, args statemachine.Args) bool {
		_, ok := args.Get(key)

		return ok
	})
}

// ArgEquals passes when arg key deep-equals value.
func ArgEquals[E any](key string, value any) statemachine.Condition[E] {
	name := fmt.Sprintf("arg_%s_is_%v", key, value)

	return statemachine.NewCondition[E](name, func(_ context.Context, _ E, args statemachine.Args) bool {
		v, ok := args.Get(key)

		return ok && reflect.DeepEqual(v, value)
	})
}

// RoleHolder is implemented by actors that carry roles.
type RoleHolder interface {
	Roles() []string
}

// ActorHasRole allows actors holding any of the roles.
func ActorHasRole[E any](roles ...string) statemachine.Permission[E] {
	name := "role_" + strings.Join(roles, "_or_")

	return statemachine.NewPermission[E](name, func(_ context.Context, _ E, actor statemachine.Actor) bool {
		holder, ok := actor.(RoleHolder)
		if !ok {
			return false
		}

		for _, role := range holder.Roles() {
			if slices.Contains(roles, role) {
				return true
			}
		}

		return false
	})
}

// ActorIn allows the actors with the given ids.
func ActorIn[E any](ids ...string) statemachine.Permission[E] {
	return statemachine.NewPermission[E]("actor_in", func(_ context.Context, _ E, actor statemachine.Actor) bool {
		return actor != nil && slices.Contains(ids, actor.ID())
	})
}

// Authenticated allows any actor with a non-empty id.
func Authenticated[E any]() statemachine.Permission[E] {
	return statemachine.NewPermission[E]("authenticated", func(_ context.Context, _ E, actor statemachine.Actor) bool {
		return actor != nil && actor.ID() != ""
	})
}

// AnyPermission allows the actor when any permission does.
func AnyPermission[E any](name string, perms ...statemachine.Permission[E]) statemachine.Permission[E] {
	return statemachine.NewPermission[E](name, func(ctx context.Context, entity E, actor statemachine.Actor) bool {
		for _, perm := range perms {
			if perm.Allow(ctx, entity, actor) {
				return true
			}
		}

		return false
	})
}

// AllPermissions allows the actor only when every permission does.
func AllPermissions[E any](name string, perms ...statemachine.Permission[E]) statemachine.Permission[E] {
	return statemachine.NewPermission[E](name, func(ctx context.Context, entity E, actor statemachine.Actor) bool {
		for _, perm := range perms {
			if !perm.Allow(ctx, entity, actor) {
				return false
			}
		}

		return true
	})
}

// RoleParams are the params of the role permission builder.
type RoleParams struct {
	Role  string   `mapstructure:"role"`
	Roles []string `mapstructure:"roles"`
}

type argParams struct {
	Key   string `mapstructure:"key"`
	Value any    `mapstructure:"value"`
}

// RegisterDefaults adds the package's conditions and permissions to a
// catalog under their conventional names:
//
//	conditions:  arg_true {key}, arg_present {key}, arg_equals {key, value}
//	permissions: has_role {role | roles}, authenticated
func RegisterDefaults[E any](catalog *statemachine.Catalog[E]) *statemachine.Catalog[E] {
	argCondition := func(build func(p argParams) statemachine.Condition[E]) statemachine.ConditionBuilder[E] {
		return func(params map[string]any) (statemachine.CheckFunc[E], error) {
			p, err := statemachine.DecodeParams[argParams](params)
			if err != nil {
				return nil, err
			}

			if p.Key == "" {
				return nil, fmt.Errorf("%w: key param required", statemachine.ErrInvalidConfig)
			}

			return build(p).Check, nil
		}
	}

	return catalog.
		RegisterConditionBuilder("arg_true", argCondition(func(p argParams) statemachine.Condition[E] {
			return ArgTrue[E](p.Key)
		})).
		RegisterConditionBuilder("arg_present", argCondition(func(p argParams) statemachine.Condition[E] {
			return ArgPresent[E](p.Key)
		})).
		RegisterConditionBuilder("arg_equals", argCondition(func(p argParams) statemachine.Condition[E] {
			return ArgEquals[E](p.Key, p.Value)
		})).
		RegisterPermissionBuilder("has_role", func(params map[string]any) (statemachine.AllowFunc[E], error) {
			p, err := statemachine.DecodeParams[RoleParams](params)
			if err != nil {
				return nil, err
			}

			roles := p.Roles
			if p.Role != "" {
				roles = append(roles, p.Role)
			}

			if len(roles) == 0 {
				return nil, fmt.Errorf("%w: role or roles param required", statemachine.ErrInvalidConfig)
			}

			return ActorHasRole[E](roles...).Allow, nil
		}).
		RegisterPermission("authenticated", Authenticated[E]().Allow)
}
