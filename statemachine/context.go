package statemachine

import (
	"context"
	"maps"
)

// Args carries the business arguments of an invocation.
type Args map[string]any

// Get retrieves a value. It is safe on a nil Args.
func (a Args) Get(key string) (any, bool) {
	val, ok := a[key]

	return val, ok
}

// GetString retrieves a string value.
func (a Args) GetString(key string) (string, bool) {
	val, ok := a.Get(key)
	if !ok {
		return "", false
	}

	str, ok := val.(string)

	return str, ok
}

// GetBool retrieves a boolean value.
func (a Args) GetBool(key string) (bool, bool) {
	val, ok := a.Get(key)
	if !ok {
		return false, false
	}

	b, ok := val.(bool)

	return b, ok
}

// GetInt retrieves an integer value.
func (a Args) GetInt(key string) (int, bool) {
	val, ok := a.Get(key)
	if !ok {
		return 0, false
	}

	i, ok := val.(int)

	return i, ok
}

// Clone returns a shallow copy. Cloning nil yields nil.
func (a Args) Clone() Args {
	if a == nil {
		return nil
	}

	clone := make(Args, len(a))
	maps.Copy(clone, a)

	return clone
}

// Actor identifies who invokes an operation. Permissions receive it.
type Actor interface {
	ID() string
}

// ActorID is the simplest Actor: a bare identifier.
type ActorID string

func (a ActorID) ID() string {
	return string(a)
}

type contextKey string

const actorContextKey contextKey = "statemachine_actor"

// WithActor attaches the acting principal to the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, actorContextKey, actor)
}

// ActorFrom returns the actor attached with WithActor, or nil.
func ActorFrom(ctx context.Context) Actor {
	if ctx == nil {
		return nil
	}

	actor, ok := ctx.Value(actorContextKey).(Actor)
	if !ok {
		return nil
	}

	return actor
}

func actorID(actor Actor) string {
	if actor == nil {
		return ""
	}

	return actor.ID()
}
