package envutil

import (
	"errors"
	"fmt"
)

var (
	ErrBadEnvVar     = errors.New("error parsing environment variable")
	ErrEnvVarMissing = errors.New("missing environment variable")
)

// Reader is a variable looked up in the environment, possibly parsed into A.
// It remembers whether the variable was set and whether parsing failed, so
// defaults and validation can be layered on before Value is called.
type Reader[A any] struct {
	key     string
	present bool
	err     error

	value A
}

// Value returns the parsed value. It fails with ErrEnvVarMissing when the
// variable is unset and has no default, and with ErrBadEnvVar when parsing
// or validation failed.
func (e Reader[A]) Value() (A, error) { //nolint:ireturn
	var zero A

	switch {
	case e.err != nil:
		return zero, fmt.Errorf("%w %s: %w", ErrBadEnvVar, e.key, e.err)
	case !e.present:
		return zero, fmt.Errorf("%w %s", ErrEnvVarMissing, e.key)
	default:
		return e.value, nil
	}
}

// HasValue reports whether the variable was set (or defaulted) and parsed.
func (e Reader[A]) HasValue() bool {
	return e.present && e.err == nil
}

// HasError reports whether parsing or validation failed.
func (e Reader[A]) HasError() bool {
	return e.err != nil
}

// WithDefault fills in v when the variable is unset. Parse errors are kept.
func (e Reader[A]) WithDefault(v A) Reader[A] { //nolint:ireturn
	if e.present {
		return e
	}

	return Reader[A]{key: e.key, present: true, err: e.err, value: v}
}

// Map transforms the value with f, keeping the type.
func (e Reader[A]) Map(f func(A) (A, error)) Reader[A] { //nolint:ireturn
	return Map(e, f)
}

// Map transforms the value of env with f. Unset and failed readers pass
// through untouched.
func Map[A any, B any](env Reader[A], f func(A) (B, error)) Reader[B] {
	if !env.HasValue() {
		return Reader[B]{key: env.key, present: env.present, err: env.err}
	}

	val, err := f(env.value)

	return Reader[B]{key: env.key, present: true, err: err, value: val}
}
