// Package actions composes transition bodies. Each combinator returns a
// statemachine.Body, so composed bodies plug into rules, builders and
// catalogs like hand-written ones.
package actions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/amp-labs/amp-fsm/statemachine"
)

var (
	// ErrBothActionsFailed is returned when both primary and fallback bodies fail.
	ErrBothActionsFailed = errors.New("both primary and fallback actions failed")
	// ErrBranchFailed is returned when the body of a conditional branch fails.
	ErrBranchFailed = errors.New("branch failed")
	// ErrActionFailedAfterRetries is returned when a body keeps failing after every attempt.
	ErrActionFailedAfterRetries = errors.New("action failed after retries")
	// ErrSomeActionsFailed is returned when parallel bodies fail.
	ErrSomeActionsFailed = errors.New("some actions failed")
	// ErrStepFailed is returned when a step in a sequence fails.
	ErrStepFailed = errors.New("step failed")
	// ErrNoBranchTaken is returned when no branch matches and there is no default.
	ErrNoBranchTaken = errors.New("no branch taken")
)

// TryWithFallback runs primary and, when it fails, fallback with the same args.
// The fallback's result is used when it succeeds.
func TryWithFallback[E any](primary, fallback statemachine.Body[E]) statemachine.Body[E] {
	return func(ctx context.Context, entity E, args statemachine.Args) (any, error) {
		result, err := primary(ctx, entity, args)
		if err == nil {
			return result, nil
		}

		result, fallbackErr := fallback(ctx, entity, args)
		if fallbackErr != nil {
			return nil, fmt.Errorf("%w: primary=%w, fallback=%w", ErrBothActionsFailed, err, fallbackErr)
		}

		return result, nil
	}
}

// Sequence runs bodies in order and returns the last result. The first
// failure stops the sequence.
func Sequence[E any](steps ...statemachine.Body[E]) statemachine.Body[E] {
	return func(ctx context.Context, entity E, args statemachine.Args) (any, error) {
		var result any

		for i, step := range steps {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			var err error

			result, err = step(ctx, entity, args)
			if err != nil {
				return nil, fmt.Errorf("%w %d: %w", ErrStepFailed, i, err)
			}
		}

		return result, nil
	}
}

// Branch pairs a predicate with the body it selects.
type Branch[E any] struct {
	When func(ctx context.Context, entity E, args statemachine.Args) bool
	Body statemachine.Body[E]
}

// ConditionalBranch runs the body of the first matching branch, or
// defaultBody when none matches. A nil defaultBody makes an unmatched
// invocation fail with ErrNoBranchTaken.
func ConditionalBranch[E any](branches []Branch[E], defaultBody statemachine.Body[E]) statemachine.Body[E] {
	return func(ctx context.Context, entity E, args statemachine.Args) (any, error) {
		for i, branch := range branches {
			if !branch.When(ctx, entity, args) {
				continue
			}

			result, err := branch.Body(ctx, entity, args)
			if err != nil {
				return nil, fmt.Errorf("%w %d: %w", ErrBranchFailed, i, err)
			}

			return result, nil
		}

		if defaultBody == nil {
			return nil, ErrNoBranchTaken
		}

		result, err := defaultBody(ctx, entity, args)
		if err != nil {
			return nil, fmt.Errorf("default %w: %w", ErrBranchFailed, err)
		}

		return result, nil
	}
}

// RetryOptions configures RetryWithBackoff. Zero fields take defaults.
type RetryOptions struct {
	MaxAttempts       int           // default 3
	InitialDelay      time.Duration // default 1s
	MaxDelay          time.Duration // default 30s
	BackoffMultiplier float64       // default 2.0

	// RetryCondition reports whether an error is worth another attempt.
	// Nil retries every error.
	RetryCondition func(error) bool
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}

	if o.InitialDelay <= 0 {
		o.InitialDelay = time.Second
	}

	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second //nolint:mnd // default cap for exponential backoff
	}

	if o.BackoffMultiplier <= 0 {
		o.BackoffMultiplier = 2.0
	}

	return o
}

// RetryWithBackoff retries a failing body with exponential backoff. The wait
// between attempts is cut short by context cancellation. Non-retryable errors
// are returned as they are.
func RetryWithBackoff[E any](body statemachine.Body[E], opts RetryOptions) statemachine.Body[E] {
	opts = opts.withDefaults()

	return func(ctx context.Context, entity E, args statemachine.Args) (any, error) {
		delay := opts.InitialDelay

		var lastErr error

		for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
			result, err := body(ctx, entity, args)
			if err == nil {
				return result, nil
			}

			if opts.RetryCondition != nil && !opts.RetryCondition(err) {
				return nil, err
			}

			lastErr = err

			if attempt == opts.MaxAttempts {
				break
			}

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()

				return nil, ctx.Err()
			case <-timer.C:
			}

			delay = min(time.Duration(float64(delay)*opts.BackoffMultiplier), opts.MaxDelay)
		}

		return nil, fmt.Errorf("%w: %d attempts: %w", ErrActionFailedAfterRetries, opts.MaxAttempts, lastErr)
	}
}

// Parallel runs bodies concurrently, at most concurrency at a time, and
// returns their results in declaration order. Bodies share the entity, so
// they must only read it. A non-positive concurrency runs all at once.
func Parallel[E any](concurrency int, bodies ...statemachine.Body[E]) statemachine.Body[E] {
	return func(ctx context.Context, entity E, args statemachine.Args) (any, error) {
		if len(bodies) == 0 {
			return []any{}, nil
		}

		size := concurrency
		if size <= 0 || size > len(bodies) {
			size = len(bodies)
		}

		pool := pond.NewResultPool[any](size, pond.WithContext(ctx))
		defer pool.StopAndWait()

		group := pool.NewGroup()
		results := make([]any, len(bodies))
		errs := make([]error, len(bodies))

		for i, body := range bodies {
			group.Submit(func() any {
				results[i], errs[i] = body(ctx, entity, args.Clone())

				return nil
			})
		}

		if _, err := group.Wait(); err != nil {
			return nil, err
		}

		if err := errors.Join(errs...); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSomeActionsFailed, err)
		}

		return results, nil
	}
}
