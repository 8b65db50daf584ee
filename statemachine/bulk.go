package statemachine

import (
	"context"

	"github.com/alitto/pond/v2"
)

// BulkResult is the outcome of one entity in FireAll.
type BulkResult struct {
	Result any
	Err    error
}

// FireAll fires op on every entity with at most concurrency invocations in
// flight and returns the outcomes in input order. Entities must be distinct:
// the machine does not serialize invocations on one entity unless it has a
// Locker. A non-positive concurrency runs one invocation at a time.
func FireAll[E Entity](
	ctx context.Context,
	machine *Machine[E],
	entities []E,
	op Operation,
	args Args,
	concurrency int,
) []BulkResult {
	results := make([]BulkResult, len(entities))
	ran := make([]bool, len(entities))

	if len(entities) == 0 {
		return results
	}

	if concurrency <= 0 {
		concurrency = 1
	}

	pool := pond.NewPool(concurrency, pond.WithContext(ctx))

	for i, entity := range entities {
		pool.Submit(func() {
			ran[i] = true

			if err := ctx.Err(); err != nil {
				results[i] = BulkResult{Err: err}

				return
			}

			result, err := machine.Fire(ctx, entity, op, args.Clone())
			results[i] = BulkResult{Result: result, Err: err}
		})
	}

	pool.StopAndWait()

	// Tasks dropped by a cancelled pool never ran.
	for i := range results {
		if !ran[i] {
			results[i].Err = ctx.Err()
		}
	}

	return results
}
