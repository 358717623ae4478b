// Package pool runs independent tasks on a fixed number of workers and
// returns their results in submission order.
package pool

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Func processes the item at index i.
type Func[T, R any] func(ctx context.Context, i int, item T) R

// Run feeds items to workers goroutines and collects one result per item,
// indexed by input position. Worker counts below one are clamped to one.
//
// Tasks cannot fail the pool; fn reports failure through R. If ctx is
// cancelled, undispatched items keep the zero R and Run returns ctx.Err()
// together with the results gathered so far.
func Run[T, R any](ctx context.Context, workers int, items []T, fn Func[T, R]) ([]R, error) {
	if workers < 1 {
		workers = 1
	}
	if workers > len(items) && len(items) > 0 {
		workers = len(items)
	}

	results := make([]R, len(items))
	if len(items) == 0 {
		return results, nil
	}

	tasks := make(chan int)
	g, gctx := errgroup.WithContext(ctx)

	// Producer stops feeding once ctx is done; in-flight tasks finish.
	g.Go(func() error {
		defer close(tasks)
		for i := range items {
			select {
			case tasks <- i:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := range tasks {
				// Each index is written by exactly one worker.
				results[i] = fn(gctx, i, items[i])
			}
			return nil
		})
	}

	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("pool interrupted: %w", err)
	}
	return results, nil
}
