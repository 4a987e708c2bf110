// Package fanout runs independent tasks on a bounded worker pool and waits for all of them.
package fanout

import (
	"context"
	"sync"
)

// Result is the outcome of the task at Index.
type Result[T any] struct {
	Index int
	Value T
	Err   error
}

// Run calls task for every index in [0, n) using at most workers goroutines and
// returns one result per index, in index order. A failing task never stops the
// others: every index is attempted and its error recorded in its own Result.
// Tasks not yet started when ctx is done are recorded with ctx.Err().
func Run[T any](ctx context.Context, n, workers int, task func(ctx context.Context, idx int) (T, error)) []Result[T] {
	results := make([]Result[T], n)
	if n == 0 {
		return results
	}
	if workers <= 0 || workers > n {
		workers = n
	}

	jobs := make(chan int, n)
	var wgr sync.WaitGroup

	for w := 0; w < workers; w++ {
		wgr.Add(1)
		go func() {
			defer wgr.Done()
			for idx := range jobs {
				if err := ctx.Err(); err != nil {
					results[idx] = Result[T]{Index: idx, Err: err}
					continue
				}
				value, err := task(ctx, idx)
				results[idx] = Result[T]{Index: idx, Value: value, Err: err}
			}
		}()
	}

	for idx := 0; idx < n; idx++ {
		jobs <- idx
	}
	close(jobs)

	wgr.Wait()
	return results
}
