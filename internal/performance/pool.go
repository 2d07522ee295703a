// Package performance provides bounded concurrent execution for batch work.
package performance

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool runs batches of independent tasks on a fixed number of goroutines.
// A Pool is stateless between batches and safe for concurrent use.
type Pool struct {
	workers    int
	tasksTotal atomic.Uint64
	tasksDone  atomic.Uint64
}

// NewPool creates a pool with the given number of workers.
// If workers is 0 or negative, it defaults to runtime.NumCPU().
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{workers: workers}
}

// Workers returns the pool size.
func (p *Pool) Workers() int { return p.workers }

// Run calls fn(i) for every i in [0, n). It stops handing out work once ctx
// is done and returns ctx.Err() in that case.
func (p *Pool) Run(ctx context.Context, n int, fn func(i int)) error {
	if n <= 0 {
		return ctx.Err()
	}
	workers := p.workers
	if workers > n {
		workers = n
	}
	p.tasksTotal.Add(uint64(n))

	var next atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if ctx.Err() != nil {
					return
				}
				i := int(next.Add(1) - 1)
				if i >= n {
					return
				}
				fn(i)
				p.tasksDone.Add(1)
			}
		}()
	}
	wg.Wait()
	return ctx.Err()
}

// Stats returns pool statistics.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Workers:    p.workers,
		TasksTotal: p.tasksTotal.Load(),
		TasksDone:  p.tasksDone.Load(),
	}
}

// PoolStats holds pool statistics.
type PoolStats struct {
	Workers    int
	TasksTotal uint64
	TasksDone  uint64
}

// Map applies fn to every item on the pool and returns the results in input
// order. The first error by input position is returned alongside the
// partial results.
func Map[T, R any](ctx context.Context, p *Pool, items []T, fn func(context.Context, T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	errs := make([]error, len(items))
	if err := p.Run(ctx, len(items), func(i int) {
		results[i], errs[i] = fn(ctx, items[i])
	}); err != nil {
		return results, err
	}
	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}
