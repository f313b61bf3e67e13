// Package dispatch runs per-item work over a bounded pool of workers.
package dispatch

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// DefaultWorkers is the pool size used when the caller does not set one.
const DefaultWorkers = 5

var (
	itemsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "citegraph_dispatch_items_total",
		Help: "Total number of items dispatched to the worker pool",
	})

	itemsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "citegraph_dispatch_failures_total",
		Help: "Total number of dispatched items that failed",
	})
)

// Progress is invoked after each item finishes, successfully or not, with
// the number of completed items and the total. Calls are serialized but
// arrive in completion order, not input order.
type Progress func(completed, total int)

// Map applies fn to every item using at most workers goroutines. The
// result slice is aligned to the input: results[i] always belongs to
// items[i], and a failed item leaves the zero value in its slot. Item
// failures never abort the batch; only context cancellation stops
// dispatching early, and the partial results gathered so far are returned
// with ctx.Err().
func Map[T, R any](ctx context.Context, items []T, workers int, progress Progress, fn func(context.Context, T) (R, error)) ([]R, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > len(items) {
		workers = len(items)
	}

	type job struct {
		index int
		item  T
	}

	results := make([]R, len(items))
	jobs := make(chan job)
	var completed int64
	var progressMu sync.Mutex

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				itemsDispatched.Inc()
				r, err := fn(ctx, j.item)
				if err != nil {
					itemsFailed.Inc()
					log.Debug().Err(err).Int("index", j.index).Msg("dispatched item failed")
				} else {
					results[j.index] = r
				}
				done := int(atomic.AddInt64(&completed, 1))
				if progress != nil {
					progressMu.Lock()
					progress(done, len(items))
					progressMu.Unlock()
				}
			}
		}()
	}

	var dispatchErr error
feed:
	for i := range items {
		select {
		case jobs <- job{index: i, item: items[i]}:
		case <-ctx.Done():
			dispatchErr = ctx.Err()
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	return results, dispatchErr
}
