package aggregate

import "context"

// Task produces one result for one item. Tasks report failures through their
// result type; a Task that never returns stalls the job.
type Task[T, R any] func(ctx context.Context, item T) R

// Go starts task for every item on its own goroutine and reports each result
// into a new Job. onComplete receives the results in arrival order.
func Go[T, R any](ctx context.Context, items []T, task Task[T, R], onComplete func([]R), opts ...Option) *Job[R] {
	job := NewJob(len(items), onComplete, opts...)
	for _, item := range items {
		go func() {
			job.Report(task(ctx, item))
		}()
	}
	return job
}

// Await starts a job through start and blocks until its completion callback
// delivers results or ctx ends. It is the liveness wrapper for callers that
// cannot wait forever on a stalled sub-task.
func Await[R any](ctx context.Context, start func(onComplete func([]R))) ([]R, error) {
	delivered := make(chan []R, 1)
	start(func(results []R) {
		select {
		case delivered <- results:
		default:
		}
	})

	select {
	case results := <-delivered:
		return results, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
