// Package aggregate implements the fan-out/fan-in primitive used to prepare
// batched payloads: N asynchronous sub-tasks report into one Job, and the
// Job's completion callback fires exactly once, when all N have reported.
//
// Results are delivered in arrival order, not submission order. A sub-task
// that never reports leaves its Job incomplete forever; there is no timeout,
// retry or cancellation here. Callers that need liveness use Await with a
// deadline on the context.
package aggregate

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/tailored-agentic-units/drawbridge/observability"
)

// Option configures a Job.
type Option func(*options)

type options struct {
	observer observability.Observer
	source   string
}

// WithObserver reports job lifecycle events, including surplus completions.
func WithObserver(observer observability.Observer) Option {
	return func(o *options) { o.observer = observer }
}

// WithSource names the component that owns the job in emitted events.
func WithSource(source string) Option {
	return func(o *options) { o.source = source }
}

// Job is one fan-out/fan-in round. Report is safe for concurrent use.
type Job[R any] struct {
	id         string
	expected   int
	onComplete func([]R)
	observer   observability.Observer
	source     string

	mu        sync.Mutex
	results   []R
	completed int
	fired     bool
}

// NewJob creates a job that calls onComplete once expected results have been
// reported. When expected is zero (or negative) onComplete receives an empty
// slice before NewJob returns.
func NewJob[R any](expected int, onComplete func([]R), opts ...Option) *Job[R] {
	o := options{source: "aggregate"}
	for _, opt := range opts {
		opt(&o)
	}

	j := &Job[R]{
		id:         uuid.Must(uuid.NewV7()).String(),
		expected:   max(expected, 0),
		onComplete: onComplete,
		observer:   observability.OrNoOp(o.observer),
		source:     o.source,
	}
	j.results = make([]R, 0, j.expected)

	observability.Emit(context.Background(), j.observer, EventJobCreate, observability.LevelVerbose, j.source, map[string]any{
		"job_id":   j.id,
		"expected": j.expected,
	})

	if j.expected == 0 {
		j.fired = true
		j.complete([]R{})
	}

	return j
}

// Report records one sub-task result. It returns false when the job had
// already received every expected result; such surplus reports are ignored
// and never re-trigger the completion callback.
func (j *Job[R]) Report(result R) bool {
	j.mu.Lock()
	if j.completed >= j.expected {
		completed := j.completed
		j.mu.Unlock()

		observability.Emit(context.Background(), j.observer, EventJobSurplus, observability.LevelWarning, j.source, map[string]any{
			"job_id":    j.id,
			"expected":  j.expected,
			"completed": completed,
		})
		return false
	}

	j.results = append(j.results, result)
	j.completed++

	var snapshot []R
	if j.completed == j.expected && !j.fired {
		j.fired = true
		snapshot = slices.Clone(j.results)
	}
	j.mu.Unlock()

	if snapshot != nil {
		j.complete(snapshot)
	}
	return true
}

func (j *Job[R]) complete(results []R) {
	observability.Emit(context.Background(), j.observer, EventJobComplete, observability.LevelVerbose, j.source, map[string]any{
		"job_id":  j.id,
		"results": len(results),
	})
	if j.onComplete != nil {
		j.onComplete(results)
	}
}

// ID returns the job's unique identifier.
func (j *Job[R]) ID() string {
	return j.id
}

// Expected returns the number of results the job waits for.
func (j *Job[R]) Expected() int {
	return j.expected
}

// Completed returns the number of results reported so far.
func (j *Job[R]) Completed() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.completed
}

// Done reports whether the completion callback has fired.
func (j *Job[R]) Done() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fired
}

func (j *Job[R]) String() string {
	return fmt.Sprintf("Job{ID: %s, Completed: %d/%d}", j.id, j.Completed(), j.expected)
}
