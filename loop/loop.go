// Package loop provides the single logical thread of control the bridge runs
// on. Inbound companion events, shell navigation events and aggregation
// completions are all posted to one Loop, so the state they touch (handler
// registry, navigation correlation) has exactly one writer at a time.
//
//	l := loop.New(loop.DefaultConfig(), observer)
//	l.Start(ctx)
//	l.Submit(func() { correlator.LocationChanged(ctx, from, to) })
//	defer l.Shutdown(time.Second)
package loop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tailored-agentic-units/drawbridge/observability"
)

// ErrStopped is returned when work is posted to a loop that has been shut down.
var ErrStopped = errors.New("event loop stopped")

// Loop runs submitted callbacks one at a time, in submission order, on a
// dedicated goroutine. Submit and Run are safe for concurrent use.
type Loop struct {
	name     string
	queue    chan func()
	observer observability.Observer

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	startOnce sync.Once
}

// New creates a Loop. Callbacks submitted before Start are queued (up to the
// configured queue size) and run once the loop starts.
func New(cfg Config, observer observability.Observer) *Loop {
	defaults := DefaultConfig()
	defaults.Merge(&cfg)

	ctx, cancel := context.WithCancel(context.Background())
	return &Loop{
		name:     defaults.Name,
		queue:    make(chan func(), defaults.QueueSize),
		observer: observability.OrNoOp(observer),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start launches the loop goroutine. Calling Start more than once has no
// effect. Cancelling ctx stops the loop the same way Shutdown does.
func (l *Loop) Start(ctx context.Context) {
	l.startOnce.Do(func() {
		stop := context.AfterFunc(ctx, l.cancel)
		observability.Emit(ctx, l.observer, EventStart, observability.LevelVerbose, "loop", map[string]any{
			"loop":       l.name,
			"queue_size": cap(l.queue),
		})
		go func() {
			defer stop()
			l.run()
		}()
	})
}

// Submit queues fn to run on the loop goroutine. It returns false when the
// loop has been stopped and fn will never run.
func (l *Loop) Submit(fn func()) bool {
	if fn == nil || l.ctx.Err() != nil {
		return false
	}

	select {
	case l.queue <- fn:
		return true
	case <-l.ctx.Done():
		return false
	}
}

// TrySubmit is Submit without blocking: it returns false when the queue is
// full. Code running on the loop goroutine uses it to queue more work.
func (l *Loop) TrySubmit(fn func()) bool {
	if fn == nil || l.ctx.Err() != nil {
		return false
	}

	select {
	case l.queue <- fn:
		return true
	default:
		return false
	}
}

// Run queues fn and waits for it to finish. It must not be called from the
// loop goroutine itself.
func (l *Loop) Run(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	ok := l.Submit(func() {
		defer close(finished)
		fn()
	})
	if !ok {
		return ErrStopped
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("loop run cancelled: %w", ctx.Err())
	case <-l.done:
		return ErrStopped
	}
}

// Done is closed once the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Shutdown stops accepting work and waits for the loop goroutine to exit.
// Callbacks still queued are dropped. Shutdown on a loop that was never
// started returns immediately.
func (l *Loop) Shutdown(timeout time.Duration) error {
	l.cancel()

	started := true
	l.startOnce.Do(func() {
		started = false
		close(l.done)
	})
	if !started {
		return nil
	}

	select {
	case <-l.done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("loop %s shutdown timeout after %v", l.name, timeout)
	}
}

func (l *Loop) run() {
	defer close(l.done)

	for {
		select {
		case <-l.ctx.Done():
			observability.Emit(context.Background(), l.observer, EventStop, observability.LevelVerbose, "loop", map[string]any{
				"loop":    l.name,
				"dropped": len(l.queue),
			})
			return
		case fn := <-l.queue:
			l.execute(fn)
		}
	}
}

func (l *Loop) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			observability.Emit(l.ctx, l.observer, EventTaskPanic, observability.LevelError, "loop", map[string]any{
				"loop":  l.name,
				"panic": fmt.Sprint(r),
			})
		}
	}()
	fn()
}
