// Package registry lets shell applications answer "do you have an action for
// this selected object?". Applications subscribe handlers under their id; every
// object-selected event from the companion app is broadcast to all of them.
//
// Within one application the most recently subscribed handler is asked first.
// A handler answers by calling its Notifier with an ActionDescriptor, which is
// proposed to the companion app; handlers with nothing to offer return
// without calling it.
package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/tailored-agentic-units/drawbridge/companion"
	"github.com/tailored-agentic-units/drawbridge/observability"
)

// Notifier proposes an action for the selection a handler was called with.
// It does not report whether the companion app accepted the proposal.
type Notifier func(action companion.ActionDescriptor)

// Handler is asked for actions on every selected object. Handlers run on the
// dispatch goroutine one after the other; long-running work belongs on a
// goroutine of its own, calling notify when done.
type Handler func(ctx context.Context, sel companion.Selection, notify Notifier) error

// Proposer delivers a proposed action to the companion app.
type Proposer func(ctx context.Context, action companion.ActionDescriptor) error

// Dispatcher runs inbound events one at a time. *loop.Loop satisfies it.
type Dispatcher interface {
	Submit(fn func()) bool
}

// Subscription identifies one subscribed handler.
type Subscription struct {
	ID            string
	ApplicationID string
}

type entry struct {
	sub     Subscription
	handler Handler
}

// Option configures a Registry.
type Option func(*Registry)

// WithObserver sets the observer registry events are reported to.
func WithObserver(observer observability.Observer) Option {
	return func(r *Registry) { r.observer = observer }
}

// WithProposer replaces the default proposer, the channel's ProposeAction.
func WithProposer(proposer Proposer) Option {
	return func(r *Registry) { r.proposer = proposer }
}

// WithContext sets the context handed to handlers of inbound events.
func WithContext(ctx context.Context) Option {
	return func(r *Registry) { r.ctx = ctx }
}

// Registry maps application ids to their handlers and owns the single
// object-selected subscription on the companion channel.
type Registry struct {
	ch         companion.Channel
	dispatcher Dispatcher
	proposer   Proposer
	observer   observability.Observer
	ctx        context.Context

	subscribeMu sync.Mutex
	cancel      companion.CancelFunc
	closed      bool

	mu    sync.Mutex
	apps  map[string][]entry
	order []string
}

// New creates a Registry. Inbound events are handed to dispatcher; a nil
// dispatcher runs each fan-out on the goroutine that delivered the event.
func New(ch companion.Channel, dispatcher Dispatcher, opts ...Option) *Registry {
	r := &Registry{
		ch:         ch,
		dispatcher: dispatcher,
		ctx:        context.Background(),
		apps:       make(map[string][]entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.proposer == nil {
		r.proposer = ch.ProposeAction
	}
	r.observer = observability.OrNoOp(r.observer)
	return r
}

// Subscribe appends handler to the application's handler list. The first
// successful Subscribe establishes the registry's channel subscription; if
// that fails the handler is not kept and the error is returned.
func (r *Registry) Subscribe(ctx context.Context, appID string, handler Handler) (Subscription, error) {
	if appID == "" {
		return Subscription{}, ErrEmptyApplicationID
	}
	if handler == nil {
		return Subscription{}, ErrNilHandler
	}

	r.subscribeMu.Lock()
	defer r.subscribeMu.Unlock()

	if r.closed {
		return Subscription{}, ErrClosed
	}

	sub := Subscription{
		ID:            uuid.Must(uuid.NewV7()).String(),
		ApplicationID: appID,
	}
	r.add(entry{sub: sub, handler: handler})

	if r.cancel == nil {
		cancel, err := r.ch.OnObjectSelected(ctx, r.onSelection)
		if err != nil {
			r.remove(appID, sub.ID)
			return Subscription{}, fmt.Errorf("subscribe to object selections: %w", err)
		}
		r.cancel = cancel

		observability.Emit(ctx, r.observer, EventChannelSubscribe, observability.LevelInfo, "registry", nil)
	}

	observability.Emit(ctx, r.observer, EventSubscribe, observability.LevelVerbose, "registry", map[string]any{
		"application_id":  appID,
		"subscription_id": sub.ID,
		"handlers":        r.Len(appID),
	})

	return sub, nil
}

// Unsubscribe removes the listed subscriptions of the application, or every
// subscription of the application when no ids are given. Unknown ids are
// ignored. An application left without handlers is dropped.
func (r *Registry) Unsubscribe(appID string, ids ...string) {
	removed := r.remove(appID, ids...)
	if removed == 0 {
		return
	}

	observability.Emit(r.ctx, r.observer, EventUnsubscribe, observability.LevelVerbose, "registry", map[string]any{
		"application_id": appID,
		"removed":        removed,
	})
}

func (r *Registry) add(e entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	appID := e.sub.ApplicationID
	if _, exists := r.apps[appID]; !exists {
		r.order = append(r.order, appID)
	}
	r.apps[appID] = append(r.apps[appID], e)
}

func (r *Registry) remove(appID string, ids ...string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, exists := r.apps[appID]
	if !exists {
		return 0
	}

	kept := entries[:0:0]
	if len(ids) > 0 {
		for _, e := range entries {
			if !slices.Contains(ids, e.sub.ID) {
				kept = append(kept, e)
			}
		}
	}

	if len(kept) == 0 {
		delete(r.apps, appID)
		r.order = slices.DeleteFunc(r.order, func(id string) bool { return id == appID })
	} else {
		r.apps[appID] = kept
	}
	return len(entries) - len(kept)
}

func (r *Registry) onSelection(sel companion.Selection) {
	if r.dispatcher == nil {
		r.Dispatch(r.ctx, sel.ObjectID)
		return
	}

	if !r.dispatcher.Submit(func() { r.Dispatch(r.ctx, sel.ObjectID) }) {
		observability.Emit(r.ctx, r.observer, EventSelectionDropped, observability.LevelWarning, "registry", map[string]any{
			"object_id": sel.ObjectID,
		})
	}
}

// Dispatch runs one fan-out for objectID on the calling goroutine and returns
// how many handlers ran. An empty objectID is discarded without calling any
// handler.
func (r *Registry) Dispatch(ctx context.Context, objectID string) int {
	if objectID == "" {
		observability.Emit(ctx, r.observer, EventSelectionDiscarded, observability.LevelVerbose, "registry", nil)
		return 0
	}

	sel := companion.Selection{ObjectID: objectID}
	notify := r.notifier(ctx, sel)

	var failures int
	targets := r.snapshot()
	for _, e := range targets {
		if err := r.invoke(ctx, e, sel, notify); err != nil {
			failures++
			observability.Emit(ctx, r.observer, EventHandlerFailed, observability.LevelError, "registry", map[string]any{
				"application_id":  e.sub.ApplicationID,
				"subscription_id": e.sub.ID,
				"object_id":       objectID,
				"error":           err.Error(),
			})
		}
	}

	observability.Emit(ctx, r.observer, EventDispatch, observability.LevelVerbose, "registry", map[string]any{
		"object_id": objectID,
		"handlers":  len(targets),
		"failures":  failures,
	})

	return len(targets)
}

// snapshot returns the handlers of one fan-out: applications in the order
// they first subscribed, each application's handlers newest first.
func (r *Registry) snapshot() []entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var targets []entry
	for _, appID := range r.order {
		entries := r.apps[appID]
		for i := len(entries) - 1; i >= 0; i-- {
			targets = append(targets, entries[i])
		}
	}
	return targets
}

func (r *Registry) invoke(ctx context.Context, e entry, sel companion.Selection, notify Notifier) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &HandlerError{
				ApplicationID:  e.sub.ApplicationID,
				SubscriptionID: e.sub.ID,
				ObjectID:       sel.ObjectID,
				Err:            fmt.Errorf("panic: %v", rec),
			}
		}
	}()

	if herr := e.handler(ctx, sel, notify); herr != nil {
		return &HandlerError{
			ApplicationID:  e.sub.ApplicationID,
			SubscriptionID: e.sub.ID,
			ObjectID:       sel.ObjectID,
			Err:            herr,
		}
	}
	return nil
}

func (r *Registry) notifier(ctx context.Context, sel companion.Selection) Notifier {
	return func(action companion.ActionDescriptor) {
		if action.ObjectID == "" {
			action.ObjectID = sel.ObjectID
		}
		if err := r.proposer(ctx, action); err != nil {
			observability.Emit(ctx, r.observer, EventProposalFailed, observability.LevelError, "registry", map[string]any{
				"object_id":        action.ObjectID,
				"callback_context": action.CallbackContext,
				"error":            err.Error(),
			})
		}
	}
}

// Applications returns the subscribed application ids in first-subscription
// order.
func (r *Registry) Applications() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.order)
}

// Len returns the number of handlers subscribed for the application.
func (r *Registry) Len(appID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.apps[appID])
}

// Close cancels the channel subscription and drops every handler. Subscribe
// fails with ErrClosed afterwards.
func (r *Registry) Close() {
	r.subscribeMu.Lock()
	defer r.subscribeMu.Unlock()

	if r.closed {
		return
	}
	r.closed = true

	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}

	r.mu.Lock()
	clear(r.apps)
	r.order = nil
	r.mu.Unlock()
}

// IsHandlerError reports whether err came from a failed handler.
func IsHandlerError(err error) bool {
	var herr *HandlerError
	return errors.As(err, &herr)
}
