// Package mock provides an in-memory companion.Channel that records every
// outbound call and lets tests inject inbound events.
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/tailored-agentic-units/drawbridge/companion"
)

// Option configures a Channel.
type Option func(*Channel)

// WithDrawings sets the CanShowObject answer for an object id.
func WithDrawings(objectID string, drawings ...companion.DrawingDescriptor) Option {
	return func(c *Channel) { c.drawings[objectID] = drawings }
}

// WithKnownDrawing makes CanShowDrawing answer true for the id.
func WithKnownDrawing(drawingID string) Option {
	return func(c *Channel) { c.knownDrawings[drawingID] = true }
}

// WithError makes every outbound call of the named operation fail with err.
// Operation names match the Channel method names ("ProposeAction", ...).
func WithError(operation string, err error) Option {
	return func(c *Channel) { c.failures[operation] = err }
}

// Channel is a recording companion.Channel.
type Channel struct {
	mu sync.Mutex

	drawings      map[string][]companion.DrawingDescriptor
	knownDrawings map[string]bool
	failures      map[string]error

	shows      []companion.ShowRequest
	toasts     []companion.Toast
	proposals  []companion.ActionDescriptor
	batches    [][]companion.ActionDescriptor
	returns    int
	calls      []string
	selections map[string]companion.SelectionHandler
	openers    map[string]companion.LocationHandler
	subscribeN int
}

// New creates a Channel.
func New(opts ...Option) *Channel {
	c := &Channel{
		drawings:      make(map[string][]companion.DrawingDescriptor),
		knownDrawings: make(map[string]bool),
		failures:      make(map[string]error),
		selections:    make(map[string]companion.SelectionHandler),
		openers:       make(map[string]companion.LocationHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetError changes the failure configured for an operation; nil clears it.
func (c *Channel) SetError(operation string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.failures, operation)
		return
	}
	c.failures[operation] = err
}

func (c *Channel) record(operation string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, operation)
	return c.failures[operation]
}

func (c *Channel) ShowObject(ctx context.Context, req companion.ShowRequest) error {
	if err := c.record("ShowObject"); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shows = append(c.shows, req)
	return nil
}

func (c *Channel) ShowDrawing(ctx context.Context, drawingID string) error {
	if err := c.record("ShowDrawing"); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shows = append(c.shows, companion.ShowRequest{DrawingID: drawingID})
	return nil
}

func (c *Channel) CanShowObject(ctx context.Context, objectID string) ([]companion.DrawingDescriptor, error) {
	if err := c.record("CanShowObject"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.drawings[objectID]), nil
}

func (c *Channel) CanShowDrawing(ctx context.Context, drawingID string) (bool, error) {
	if err := c.record("CanShowDrawing"); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.knownDrawings[drawingID], nil
}

func (c *Channel) ShowToast(ctx context.Context, toast companion.Toast) error {
	if err := c.record("ShowToast"); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toasts = append(c.toasts, toast)
	return nil
}

func (c *Channel) ProposeAction(ctx context.Context, action companion.ActionDescriptor) error {
	if err := c.record("ProposeAction"); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.proposals = append(c.proposals, action)
	return nil
}

func (c *Channel) SubscribeAlwaysVisible(ctx context.Context, actions []companion.ActionDescriptor) error {
	if err := c.record("SubscribeAlwaysVisible"); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, slices.Clone(actions))
	return nil
}

func (c *Channel) ReturnToCompanionApp(ctx context.Context) error {
	if err := c.record("ReturnToCompanionApp"); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.returns++
	return nil
}

func (c *Channel) OnObjectSelected(ctx context.Context, handler companion.SelectionHandler) (companion.CancelFunc, error) {
	if err := c.record("OnObjectSelected"); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	c.mu.Lock()
	c.selections[id] = handler
	c.subscribeN++
	c.mu.Unlock()
	return c.canceler(func() { delete(c.selections, id) }), nil
}

func (c *Channel) OnOpenExternalApp(ctx context.Context, handler companion.LocationHandler) (companion.CancelFunc, error) {
	if err := c.record("OnOpenExternalApp"); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	c.mu.Lock()
	c.openers[id] = handler
	c.mu.Unlock()
	return c.canceler(func() { delete(c.openers, id) }), nil
}

func (c *Channel) canceler(remove func()) companion.CancelFunc {
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			remove()
		})
	}
}

// SelectObject delivers an object-selected event to every live subscription.
func (c *Channel) SelectObject(objectID string) {
	c.mu.Lock()
	handlers := make([]companion.SelectionHandler, 0, len(c.selections))
	for _, h := range c.selections {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()

	for _, h := range handlers {
		h(companion.Selection{ObjectID: objectID})
	}
}

// OpenExternalApp delivers an open-external-app event to every live subscription.
func (c *Channel) OpenExternalApp(location string) {
	c.mu.Lock()
	handlers := make([]companion.LocationHandler, 0, len(c.openers))
	for _, h := range c.openers {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()

	for _, h := range handlers {
		h(location)
	}
}

// Proposals returns the recorded ProposeAction payloads.
func (c *Channel) Proposals() []companion.ActionDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.proposals)
}

// Batches returns the recorded SubscribeAlwaysVisible payloads.
func (c *Channel) Batches() [][]companion.ActionDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.batches)
}

// Shows returns the recorded ShowObject and ShowDrawing payloads.
func (c *Channel) Shows() []companion.ShowRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.shows)
}

// Toasts returns the recorded ShowToast payloads.
func (c *Channel) Toasts() []companion.Toast {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.toasts)
}

// Returns counts ReturnToCompanionApp calls.
func (c *Channel) Returns() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.returns
}

// SelectionSubscriptions counts OnObjectSelected calls that succeeded.
func (c *Channel) SelectionSubscriptions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribeN
}

// LiveSubscriptions counts subscriptions of either kind not yet cancelled.
func (c *Channel) LiveSubscriptions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.selections) + len(c.openers)
}

// Calls returns the operation names in call order, including failed calls.
func (c *Channel) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.calls)
}
