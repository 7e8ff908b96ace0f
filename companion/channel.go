// Package companion defines the surface drawbridge consumes from, and exposes
// to, the companion drawing application: the payload shapes and the duplex
// Channel they travel over. Concrete transports live in subpackages.
package companion

import "context"

// CancelFunc ends an event subscription. It is safe to call more than once.
type CancelFunc func()

// SelectionHandler receives every object-selected event until cancelled.
type SelectionHandler func(Selection)

// LocationHandler receives every open-external-app event until cancelled.
// The location is the CallbackContext of some ActionDescriptor, round-tripped
// by the companion app.
type LocationHandler func(location string)

// Channel is the duplex link to the companion app: fire-and-wait calls plus
// long-lived event subscriptions. Implementations must be safe for concurrent
// use. Handlers may be invoked from any goroutine; callers that need ordering
// hand events to their own event loop.
type Channel interface {
	// ShowObject asks the companion app to display objects, optionally
	// scoped to a drawing.
	ShowObject(ctx context.Context, req ShowRequest) error
	// ShowDrawing asks the companion app to open a drawing.
	ShowDrawing(ctx context.Context, drawingID string) error
	// CanShowObject lists the drawings an object appears on.
	CanShowObject(ctx context.Context, objectID string) ([]DrawingDescriptor, error)
	// CanShowDrawing reports whether the companion app knows the drawing.
	CanShowDrawing(ctx context.Context, drawingID string) (bool, error)
	// ShowToast displays a short message inside the companion app.
	ShowToast(ctx context.Context, toast Toast) error

	// ProposeAction offers an action for the currently selected object.
	ProposeAction(ctx context.Context, action ActionDescriptor) error
	// SubscribeAlwaysVisible submits the batch of actions shown for every object.
	SubscribeAlwaysVisible(ctx context.Context, actions []ActionDescriptor) error
	// ReturnToCompanionApp hands control back to the companion app.
	ReturnToCompanionApp(ctx context.Context) error

	// OnObjectSelected subscribes to object-selected events.
	OnObjectSelected(ctx context.Context, handler SelectionHandler) (CancelFunc, error)
	// OnOpenExternalApp subscribes to open-shell-at-location events.
	OnOpenExternalApp(ctx context.Context, handler LocationHandler) (CancelFunc, error)
}
