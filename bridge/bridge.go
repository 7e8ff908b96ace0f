// Package bridge composes the drawbridge components into one runtime: the
// action registry, the icon materializer, the catalog scanner and the
// navigation correlator, all driven from a single event loop.
//
// The bridge initializes from configuration via New. Functional options
// allow test overrides of the observer, the image loader and the loop.
//
//	b, err := bridge.New(cfg, channel, shell)
//	if err := b.Start(ctx); err != nil { ... }
//	defer b.Close(time.Second)
//	b.Subscribe(ctx, "orders", handler)
package bridge

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tailored-agentic-units/drawbridge/catalog"
	"github.com/tailored-agentic-units/drawbridge/companion"
	"github.com/tailored-agentic-units/drawbridge/icons"
	"github.com/tailored-agentic-units/drawbridge/loop"
	"github.com/tailored-agentic-units/drawbridge/navigation"
	"github.com/tailored-agentic-units/drawbridge/observability"
	"github.com/tailored-agentic-units/drawbridge/registry"
	"github.com/tailored-agentic-units/drawbridge/shell"
)

// Shell is the part of the host shell the bridge needs. Shells that also
// implement shell.Readiness are waited for in Start.
type Shell interface {
	shell.Router
	shell.Catalog
	shell.Resolver
}

// Option configures a Bridge after config-driven initialization.
type Option func(*Bridge)

// WithObserver overrides the observer named in the config. Given more than
// once, events go to every observer.
func WithObserver(o observability.Observer) Option {
	return func(b *Bridge) { b.observers = append(b.observers, o) }
}

// WithLoader overrides the config-created image loader.
func WithLoader(l icons.Loader) Option {
	return func(b *Bridge) { b.loader = l }
}

// WithLoop overrides the config-created event loop. The bridge starts it in
// Start and shuts it down in Close.
func WithLoop(l *loop.Loop) Option {
	return func(b *Bridge) { b.loop = l }
}

// Bridge connects one companion channel to one shell.
type Bridge struct {
	ch        companion.Channel
	shell     Shell
	observers []observability.Observer
	observer  observability.Observer
	loader    icons.Loader
	loop      *loop.Loop

	registry   *registry.Registry
	icons      *icons.Materializer
	scanner    *catalog.Scanner
	correlator *navigation.Correlator

	toastTitle   string
	pollInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	published chan struct{}
	opening   atomic.Bool

	mu      sync.Mutex
	started bool
	closed  bool
	cancels []func()
	result  catalog.Result
}

// New creates a Bridge from configuration; a nil cfg uses DefaultConfig.
// Nothing is subscribed until Start.
func New(cfg *Config, ch companion.Channel, sh Shell, opts ...Option) (*Bridge, error) {
	if ch == nil {
		return nil, fmt.Errorf("failed to create bridge: nil companion channel")
	}
	if sh == nil {
		return nil, fmt.Errorf("failed to create bridge: nil shell")
	}

	merged := DefaultConfig()
	if cfg != nil {
		merged.Merge(cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		ch:           ch,
		shell:        sh,
		toastTitle:   merged.ToastTitle,
		pollInterval: merged.ReadyPollInterval.Std(),
		ctx:          ctx,
		cancel:       cancel,
		published:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(b)
	}

	if len(b.observers) == 0 {
		observer, err := observability.GetObserver(merged.Observer)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create observer: %w", err)
		}
		b.observers = append(b.observers, observer)
	}
	b.observer = observability.Fanout(b.observers...)

	if b.loop == nil {
		b.loop = loop.New(merged.Loop, b.observer)
	}
	if b.loader == nil {
		b.loader = icons.NewLoader(merged.Icons, nil)
	}

	b.icons = icons.NewMaterializer(merged.Icons, b.loader, icons.WithObserver(b.observer))
	b.scanner = catalog.New(merged.Catalog, sh, sh, catalog.WithObserver(b.observer))
	b.correlator = navigation.New(sh, ch,
		navigation.WithConfig(merged.Navigation),
		navigation.WithObserver(b.observer),
	)
	b.registry = registry.New(ch, b.loop,
		registry.WithObserver(b.observer),
		registry.WithProposer(b.propose),
		registry.WithContext(ctx),
	)

	return b, nil
}

// Start runs the bridge: it starts the event loop, waits for the shell to be
// ready, follows shell navigation and companion open requests, and publishes
// the catalog's always-visible actions in the background. Catalog failures
// are reported as events and do not fail Start.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	switch {
	case b.closed:
		b.mu.Unlock()
		return ErrClosed
	case b.started:
		b.mu.Unlock()
		return ErrAlreadyStarted
	}
	b.started = true
	b.mu.Unlock()

	b.loop.Start(b.ctx)

	if err := b.waitReady(ctx); err != nil {
		b.abortStart()
		return err
	}

	stopRouter := b.shell.OnLocationChanged(b.onLocationChanged)
	stopOpener, err := b.ch.OnOpenExternalApp(b.ctx, b.onOpenExternalApp)
	if err != nil {
		stopRouter()
		b.abortStart()
		return fmt.Errorf("failed to subscribe to open requests: %w", err)
	}

	b.mu.Lock()
	b.cancels = append(b.cancels, func() { stopRouter() }, func() { stopOpener() })
	b.mu.Unlock()

	observability.Emit(ctx, b.observer, EventStart, observability.LevelInfo, "bridge", map[string]any{
		"location": b.shell.Current(),
	})

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer close(b.published)
		b.publishCatalog(b.ctx)
	}()

	return nil
}

// abortStart lets a failed Start be retried.
func (b *Bridge) abortStart() {
	b.mu.Lock()
	b.started = false
	b.mu.Unlock()
}

// Published is closed once the catalog scan started by Start has finished,
// whether or not it succeeded.
func (b *Bridge) Published() <-chan struct{} {
	return b.published
}

// CatalogResult returns the outcome of the last catalog scan.
func (b *Bridge) CatalogResult() catalog.Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.result
}

// Subscribe registers handler for the application. See registry.Registry.
func (b *Bridge) Subscribe(ctx context.Context, appID string, handler registry.Handler) (registry.Subscription, error) {
	return b.registry.Subscribe(ctx, appID, handler)
}

// Unsubscribe removes subscriptions of the application. See registry.Registry.
func (b *Bridge) Unsubscribe(appID string, ids ...string) {
	b.registry.Unsubscribe(appID, ids...)
}

// Registry returns the bridge's action registry.
func (b *Bridge) Registry() *registry.Registry {
	return b.registry
}

// Correlator returns the bridge's navigation correlator.
func (b *Bridge) Correlator() *navigation.Correlator {
	return b.correlator
}

// ShowObject opens the drawing containing the object and highlights it.
func (b *Bridge) ShowObject(ctx context.Context, label string, object companion.ObjectData) error {
	if object.ObjectID == "" {
		return ErrEmptyID
	}
	return b.ch.ShowObject(ctx, companion.ShowRequest{
		Label:    label,
		ObjectID: object.ObjectID,
		Objects:  []companion.ObjectData{object},
	})
}

// ShowDrawing opens a drawing.
func (b *Bridge) ShowDrawing(ctx context.Context, drawingID string) error {
	if drawingID == "" {
		return ErrEmptyID
	}
	return b.ch.ShowDrawing(ctx, drawingID)
}

// ShowData opens a drawing and highlights every listed object on it.
func (b *Bridge) ShowData(ctx context.Context, label, drawingID string, objects []companion.ObjectData) error {
	if drawingID == "" && len(objects) == 0 {
		return ErrEmptyID
	}
	return b.ch.ShowObject(ctx, companion.ShowRequest{
		Label:     label,
		DrawingID: drawingID,
		Objects:   objects,
	})
}

// CanShowObject lists the drawings the object appears on.
func (b *Bridge) CanShowObject(ctx context.Context, objectID string) ([]companion.DrawingDescriptor, error) {
	if objectID == "" {
		return nil, ErrEmptyID
	}
	return b.ch.CanShowObject(ctx, objectID)
}

// CanShowDrawing reports whether the companion app knows the drawing.
func (b *Bridge) CanShowDrawing(ctx context.Context, drawingID string) (bool, error) {
	if drawingID == "" {
		return false, ErrEmptyID
	}
	return b.ch.CanShowDrawing(ctx, drawingID)
}

// ShowToast displays message under the configured toast title.
func (b *Bridge) ShowToast(ctx context.Context, message string) error {
	return b.ch.ShowToast(ctx, companion.Toast{Title: b.toastTitle, Message: message})
}

// Close cancels every subscription, stops background work and shuts the
// event loop down, waiting up to timeout for it to exit.
func (b *Bridge) Close(timeout time.Duration) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	cancels := b.cancels
	b.cancels = nil
	b.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	b.registry.Close()
	b.cancel()

	observability.Emit(context.Background(), b.observer, EventClose, observability.LevelInfo, "bridge", nil)

	if err := b.loop.Shutdown(timeout); err != nil {
		return fmt.Errorf("failed to stop event loop: %w", err)
	}

	waited := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("bridge close timeout after %v", timeout)
	}
}

func (b *Bridge) waitReady(ctx context.Context) error {
	r, ok := b.shell.(shell.Readiness)
	if !ok || r.Ready(ctx) {
		return nil
	}

	observability.Emit(ctx, b.observer, EventShellWaiting, observability.LevelInfo, "bridge", map[string]any{
		"poll_interval": b.pollInterval.String(),
	})

	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("shell not ready: %w", ctx.Err())
		case <-b.ctx.Done():
			return ErrClosed
		case <-ticker.C:
			if r.Ready(ctx) {
				observability.Emit(ctx, b.observer, EventShellReady, observability.LevelVerbose, "bridge", nil)
				return nil
			}
		}
	}
}

func (b *Bridge) publishCatalog(ctx context.Context) {
	result, err := b.scanner.Scan(ctx)
	if err != nil {
		observability.Emit(ctx, b.observer, EventCatalogFailed, observability.LevelError, "bridge", map[string]any{
			"stage": "scan",
			"error": err.Error(),
		})
		return
	}

	b.mu.Lock()
	b.result = result
	b.mu.Unlock()

	if err := b.scanner.Submit(ctx, b.ch, b.icons, result.Candidates); err != nil {
		observability.Emit(ctx, b.observer, EventCatalogFailed, observability.LevelError, "bridge", map[string]any{
			"stage": "submit",
			"error": err.Error(),
		})
		return
	}

	observability.Emit(ctx, b.observer, EventCatalogComplete, observability.LevelInfo, "bridge", map[string]any{
		"actions": len(result.Candidates),
		"skipped": len(result.Skipped),
	})
}

// propose inlines a proposed action's image before handing it to the
// companion app. It never blocks on a load: when an image must be fetched the
// proposal is sent from the goroutine that finishes the load.
func (b *Bridge) propose(ctx context.Context, action companion.ActionDescriptor) error {
	if !action.NeedsImage() {
		return b.ch.ProposeAction(ctx, icons.ApplyPlaceholder(action))
	}

	const key = "proposal"
	b.icons.Materialize(ctx, map[string]companion.ActionDescriptor{key: action}, func(out map[string]companion.ActionDescriptor) {
		resolved := out[key]
		if resolved.ImageBase64 == "" {
			resolved.ImageBase64 = icons.Placeholder
		}
		if err := b.ch.ProposeAction(ctx, resolved); err != nil {
			observability.Emit(ctx, b.observer, EventProposalFailed, observability.LevelError, "bridge", map[string]any{
				"object_id":        resolved.ObjectID,
				"callback_context": resolved.CallbackContext,
				"error":            err.Error(),
			})
		}
	})
	return nil
}

// onLocationChanged may run on the loop goroutine when the router reports
// the navigation started by Open synchronously. Blocking on a full queue
// there would stall the loop on itself.
func (b *Bridge) onLocationChanged(from, to string) {
	fn := func() {
		b.correlator.LocationChanged(b.ctx, from, to)
	}
	if b.opening.Load() {
		if !b.loop.TrySubmit(fn) {
			b.dropped("location_changed")
		}
		return
	}
	b.post("location_changed", fn)
}

func (b *Bridge) onOpenExternalApp(location string) {
	b.post("open_external_app", func() {
		b.opening.Store(true)
		err := b.correlator.Open(b.ctx, location)
		b.opening.Store(false)
		if err != nil {
			observability.Emit(b.ctx, b.observer, EventOpenFailed, observability.LevelError, "bridge", map[string]any{
				"location": location,
				"error":    err.Error(),
			})
		}
	})
}

func (b *Bridge) post(event string, fn func()) {
	if !b.loop.Submit(fn) {
		b.dropped(event)
	}
}

func (b *Bridge) dropped(event string) {
	observability.Emit(b.ctx, b.observer, EventDropped, observability.LevelWarning, "bridge", map[string]any{
		"event": event,
	})
}
