// Package navigation hands control back to the companion app when the user
// backs out of a shell location the companion app opened.
//
// The Correlator is a two-state machine. Open moves it to pending: it
// remembers where the shell was, tags the requested location with a marker
// parameter and navigates there. A location change away from a tagged
// location back to the remembered one returns it to idle and signals the
// companion app, once. Every other location change leaves it alone.
//
// Only the latest Open can be matched. Opening again while pending abandons
// the earlier correlation; its history entry stays behind in the shell.
package navigation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tailored-agentic-units/drawbridge/companion"
	"github.com/tailored-agentic-units/drawbridge/observability"
	"github.com/tailored-agentic-units/drawbridge/shell"
)

var ErrEmptyLocation = errors.New("location is empty")

// Correlation is one pending "entered the shell from the companion app"
// transition.
type Correlation struct {
	ID            string
	EntryLocation string
	PriorLocation string
	OpenedAt      time.Time
}

// Option configures a Correlator.
type Option func(*Correlator)

// WithObserver sets the observer transition events are reported to.
func WithObserver(observer observability.Observer) Option {
	return func(c *Correlator) { c.observer = observer }
}

// WithConfig overrides the default configuration.
func WithConfig(cfg Config) Option {
	return func(c *Correlator) { c.cfg.Merge(&cfg) }
}

// Correlator pairs companion-initiated shell entries with the matching
// back navigation. Transitions are expected to arrive from one goroutine;
// the lock only keeps Pending consistent for other readers.
type Correlator struct {
	router   shell.Router
	ch       companion.Channel
	cfg      Config
	observer observability.Observer

	mu      sync.Mutex
	pending *Correlation
}

func New(router shell.Router, ch companion.Channel, opts ...Option) *Correlator {
	c := &Correlator{
		router: router,
		ch:     ch,
		cfg:    DefaultConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.observer = observability.OrNoOp(c.observer)
	return c
}

// Open records the shell's current location, then navigates to location
// tagged with the marker. The correlation is recorded before navigating so
// that routers reporting the change synchronously are already correlated.
// If navigation fails the previous state is restored and the error returned.
// Opening the tagged location the shell already shows keeps the pending
// correlation and does not navigate.
func (c *Correlator) Open(ctx context.Context, location string) error {
	if shell.Normalize(location) == "" {
		return ErrEmptyLocation
	}

	h, err := shell.ParseHash(location)
	if err != nil {
		return fmt.Errorf("open %q: %w", location, err)
	}

	entry := h.With(c.cfg.Marker, "").String()
	current := shell.Normalize(c.router.Current())

	c.mu.Lock()
	previous := c.pending
	if previous != nil && current == entry {
		c.mu.Unlock()
		observability.Emit(ctx, c.observer, EventReopen, observability.LevelVerbose, "navigation", map[string]any{
			"correlation_id": previous.ID,
			"entry":          entry,
		})
		return nil
	}
	next := &Correlation{
		ID:            uuid.Must(uuid.NewV7()).String(),
		EntryLocation: entry,
		PriorLocation: current,
		OpenedAt:      time.Now(),
	}
	c.pending = next
	c.mu.Unlock()

	observability.Emit(ctx, c.observer, EventOpen, observability.LevelInfo, "navigation", map[string]any{
		"correlation_id": next.ID,
		"entry":          next.EntryLocation,
		"prior":          next.PriorLocation,
	})

	if err := c.router.Navigate(ctx, next.EntryLocation); err != nil {
		c.mu.Lock()
		if c.pending == next {
			c.pending = previous
		}
		c.mu.Unlock()

		observability.Emit(ctx, c.observer, EventNavigateFailed, observability.LevelError, "navigation", map[string]any{
			"correlation_id": next.ID,
			"entry":          next.EntryLocation,
			"error":          err.Error(),
		})
		return fmt.Errorf("navigate to %q: %w", next.EntryLocation, err)
	}

	if previous != nil {
		observability.Emit(ctx, c.observer, EventAbandoned, observability.LevelWarning, "navigation", map[string]any{
			"correlation_id": previous.ID,
			"entry":          previous.EntryLocation,
			"replaced_by":    next.ID,
		})
	}

	return nil
}

// LocationChanged feeds one shell location change into the state machine.
// A change to the same location is ignored.
// It reports whether the change completed the pending correlation, in which
// case the companion app has been asked to take over again.
func (c *Correlator) LocationChanged(ctx context.Context, from, to string) bool {
	if shell.Normalize(from) == shell.Normalize(to) {
		return false
	}

	c.mu.Lock()
	p := c.pending
	if p == nil || !c.tagged(from) || shell.Normalize(to) != p.PriorLocation {
		c.mu.Unlock()
		return false
	}
	c.pending = nil
	c.mu.Unlock()

	observability.Emit(ctx, c.observer, EventReturn, observability.LevelInfo, "navigation", map[string]any{
		"correlation_id": p.ID,
		"from":           shell.Normalize(from),
		"to":             p.PriorLocation,
		"elapsed":        time.Since(p.OpenedAt).String(),
	})

	if err := c.ch.ReturnToCompanionApp(ctx); err != nil {
		observability.Emit(ctx, c.observer, EventReturnFailed, observability.LevelError, "navigation", map[string]any{
			"correlation_id": p.ID,
			"error":          err.Error(),
		})
	}
	return true
}

// Pending returns the pending correlation, if any.
func (c *Correlator) Pending() (Correlation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return Correlation{}, false
	}
	return *c.pending, true
}

// Reset drops the pending correlation without signalling the companion app.
func (c *Correlator) Reset() {
	c.mu.Lock()
	p := c.pending
	c.pending = nil
	c.mu.Unlock()

	if p != nil {
		observability.Emit(context.Background(), c.observer, EventReset, observability.LevelVerbose, "navigation", map[string]any{
			"correlation_id": p.ID,
		})
	}
}

// Marker returns the parameter name tagged locations carry.
func (c *Correlator) Marker() string {
	return c.cfg.Marker
}

func (c *Correlator) tagged(location string) bool {
	h, err := shell.ParseHash(location)
	if err != nil {
		return strings.Contains(location, c.cfg.Marker)
	}
	return h.Has(c.cfg.Marker)
}
