// Package memshell is an in-process shell: a history stack router, a tile
// catalog and a target resolver held in memory. The drawbridge command uses
// it as its host shell and tests use it as a double.
package memshell

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"sync"

	"github.com/tailored-agentic-units/drawbridge/shell"
)

var (
	ErrUnknownTarget = errors.New("unknown navigation target")
	ErrNoHistory     = errors.New("no history entry to go back to")
)

// Catalog is the on-disk form of a memshell catalog. Targets maps tile
// navigation targets to the application URLs they resolve to.
type Catalog struct {
	Groups  []shell.Group     `json:"groups"`
	Targets map[string]string `json:"targets"`
}

// LoadCatalog reads a Catalog from a JSON file.
func LoadCatalog(filename string) (*Catalog, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var catalog Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}

	return &catalog, nil
}

// Option configures a Shell.
type Option func(*Shell)

// WithLocation sets the initial location.
func WithLocation(location string) Option {
	return func(s *Shell) { s.history = []string{shell.Normalize(location)} }
}

// WithCatalog installs the groups and targets of c.
func WithCatalog(c *Catalog) Option {
	return func(s *Shell) {
		if c == nil {
			return
		}
		s.groups = append(s.groups, c.Groups...)
		maps.Copy(s.targets, c.Targets)
	}
}

// WithGroups appends catalog groups.
func WithGroups(groups ...shell.Group) Option {
	return func(s *Shell) { s.groups = append(s.groups, groups...) }
}

// WithTarget maps a navigation target to its resolved application URL.
func WithTarget(target, resolved string) Option {
	return func(s *Shell) { s.targets[shell.Normalize(target)] = resolved }
}

// WithReady sets the initial readiness. Shells are ready by default.
func WithReady(ready bool) Option {
	return func(s *Shell) { s.ready = ready }
}

// Shell implements shell.Router, shell.Catalog, shell.Resolver and
// shell.Readiness. Location listeners are called synchronously, outside the
// shell's lock, after the history has been updated.
type Shell struct {
	mu          sync.Mutex
	history     []string
	listeners   map[int]shell.LocationListener
	nextID      int
	groups      []shell.Group
	targets     map[string]string
	ready       bool
	navigateErr error
	catalogErr  error
}

// New creates a Shell starting at the empty location.
func New(opts ...Option) *Shell {
	s := &Shell{
		history:   []string{""},
		listeners: make(map[int]shell.LocationListener),
		targets:   make(map[string]string),
		ready:     true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Shell) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history[len(s.history)-1]
}

// Navigate pushes location onto the history and notifies listeners.
// Navigating to the current location is a no-op.
func (s *Shell) Navigate(ctx context.Context, location string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	location = shell.Normalize(location)

	s.mu.Lock()
	if s.navigateErr != nil {
		err := s.navigateErr
		s.mu.Unlock()
		return err
	}
	from := s.history[len(s.history)-1]
	if from == location {
		s.mu.Unlock()
		return nil
	}
	s.history = append(s.history, location)
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	notify(listeners, from, location)
	return nil
}

// Back pops one history entry, the way the browser back button does.
func (s *Shell) Back() error {
	s.mu.Lock()
	if len(s.history) < 2 {
		s.mu.Unlock()
		return ErrNoHistory
	}
	from := s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]
	to := s.history[len(s.history)-1]
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	notify(listeners, from, to)
	return nil
}

// History returns the history stack, oldest entry first.
func (s *Shell) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

func (s *Shell) OnLocationChanged(listener shell.LocationListener) shell.CancelFunc {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Listeners returns the number of registered location listeners.
func (s *Shell) Listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

func (s *Shell) Groups(ctx context.Context) ([]shell.Group, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.catalogErr != nil {
		return nil, s.catalogErr
	}
	return slices.Clone(s.groups), nil
}

// Resolve looks the target up first as given, then by its bare target name
// without parameters or app route.
func (s *Shell) Resolve(ctx context.Context, target string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target = shell.Normalize(target)

	s.mu.Lock()
	defer s.mu.Unlock()

	if resolved, ok := s.targets[target]; ok {
		return resolved, nil
	}
	if h, err := shell.ParseHash(target); err == nil {
		if resolved, ok := s.targets[h.Target]; ok {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownTarget, target)
}

func (s *Shell) Ready(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// SetReady changes the readiness reported to pollers.
func (s *Shell) SetReady(ready bool) {
	s.mu.Lock()
	s.ready = ready
	s.mu.Unlock()
}

// SetNavigateError makes subsequent Navigate calls fail with err. A nil err
// restores normal navigation.
func (s *Shell) SetNavigateError(err error) {
	s.mu.Lock()
	s.navigateErr = err
	s.mu.Unlock()
}

// SetCatalogError makes subsequent Groups calls fail with err.
func (s *Shell) SetCatalogError(err error) {
	s.mu.Lock()
	s.catalogErr = err
	s.mu.Unlock()
}

func (s *Shell) snapshotListeners() []shell.LocationListener {
	ids := slices.Sorted(maps.Keys(s.listeners))
	listeners := make([]shell.LocationListener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, s.listeners[id])
	}
	return listeners
}

func notify(listeners []shell.LocationListener, from, to string) {
	for _, l := range listeners {
		l(from, to)
	}
}
