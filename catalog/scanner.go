// Package catalog builds the always-visible action batch from the shell's
// tile catalog. Tiles of one well-known group opt in declaratively: their
// resolved application URL carries SMD_actionType and, optionally, the image
// parameters. A tile that fails to parse or resolve is skipped on its own;
// the rest of the scan carries on.
package catalog

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/tailored-agentic-units/drawbridge/aggregate"
	"github.com/tailored-agentic-units/drawbridge/companion"
	"github.com/tailored-agentic-units/drawbridge/icons"
	"github.com/tailored-agentic-units/drawbridge/observability"
	"github.com/tailored-agentic-units/drawbridge/shell"
)

// Materializer inlines descriptor images before submission.
// *icons.Materializer satisfies it.
type Materializer interface {
	MaterializeSync(ctx context.Context, batch map[string]companion.ActionDescriptor) map[string]companion.ActionDescriptor
}

// Result is the outcome of one scan. Candidates are keyed by callback
// context.
type Result struct {
	Candidates map[string]companion.ActionDescriptor
	Skipped    []*TileError
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithObserver sets the observer scan events are reported to.
func WithObserver(observer observability.Observer) Option {
	return func(s *Scanner) { s.observer = observer }
}

// Scanner reads the participating tiles from the catalog.
type Scanner struct {
	catalog  shell.Catalog
	resolver shell.Resolver
	group    string
	observer observability.Observer
}

func New(cfg Config, catalog shell.Catalog, resolver shell.Resolver, opts ...Option) *Scanner {
	defaults := DefaultConfig()
	defaults.Merge(&cfg)

	s := &Scanner{
		catalog:  catalog,
		resolver: resolver,
		group:    defaults.Group,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.observer = observability.OrNoOp(s.observer)
	return s
}

type tileRef struct {
	order  int
	group  string
	index  int
	tileID string
	config TileConfig
}

type resolution struct {
	ref      tileRef
	resolved string
	err      error
}

type skip struct {
	order int
	err   *TileError
}

// Scan reads every matching group, resolves each configured tile
// concurrently and returns the candidates in catalog order: when two tiles
// share a callback context the later one wins. Only a failure to read the
// catalog, or ctx ending while tiles resolve, fails the scan.
func (s *Scanner) Scan(ctx context.Context) (Result, error) {
	groups, err := s.catalog.Groups(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("read tile catalog: %w", err)
	}

	observability.Emit(ctx, s.observer, EventScanStart, observability.LevelVerbose, "catalog", map[string]any{
		"group":  s.group,
		"groups": len(groups),
	})

	var (
		refs    []tileRef
		skipped []skip
		order   int
	)
	for _, g := range groups {
		if !s.matches(g) {
			continue
		}
		label := cmp.Or(g.Title, g.Name, g.ID)
		for i, tile := range g.Tiles {
			order++
			cfg, err := ParseTileConfig(tile.Configuration)
			if err != nil {
				skipped = append(skipped, skip{order, &TileError{Group: label, Index: i, TileID: tile.ID, Err: err}})
				continue
			}
			refs = append(refs, tileRef{order: order, group: label, index: i, tileID: tile.ID, config: cfg})
		}
	}

	resolutions, err := aggregate.Await(ctx, func(onComplete func([]resolution)) {
		aggregate.Go[tileRef, resolution](ctx, refs, s.resolve, onComplete,
			aggregate.WithObserver(s.observer), aggregate.WithSource("catalog"))
	})
	if err != nil {
		return Result{}, fmt.Errorf("resolve catalog tiles: %w", err)
	}

	slices.SortFunc(resolutions, func(a, b resolution) int { return a.ref.order - b.ref.order })

	candidates := make(map[string]companion.ActionDescriptor)
	for _, r := range resolutions {
		tileErr := func(err error) skip {
			return skip{r.ref.order, &TileError{
				Group:  r.ref.group,
				Index:  r.ref.index,
				TileID: r.ref.tileID,
				Target: r.ref.config.NavigationTargetURL,
				Err:    err,
			}}
		}

		if r.err != nil {
			skipped = append(skipped, tileErr(r.err))
			continue
		}

		params, err := ParseParams(r.resolved)
		if errors.Is(err, ErrNotParticipant) {
			observability.Emit(ctx, s.observer, EventTileIgnored, observability.LevelVerbose, "catalog", map[string]any{
				"tile_id": r.ref.tileID,
				"target":  r.ref.config.NavigationTargetURL,
			})
			continue
		}
		if err != nil {
			skipped = append(skipped, tileErr(err))
			continue
		}

		d := companion.ActionDescriptor{
			Name:            r.ref.config.DisplayTitle,
			ActionLabel:     r.ref.config.DisplaySubtitle,
			CallbackContext: r.ref.config.NavigationTargetURL,
			ImageBase64:     params.ImageBase64,
			ImageURL:        params.ImageURL,
			ActionType:      string(params.ActionType),
			ServiceURL:      r.ref.config.ServiceURL,
		}
		candidates[d.CallbackContext] = icons.ApplyPlaceholder(d)
	}

	slices.SortFunc(skipped, func(a, b skip) int { return a.order - b.order })
	result := Result{Candidates: candidates}
	for _, sk := range skipped {
		observability.Emit(ctx, s.observer, EventTileSkipped, observability.LevelWarning, "catalog", map[string]any{
			"group":   sk.err.Group,
			"index":   sk.err.Index,
			"tile_id": sk.err.TileID,
			"target":  sk.err.Target,
			"error":   sk.err.Err.Error(),
		})
		result.Skipped = append(result.Skipped, sk.err)
	}

	observability.Emit(ctx, s.observer, EventScanComplete, observability.LevelInfo, "catalog", map[string]any{
		"candidates": len(result.Candidates),
		"skipped":    len(result.Skipped),
	})

	return result, nil
}

// Submit inlines the candidates' images and sends them to the companion app
// as one always-visible batch, ordered by callback context. An empty
// candidate set sends nothing.
func (s *Scanner) Submit(ctx context.Context, ch companion.Channel, m Materializer, candidates map[string]companion.ActionDescriptor) error {
	if len(candidates) == 0 {
		observability.Emit(ctx, s.observer, EventSubmitEmpty, observability.LevelVerbose, "catalog", nil)
		return nil
	}

	resolved := m.MaterializeSync(ctx, candidates)

	batch := make([]companion.ActionDescriptor, 0, len(resolved))
	for _, key := range slices.Sorted(maps.Keys(resolved)) {
		batch = append(batch, resolved[key])
	}

	if err := ch.SubscribeAlwaysVisible(ctx, batch); err != nil {
		observability.Emit(ctx, s.observer, EventSubmitFailed, observability.LevelError, "catalog", map[string]any{
			"actions": len(batch),
			"error":   err.Error(),
		})
		return fmt.Errorf("subscribe always-visible actions: %w", err)
	}

	observability.Emit(ctx, s.observer, EventSubmit, observability.LevelInfo, "catalog", map[string]any{
		"actions": len(batch),
	})
	return nil
}

func (s *Scanner) matches(g shell.Group) bool {
	return (g.Name != "" && g.Name == s.group) || (g.Title != "" && g.Title == s.group)
}

func (s *Scanner) resolve(ctx context.Context, ref tileRef) resolution {
	resolved, err := s.resolver.Resolve(ctx, ref.config.NavigationTargetURL)
	switch {
	case err != nil:
		err = fmt.Errorf("%w: %w", ErrUnresolved, err)
	case strings.TrimSpace(resolved) == "":
		err = ErrUnresolved
	}
	return resolution{ref: ref, resolved: resolved, err: err}
}
