// Package icons turns image references on action descriptors into inline
// base64 PNG data before the descriptors are handed to the companion app.
//
// Each batch is one aggregate.Job: every descriptor that carries an ImageURL
// but no ImageBase64 is loaded on its own goroutine, and the merged batch is
// delivered once all loads have reported. A failed load reports an empty
// string, so one broken image never holds back or fails its batch.
package icons

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/tailored-agentic-units/drawbridge/aggregate"
	"github.com/tailored-agentic-units/drawbridge/companion"
	"github.com/tailored-agentic-units/drawbridge/observability"
)

// Option configures a Materializer.
type Option func(*Materializer)

// WithObserver sets the observer batch and load events are reported to.
func WithObserver(observer observability.Observer) Option {
	return func(m *Materializer) { m.observer = observer }
}

type encoded struct {
	key    string
	base64 string
}

// Materializer resolves descriptor images. Loads in flight are bounded
// across batches, and loads of the same URL that overlap share one fetch.
type Materializer struct {
	loader    Loader
	sem       *semaphore.Weighted
	group     singleflight.Group
	maxPixels int64
	observer  observability.Observer
}

// NewMaterializer creates a Materializer that fetches through loader. A nil
// loader uses NewLoader(cfg, nil).
func NewMaterializer(cfg Config, loader Loader, opts ...Option) *Materializer {
	defaults := DefaultConfig()
	defaults.Merge(&cfg)

	if loader == nil {
		loader = NewLoader(defaults, nil)
	}

	m := &Materializer{
		loader:    loader,
		sem:       semaphore.NewWeighted(int64(defaults.MaxConcurrentLoads)),
		maxPixels: defaults.MaxImagePixels,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.observer = observability.OrNoOp(m.observer)
	return m
}

// Materialize inlines the images of every descriptor in the batch that
// needs one and passes the merged batch to done. When nothing needs loading
// done receives the input map itself, before Materialize returns. Otherwise
// done runs on the goroutine of the last load to finish, with a new map;
// descriptors whose load failed keep an empty ImageBase64.
func (m *Materializer) Materialize(ctx context.Context, batch map[string]companion.ActionDescriptor, done func(map[string]companion.ActionDescriptor)) {
	var pending []string
	for key, d := range batch {
		if d.NeedsImage() {
			pending = append(pending, key)
		}
	}

	if len(pending) == 0 {
		done(batch)
		return
	}
	slices.Sort(pending)

	observability.Emit(ctx, m.observer, EventBatchStart, observability.LevelVerbose, "icons", map[string]any{
		"descriptors": len(batch),
		"loads":       len(pending),
	})

	job := aggregate.NewJob(len(pending), func(results []encoded) {
		done(m.merge(ctx, batch, results))
	}, aggregate.WithObserver(m.observer), aggregate.WithSource("icons"))

	for _, key := range pending {
		imageURL := batch[key].ImageURL
		go func() {
			job.Report(encoded{key: key, base64: m.load(ctx, imageURL)})
		}()
	}
}

// MaterializeSync is Materialize for callers that can block. It returns once
// every load has reported.
func (m *Materializer) MaterializeSync(ctx context.Context, batch map[string]companion.ActionDescriptor) map[string]companion.ActionDescriptor {
	delivered := make(chan map[string]companion.ActionDescriptor, 1)
	m.Materialize(ctx, batch, func(out map[string]companion.ActionDescriptor) {
		delivered <- out
	})
	return <-delivered
}

func (m *Materializer) merge(ctx context.Context, batch map[string]companion.ActionDescriptor, results []encoded) map[string]companion.ActionDescriptor {
	out := maps.Clone(batch)

	var failed int
	for _, r := range results {
		if r.base64 == "" {
			failed++
			continue
		}
		d := out[r.key]
		d.ImageBase64 = r.base64
		out[r.key] = d
	}

	observability.Emit(ctx, m.observer, EventBatchComplete, observability.LevelVerbose, "icons", map[string]any{
		"loads":  len(results),
		"failed": failed,
	})

	return out
}

// load returns the base64 PNG for imageURL, or "" on any failure.
func (m *Materializer) load(ctx context.Context, imageURL string) string {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		m.loadFailed(ctx, imageURL, err)
		return ""
	}
	defer m.sem.Release(1)

	v, err, _ := m.group.Do(imageURL, func() (any, error) {
		data, err := m.loader.Load(ctx, imageURL)
		if err != nil {
			return "", err
		}
		return EncodeBounded(data, m.maxPixels)
	})
	if err != nil {
		m.loadFailed(ctx, imageURL, err)
		return ""
	}

	s, ok := v.(string)
	if !ok {
		m.loadFailed(ctx, imageURL, fmt.Errorf("unexpected load result %T", v))
		return ""
	}
	return s
}

func (m *Materializer) loadFailed(ctx context.Context, imageURL string, err error) {
	observability.Emit(ctx, m.observer, EventLoadFailed, observability.LevelWarning, "icons", map[string]any{
		"image_url": imageURL,
		"error":     err.Error(),
	})
}
