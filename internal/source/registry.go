package source

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/starford/dagaz/internal/views"
)

// Registry owns one mounted source per view, created on first use.
type Registry struct {
	catalog *views.Catalog
	fetcher Fetcher
	log     *slog.Logger
	onEvent func(Event)

	mu      sync.Mutex
	sources map[views.Name]*Source
}

// NewRegistry creates an empty registry. onEvent may be nil.
func NewRegistry(catalog *views.Catalog, fetcher Fetcher, logger *slog.Logger, onEvent func(Event)) *Registry {
	return &Registry{
		catalog: catalog,
		fetcher: fetcher,
		log:     logger,
		onEvent: onEvent,
		sources: make(map[views.Name]*Source),
	}
}

// Source returns the mounted source of name.
func (r *Registry) Source(name views.Name) (*Source, error) {
	def, err := r.catalog.Get(name)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sources[name]; ok {
		return s, nil
	}
	s := New(string(name), def.Endpoint, r.fetcher, r.log, r.onEvent)
	s.Mount()
	r.sources[name] = s
	return s, nil
}

// Unmount drops the sources of names. Their next use fetches again with
// the current definition.
func (r *Registry) Unmount(names ...views.Name) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range names {
		if s, ok := r.sources[n]; ok {
			s.Unmount()
			delete(r.sources, n)
		}
	}
}

// Close unmounts every source.
func (r *Registry) Close() {
	r.mu.Lock()
	names := make([]views.Name, 0, len(r.sources))
	for n := range r.sources {
		names = append(names, n)
	}
	r.mu.Unlock()
	r.Unmount(names...)
}

// RefreshAll refreshes every catalog view concurrently. A failing view does
// not affect the others; the joined failures are returned.
func (r *Registry) RefreshAll(ctx context.Context) error {
	var mu sync.Mutex
	var errs []error

	g, gCtx := errgroup.WithContext(ctx)
	for _, name := range r.catalog.Names() {
		g.Go(func() error {
			s, err := r.Source(name)
			if err == nil {
				_, err = s.Refresh(gCtx)
			}
			if err != nil && !errors.Is(err, ErrDiscarded) {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
