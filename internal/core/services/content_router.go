package services

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/ca-shen98/knoba/internal/core/domain"
	"github.com/ca-shen98/knoba/internal/core/ports/driven"
	"github.com/ca-shen98/knoba/internal/logger"
)

// ContentRouter dispatches content reads and writes to the adapter
// registered for a location's source type.
type ContentRouter struct {
	mu      sync.RWMutex
	sources map[string]driven.ContentSource
	writers map[string]driven.ContentWriter
}

// NewContentRouter creates an empty router.
func NewContentRouter() *ContentRouter {
	return &ContentRouter{
		sources: make(map[string]driven.ContentSource),
		writers: make(map[string]driven.ContentWriter),
	}
}

// RegisterSource adds a content source, replacing any source of the same type.
func (r *ContentRouter) RegisterSource(src driven.ContentSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[src.Type()] = src
}

// RegisterWriter adds a content writer, replacing any writer of the same type.
func (r *ContentRouter) RegisterWriter(w driven.ContentWriter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writers[w.Type()] = w
}

// Register adds an adapter as a source, a writer, or both.
func (r *ContentRouter) Register(adapter any) {
	if src, ok := adapter.(driven.ContentSource); ok {
		r.RegisterSource(src)
	}
	if w, ok := adapter.(driven.ContentWriter); ok {
		r.RegisterWriter(w)
	}
}

// SourceTypes returns the registered source types in sorted order.
func (r *ContentRouter) SourceTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.sources))
	for t := range r.sources {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Fetch returns the current segments of a location.
// Returns domain.ErrUnsupportedType if no source serves the location's type.
func (r *ContentRouter) Fetch(ctx context.Context, loc domain.Location) ([]string, error) {
	r.mu.RLock()
	src, ok := r.sources[loc.SourceType()]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no content source for %q", domain.ErrUnsupportedType, loc.SourceType())
	}
	return src.Fetch(ctx, loc.RawID())
}

// Apply writes canonical content into a location.
// Locations without a registered writer are skipped without error.
func (r *ContentRouter) Apply(ctx context.Context, loc domain.Location, newContent, priorContent string) (domain.WriteStatus, error) {
	r.mu.RLock()
	w, ok := r.writers[loc.SourceType()]
	r.mu.RUnlock()
	if !ok {
		logger.Debug("No content writer for %s, skipping propagation", loc)
		return domain.WriteSkipped, nil
	}
	status, err := w.Apply(ctx, loc.RawID(), newContent, priorContent)
	if err != nil {
		return domain.WriteFailed, err
	}
	return status, nil
}
