package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/ca-shen98/knoba/internal/core/domain"
	"github.com/ca-shen98/knoba/internal/core/ports/driven"
)

// Ensure LocationTracker implements the interface.
var _ driven.LocationTracker = (*LocationTracker)(nil)

// LocationTracker is an in-memory implementation of driven.LocationTracker.
type LocationTracker struct {
	mu       sync.RWMutex
	mappings map[domain.Location][]string
}

// NewLocationTracker creates a new in-memory location tracker.
func NewLocationTracker() *LocationTracker {
	return &LocationTracker{
		mappings: make(map[domain.Location][]string),
	}
}

// Get retrieves the block ids for a location.
func (t *LocationTracker) Get(_ context.Context, loc domain.Location) ([]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids, ok := t.mappings[loc]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return slices.Clone(ids), nil
}

// Set replaces the mapping for a location.
func (t *LocationTracker) Set(_ context.Context, loc domain.Location, blockIDs []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mappings[loc] = slices.Clone(blockIDs)
	return nil
}

// Delete removes the mapping for a location.
func (t *LocationTracker) Delete(_ context.Context, loc domain.Location) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.mappings, loc)
	return nil
}

// Len returns the number of tracked locations.
func (t *LocationTracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.mappings)
}
