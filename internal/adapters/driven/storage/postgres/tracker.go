package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ca-shen98/knoba/internal/core/domain"
	"github.com/ca-shen98/knoba/internal/core/ports/driven"
)

// locationTracker implements driven.LocationTracker.
type locationTracker struct {
	store *Store
}

var _ driven.LocationTracker = (*locationTracker)(nil)

// Get retrieves the block ids for a location.
func (t *locationTracker) Get(ctx context.Context, loc domain.Location) ([]string, error) {
	var ids []string
	err := t.store.pool.QueryRow(ctx,
		"SELECT block_ids FROM knoba_locations WHERE location = $1", string(loc),
	).Scan(&ids)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying location mapping: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// Set replaces the mapping for a location.
func (t *locationTracker) Set(ctx context.Context, loc domain.Location, blockIDs []string) error {
	if blockIDs == nil {
		blockIDs = []string{}
	}
	_, err := t.store.pool.Exec(ctx, `
		INSERT INTO knoba_locations (location, block_ids, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (location) DO UPDATE SET
			block_ids = EXCLUDED.block_ids,
			updated_at = EXCLUDED.updated_at
	`, string(loc), blockIDs)
	if err != nil {
		return fmt.Errorf("saving location mapping: %w", err)
	}
	return nil
}

// Delete removes the mapping for a location.
func (t *locationTracker) Delete(ctx context.Context, loc domain.Location) error {
	if _, err := t.store.pool.Exec(ctx, "DELETE FROM knoba_locations WHERE location = $1", string(loc)); err != nil {
		return fmt.Errorf("deleting location mapping: %w", err)
	}
	return nil
}
