package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

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
	var idsJSON string
	err := t.store.db.QueryRowContext(ctx,
		"SELECT block_ids FROM location_mappings WHERE location = ?", string(loc),
	).Scan(&idsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying location mapping: %w", err)
	}

	var ids []string
	if err := json.Unmarshal([]byte(idsJSON), &ids); err != nil {
		return nil, fmt.Errorf("unmarshalling block ids: %w", err)
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
	idsJSON, err := json.Marshal(blockIDs)
	if err != nil {
		return fmt.Errorf("marshalling block ids: %w", err)
	}

	_, err = t.store.db.ExecContext(ctx, `
		INSERT INTO location_mappings (location, block_ids, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(location) DO UPDATE SET
			block_ids = excluded.block_ids,
			updated_at = excluded.updated_at
	`, string(loc), string(idsJSON), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("saving location mapping: %w", err)
	}
	return nil
}

// Delete removes the mapping for a location.
func (t *locationTracker) Delete(ctx context.Context, loc domain.Location) error {
	_, err := t.store.db.ExecContext(ctx, "DELETE FROM location_mappings WHERE location = ?", string(loc))
	if err != nil {
		return fmt.Errorf("deleting location mapping: %w", err)
	}
	return nil
}
