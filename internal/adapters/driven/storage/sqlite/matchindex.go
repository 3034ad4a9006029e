package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ca-shen98/knoba/internal/adapters/driven/storage/similarity"
	"github.com/ca-shen98/knoba/internal/core/domain"
	"github.com/ca-shen98/knoba/internal/core/ports/driven"
)

// matchIndex implements driven.MatchIndex.
// Queries scan every stored embedding and rank by cosine similarity.
type matchIndex struct {
	store *Store
}

var _ driven.MatchIndex = (*matchIndex)(nil)

// Query returns up to k blocks closest to the embedding.
func (m *matchIndex) Query(ctx context.Context, embedding []float32, k int) ([]domain.MatchCandidate, error) {
	if k <= 0 {
		return []domain.MatchCandidate{}, nil
	}

	rows, err := m.store.db.QueryContext(ctx, `
		SELECT id, content, embedding, referencing_locations
		FROM content_blocks
		WHERE dimensions = ?
	`, len(embedding))
	if err != nil {
		return nil, fmt.Errorf("querying content blocks: %w", err)
	}
	defer rows.Close()

	candidates := []domain.MatchCandidate{}
	for rows.Next() {
		block, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, domain.MatchCandidate{
			BlockID: block.ID,
			Score:   similarity.Cosine(block.Embedding, embedding),
			Block:   *block,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating content blocks: %w", err)
	}

	return similarity.TopK(candidates, k), nil
}

// Fetch returns the stored blocks among ids.
func (m *matchIndex) Fetch(ctx context.Context, ids []string) (map[string]domain.ContentBlock, error) {
	result := make(map[string]domain.ContentBlock, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	//nolint:gosec // G202: placeholders only, values are bound
	rows, err := m.store.db.QueryContext(ctx, `
		SELECT id, content, embedding, referencing_locations
		FROM content_blocks
		WHERE id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching content blocks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		block, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		result[block.ID] = *block
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating content blocks: %w", err)
	}
	return result, nil
}

// Upsert stores blocks in a single transaction.
func (m *matchIndex) Upsert(ctx context.Context, blocks []domain.ContentBlock) error {
	if len(blocks) == 0 {
		return nil
	}
	for i := range blocks {
		if err := blocks[i].Validate(); err != nil {
			return err
		}
	}

	tx, err := m.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO content_blocks (id, content, embedding, dimensions, referencing_locations, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			embedding = excluded.embedding,
			dimensions = excluded.dimensions,
			referencing_locations = excluded.referencing_locations,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	now := formatTime(time.Now())
	for _, block := range blocks {
		locsJSON, err := json.Marshal(block.Locations.Strings())
		if err != nil {
			return fmt.Errorf("marshalling locations: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, block.ID, block.Content,
			float32SliceToBytes(block.Embedding), len(block.Embedding), string(locsJSON), now); err != nil {
			return fmt.Errorf("saving content block %s: %w", block.ID, err)
		}
	}

	return tx.Commit()
}

// Delete removes blocks by id in a single transaction.
func (m *matchIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := m.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, "DELETE FROM content_blocks WHERE id = ?", id); err != nil {
			return fmt.Errorf("deleting content block %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// scanBlock scans a content block row.
func scanBlock(rows *sql.Rows) (*domain.ContentBlock, error) {
	var block domain.ContentBlock
	var embedding []byte
	var locsJSON string

	if err := rows.Scan(&block.ID, &block.Content, &embedding, &locsJSON); err != nil {
		return nil, fmt.Errorf("scanning content block: %w", err)
	}

	var locs []string
	if err := json.Unmarshal([]byte(locsJSON), &locs); err != nil {
		return nil, fmt.Errorf("unmarshalling locations: %w", err)
	}
	block.Embedding = bytesToFloat32Slice(embedding)
	block.Locations = domain.LocationSetFromStrings(locs)
	return &block, nil
}
