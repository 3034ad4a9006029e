package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	pgvec "github.com/pgvector/pgvector-go"

	"github.com/ca-shen98/knoba/internal/core/domain"
	"github.com/ca-shen98/knoba/internal/core/ports/driven"
)

// matchIndex implements driven.MatchIndex with pgvector cosine distance.
type matchIndex struct {
	store *Store
}

var _ driven.MatchIndex = (*matchIndex)(nil)

// Query returns up to k blocks closest to the embedding.
// Score is cosine similarity, computed as 1 - cosine distance.
func (m *matchIndex) Query(ctx context.Context, embedding []float32, k int) ([]domain.MatchCandidate, error) {
	if k <= 0 {
		return []domain.MatchCandidate{}, nil
	}
	if err := m.checkDimensions(embedding); err != nil {
		return nil, err
	}

	rows, err := m.store.pool.Query(ctx, `
		SELECT id, content, embedding, referencing_locations, 1 - (embedding <=> $1) AS score
		FROM knoba_blocks
		ORDER BY embedding <=> $1
		LIMIT $2
	`, pgvec.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("querying content blocks: %w", err)
	}
	defer rows.Close()

	candidates := []domain.MatchCandidate{}
	for rows.Next() {
		var score float64
		block, err := scanBlock(rows, &score)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, domain.MatchCandidate{
			BlockID: block.ID,
			Score:   score,
			Block:   block,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating content blocks: %w", err)
	}
	return candidates, nil
}

// Fetch returns the stored blocks among ids.
func (m *matchIndex) Fetch(ctx context.Context, ids []string) (map[string]domain.ContentBlock, error) {
	result := make(map[string]domain.ContentBlock, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := m.store.pool.Query(ctx, `
		SELECT id, content, embedding, referencing_locations
		FROM knoba_blocks
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("fetching content blocks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		block, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		result[block.ID] = block
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
		if err := m.checkDimensions(blocks[i].Embedding); err != nil {
			return err
		}
	}

	return pgx.BeginFunc(ctx, m.store.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, block := range blocks {
			batch.Queue(`
				INSERT INTO knoba_blocks (id, content, embedding, referencing_locations, updated_at)
				VALUES ($1, $2, $3, $4, now())
				ON CONFLICT (id) DO UPDATE SET
					content = EXCLUDED.content,
					embedding = EXCLUDED.embedding,
					referencing_locations = EXCLUDED.referencing_locations,
					updated_at = EXCLUDED.updated_at
			`, block.ID, block.Content, pgvec.NewVector(block.Embedding), block.Locations.Strings())
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("saving content blocks: %w", err)
		}
		return nil
	})
}

// Delete removes blocks by id.
func (m *matchIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := m.store.pool.Exec(ctx, "DELETE FROM knoba_blocks WHERE id = ANY($1)", ids); err != nil {
		return fmt.Errorf("deleting content blocks: %w", err)
	}
	return nil
}

func (m *matchIndex) checkDimensions(embedding []float32) error {
	if len(embedding) != m.store.dimensions {
		return fmt.Errorf("%w: embedding has %d dimensions, store expects %d",
			domain.ErrInvalidInput, len(embedding), m.store.dimensions)
	}
	return nil
}

// scanBlock scans a content block row, plus any extra trailing columns.
func scanBlock(rows pgx.Rows, extra ...any) (domain.ContentBlock, error) {
	var block domain.ContentBlock
	var vec pgvec.Vector
	var locs []string

	dest := append([]any{&block.ID, &block.Content, &vec, &locs}, extra...)
	if err := rows.Scan(dest...); err != nil {
		return domain.ContentBlock{}, fmt.Errorf("scanning content block: %w", err)
	}
	block.Embedding = vec.Slice()
	block.Locations = domain.LocationSetFromStrings(locs)
	return block, nil
}
