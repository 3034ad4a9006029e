package driven

import (
	"context"

	"github.com/ca-shen98/knoba/internal/core/domain"
)

// MatchIndex stores content blocks and answers nearest-neighbour queries
// over their embeddings. It is the system of record for block state.
type MatchIndex interface {
	// Query returns up to k candidates ordered by descending score.
	// An empty index returns an empty slice.
	Query(ctx context.Context, embedding []float32, k int) ([]domain.MatchCandidate, error)

	// Fetch returns the blocks that exist among ids, keyed by id.
	// Missing ids are absent from the result rather than an error.
	Fetch(ctx context.Context, ids []string) (map[string]domain.ContentBlock, error)

	// Upsert creates or fully replaces blocks by id.
	Upsert(ctx context.Context, blocks []domain.ContentBlock) error

	// Delete removes blocks by id. Unknown ids are ignored.
	Delete(ctx context.Context, ids []string) error
}
