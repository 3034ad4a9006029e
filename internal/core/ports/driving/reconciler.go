package driving

import (
	"context"

	"github.com/ca-shen98/knoba/internal/core/domain"
)

// Reconciler keeps content blocks, location mappings and external locations
// consistent as locations change.
type Reconciler interface {
	// Process validates a batch, then runs its upserts followed by its removes.
	Process(ctx context.Context, batch domain.Batch) (*domain.BatchResult, error)

	// ProcessUpsertBatch reconciles locations whose content changed.
	ProcessUpsertBatch(ctx context.Context, locs []domain.Location) (*domain.BatchResult, error)

	// ProcessRemoveBatch detaches deleted locations from their blocks.
	ProcessRemoveBatch(ctx context.Context, locs []domain.Location) (*domain.BatchResult, error)

	// Mapping returns the tracked block ids for a location.
	Mapping(ctx context.Context, loc domain.Location) ([]string, error)

	// Blocks returns the stored blocks among ids.
	Blocks(ctx context.Context, ids []string) (map[string]domain.ContentBlock, error)
}

// BatchOutcome is the result of a batch processed by a BatchSubmitter.
type BatchOutcome struct {
	Batch  domain.Batch
	Result *domain.BatchResult
	Err    error
}

// BatchSubmitter processes batches asynchronously on a worker pool.
type BatchSubmitter interface {
	// Submit enqueues a batch. The returned channel receives exactly one outcome.
	Submit(ctx context.Context, batch domain.Batch) (<-chan BatchOutcome, error)
}
