package driven

import (
	"context"

	"github.com/ca-shen98/knoba/internal/core/domain"
)

// BatchJournal persists the history of processed batches.
type BatchJournal interface {
	// Record appends a batch outcome and assigns its ID.
	Record(ctx context.Context, rec *domain.BatchRecord) error

	// Recent returns up to limit records, most recent first.
	Recent(ctx context.Context, limit int) ([]domain.BatchRecord, error)

	// Get returns a record by ID.
	// Returns domain.ErrNotFound if it does not exist.
	Get(ctx context.Context, id int64) (*domain.BatchRecord, error)

	// LastFailed returns the most recent failed record.
	// Returns domain.ErrNotFound if no batch has failed.
	LastFailed(ctx context.Context) (*domain.BatchRecord, error)

	// Prune keeps only the most recent keep records.
	Prune(ctx context.Context, keep int) error
}
