package memory

import (
	"context"
	"sync"

	"github.com/ca-shen98/knoba/internal/core/domain"
	"github.com/ca-shen98/knoba/internal/core/ports/driven"
)

// Ensure BatchJournal implements the interface.
var _ driven.BatchJournal = (*BatchJournal)(nil)

// BatchJournal is an in-memory implementation of driven.BatchJournal.
type BatchJournal struct {
	mu      sync.RWMutex
	records []domain.BatchRecord
	nextID  int64
}

// NewBatchJournal creates a new in-memory batch journal.
func NewBatchJournal() *BatchJournal {
	return &BatchJournal{nextID: 1}
}

// Record appends a batch outcome.
func (j *BatchJournal) Record(_ context.Context, rec *domain.BatchRecord) error {
	if rec == nil {
		return domain.ErrInvalidInput
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	rec.ID = j.nextID
	j.nextID++
	j.records = append(j.records, *rec)
	return nil
}

// Recent returns up to limit records, most recent first.
func (j *BatchJournal) Recent(_ context.Context, limit int) ([]domain.BatchRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]domain.BatchRecord, 0, min(limit, len(j.records)))
	for i := len(j.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, j.records[i])
	}
	return out, nil
}

// Get returns a record by ID.
func (j *BatchJournal) Get(_ context.Context, id int64) (*domain.BatchRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	for i := range j.records {
		if j.records[i].ID == id {
			rec := j.records[i]
			return &rec, nil
		}
	}
	return nil, domain.ErrNotFound
}

// LastFailed returns the most recent failed record.
func (j *BatchJournal) LastFailed(_ context.Context) (*domain.BatchRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	for i := len(j.records) - 1; i >= 0; i-- {
		if !j.records[i].Success {
			rec := j.records[i]
			return &rec, nil
		}
	}
	return nil, domain.ErrNotFound
}

// Prune keeps only the most recent keep records.
func (j *BatchJournal) Prune(_ context.Context, keep int) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if keep < 0 {
		keep = 0
	}
	if len(j.records) > keep {
		j.records = append([]domain.BatchRecord(nil), j.records[len(j.records)-keep:]...)
	}
	return nil
}
