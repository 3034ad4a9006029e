package domain

import "time"

// BatchRecord is one entry of the batch journal: a processed batch and its outcome.
// Failed batches can be re-submitted from their record.
type BatchRecord struct {
	// ID is assigned by the journal.
	ID int64

	// Batch is the request as submitted.
	Batch Batch

	StartedAt time.Time
	EndedAt   time.Time

	// Success is false when the batch returned an error.
	Success bool

	// Error is the batch error, if any.
	Error string

	Created            int
	ContentUpdated     int
	ReferencesUpdated  int
	Deleted            int
	FailedPropagations int
}

// NewBatchRecord summarises a batch outcome for the journal.
func NewBatchRecord(batch Batch, started, ended time.Time, result *BatchResult, err error) *BatchRecord {
	rec := &BatchRecord{
		Batch:     batch,
		StartedAt: started,
		EndedAt:   ended,
		Success:   err == nil,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if result != nil {
		rec.Created = len(result.Created)
		rec.ContentUpdated = len(result.ContentUpdated)
		rec.ReferencesUpdated = len(result.ReferencesUpdated)
		rec.Deleted = len(result.Deleted)
		rec.FailedPropagations = len(result.FailedPropagations())
	}
	return rec
}

// Duration returns how long the batch took.
func (r BatchRecord) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}
