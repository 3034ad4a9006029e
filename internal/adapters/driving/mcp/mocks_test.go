package mcp

import (
	"context"

	"github.com/ca-shen98/knoba/internal/core/domain"
	"github.com/ca-shen98/knoba/internal/core/ports/driving"
)

// mockReconciler is a mock implementation of driving.Reconciler.
type mockReconciler struct {
	result   *domain.BatchResult
	mappings map[domain.Location][]string
	blocks   map[string]domain.ContentBlock
	err      error

	processed []domain.Batch
}

func (m *mockReconciler) Process(_ context.Context, batch domain.Batch) (*domain.BatchResult, error) {
	m.processed = append(m.processed, batch)
	return m.result, m.err
}

func (m *mockReconciler) ProcessUpsertBatch(_ context.Context, locs []domain.Location) (*domain.BatchResult, error) {
	m.processed = append(m.processed, domain.Batch{Upserts: locs})
	return m.result, m.err
}

func (m *mockReconciler) ProcessRemoveBatch(_ context.Context, locs []domain.Location) (*domain.BatchResult, error) {
	m.processed = append(m.processed, domain.Batch{Removes: locs})
	return m.result, m.err
}

func (m *mockReconciler) Mapping(_ context.Context, loc domain.Location) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	ids, ok := m.mappings[loc]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return ids, nil
}

func (m *mockReconciler) Blocks(_ context.Context, ids []string) (map[string]domain.ContentBlock, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]domain.ContentBlock)
	for _, id := range ids {
		if b, ok := m.blocks[id]; ok {
			out[id] = b
		}
	}
	return out, nil
}

// mockSubmitter is a mock implementation of driving.BatchSubmitter.
type mockSubmitter struct {
	outcome   driving.BatchOutcome
	err       error
	submitted []domain.Batch
}

func (m *mockSubmitter) Submit(_ context.Context, batch domain.Batch) (<-chan driving.BatchOutcome, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.submitted = append(m.submitted, batch)
	ch := make(chan driving.BatchOutcome, 1)
	out := m.outcome
	out.Batch = batch
	ch <- out
	return ch, nil
}

// mockJournal is a mock implementation of driven.BatchJournal.
type mockJournal struct {
	records []domain.BatchRecord
	err     error
}

func (m *mockJournal) Record(_ context.Context, rec *domain.BatchRecord) error {
	if m.err != nil {
		return m.err
	}
	rec.ID = int64(len(m.records) + 1)
	m.records = append([]domain.BatchRecord{*rec}, m.records...)
	return nil
}

func (m *mockJournal) Recent(_ context.Context, limit int) ([]domain.BatchRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	if limit < len(m.records) {
		return m.records[:limit], nil
	}
	return m.records, nil
}

func (m *mockJournal) Get(_ context.Context, id int64) (*domain.BatchRecord, error) {
	for i := range m.records {
		if m.records[i].ID == id {
			return &m.records[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockJournal) LastFailed(_ context.Context) (*domain.BatchRecord, error) {
	for i := range m.records {
		if !m.records[i].Success {
			return &m.records[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockJournal) Prune(_ context.Context, _ int) error {
	return m.err
}
