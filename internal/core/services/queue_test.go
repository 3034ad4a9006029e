package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ca-shen98/knoba/internal/adapters/driven/storage/memory"
	"github.com/ca-shen98/knoba/internal/core/domain"
	"github.com/ca-shen98/knoba/internal/core/ports/driving"
)

// stubReconciler records processed batches.
type stubReconciler struct {
	mu       sync.Mutex
	batches  []domain.Batch
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
	err      error
}

func (s *stubReconciler) Process(ctx context.Context, batch domain.Batch) (*domain.BatchResult, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	s.batches = append(s.batches, batch)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &domain.BatchResult{MappingsWritten: len(batch.Upserts)}, nil
}

func (s *stubReconciler) ProcessUpsertBatch(context.Context, []domain.Location) (*domain.BatchResult, error) {
	return &domain.BatchResult{}, nil
}

func (s *stubReconciler) ProcessRemoveBatch(context.Context, []domain.Location) (*domain.BatchResult, error) {
	return &domain.BatchResult{}, nil
}

func (s *stubReconciler) Mapping(context.Context, domain.Location) ([]string, error) {
	return nil, domain.ErrNotFound
}

func (s *stubReconciler) Blocks(context.Context, []string) (map[string]domain.ContentBlock, error) {
	return nil, nil
}

var _ driving.Reconciler = (*stubReconciler)(nil)

func TestNewBatchQueue_Validation(t *testing.T) {
	_, err := NewBatchQueue(nil, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = NewBatchQueue(&stubReconciler{}, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestBatchQueue_SubmitBeforeStart(t *testing.T) {
	q, err := NewBatchQueue(&stubReconciler{}, 1)
	require.NoError(t, err)

	_, err = q.Submit(context.Background(), domain.Batch{Upserts: []domain.Location{"fs_a"}})
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestBatchQueue_ProcessesBatches(t *testing.T) {
	stub := &stubReconciler{delay: 20 * time.Millisecond}
	q, _ := NewBatchQueue(stub, 3)
	q.Start(context.Background())

	var outcomes []<-chan driving.BatchOutcome
	for i := 0; i < 6; i++ {
		ch, err := q.Submit(context.Background(), domain.Batch{Upserts: []domain.Location{"fs_a", "fs_b"}})
		require.NoError(t, err)
		outcomes = append(outcomes, ch)
	}
	for _, ch := range outcomes {
		out := <-ch
		require.NoError(t, out.Err)
		assert.Equal(t, 2, out.Result.MappingsWritten)
	}
	q.Close()

	assert.Len(t, stub.batches, 6)
	assert.LessOrEqual(t, stub.peak.Load(), int32(3))
	assert.Greater(t, stub.peak.Load(), int32(1))
}

func TestBatchQueue_ReportsErrors(t *testing.T) {
	stub := &stubReconciler{err: errors.New("index unavailable")}
	q, _ := NewBatchQueue(stub, 1)
	q.Start(context.Background())
	defer q.Close()

	ch, err := q.Submit(context.Background(), domain.Batch{Removes: []domain.Location{"fs_a"}})
	require.NoError(t, err)

	out := <-ch
	assert.EqualError(t, out.Err, "index unavailable")
	assert.Nil(t, out.Result)
}

func TestBatchQueue_RejectsInvalidBatch(t *testing.T) {
	q, _ := NewBatchQueue(&stubReconciler{}, 1)
	q.Start(context.Background())
	defer q.Close()

	_, err := q.Submit(context.Background(), domain.Batch{Upserts: []domain.Location{"fs_a"}, Removes: []domain.Location{"fs_a"}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestBatchQueue_CloseIsIdempotent(t *testing.T) {
	q, _ := NewBatchQueue(&stubReconciler{}, 2)
	q.Start(context.Background())
	q.Close()
	q.Close()

	_, err := q.Submit(context.Background(), domain.Batch{Upserts: []domain.Location{"fs_a"}})
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestBatchQueue_JournalsOutcomes(t *testing.T) {
	stub := &stubReconciler{}
	journal := memory.NewBatchJournal()
	q, _ := NewBatchQueue(stub, 1)
	q.WithJournal(journal).Start(context.Background())

	ch, err := q.Submit(context.Background(), domain.Batch{Upserts: []domain.Location{"fs_a"}})
	require.NoError(t, err)
	<-ch

	stub.err = errors.New("index unavailable")
	ch, err = q.Submit(context.Background(), domain.Batch{Removes: []domain.Location{"fs_b"}})
	require.NoError(t, err)
	<-ch
	q.Close()

	recent, err := journal.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	failed, err := journal.LastFailed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "index unavailable", failed.Error)
	assert.Equal(t, []domain.Location{"fs_b"}, failed.Batch.Removes)
}

func TestBatchQueue_SubmitAfterContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q, _ := NewBatchQueue(&stubReconciler{}, 2)
	q.Start(ctx)
	defer q.Close()

	cancel()
	time.Sleep(5 * time.Millisecond)

	for i := 0; i < 50; i++ {
		ch, err := q.Submit(context.Background(), domain.Batch{Upserts: []domain.Location{"fs_a"}})
		if err != nil {
			assert.ErrorIs(t, err, ErrQueueClosed)
			continue
		}
		select {
		case out := <-ch:
			assert.Error(t, out.Err)
		case <-time.After(time.Second):
			t.Fatalf("submission %d never received an outcome", i)
		}
	}
}

func TestBatchQueue_CancelFailsBufferedJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stub := &stubReconciler{delay: time.Second}
	q, _ := NewBatchQueue(stub, 1)
	q.Start(ctx)
	defer q.Close()

	var outcomes []<-chan driving.BatchOutcome
	for i := 0; i < 2; i++ {
		ch, err := q.Submit(context.Background(), domain.Batch{Upserts: []domain.Location{"fs_a"}})
		require.NoError(t, err)
		outcomes = append(outcomes, ch)
	}
	cancel()

	for i, ch := range outcomes {
		select {
		case out := <-ch:
			assert.ErrorIs(t, out.Err, context.Canceled)
		case <-time.After(2 * time.Second):
			t.Fatalf("batch %d never received an outcome", i)
		}
	}

	_, err := q.Submit(context.Background(), domain.Batch{Upserts: []domain.Location{"fs_a"}})
	assert.ErrorIs(t, err, ErrQueueClosed)
}
