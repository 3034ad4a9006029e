package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ca-shen98/knoba/internal/core/domain"
	"github.com/ca-shen98/knoba/internal/core/ports/driven"
	"github.com/ca-shen98/knoba/internal/core/ports/driving"
	"github.com/ca-shen98/knoba/internal/logger"
)

// Ensure BatchQueue implements the interface.
var _ driving.BatchSubmitter = (*BatchQueue)(nil)

// ErrQueueClosed is returned when submitting to a queue that is not running.
var ErrQueueClosed = errors.New("batch queue is not running")

// job is one submitted batch and where to deliver its outcome.
type job struct {
	ctx   context.Context
	batch domain.Batch
	done  chan driving.BatchOutcome
}

// BatchQueue runs batches on a fixed pool of workers.
// Batches on different workers run concurrently with no coordination.
type BatchQueue struct {
	reconciler driving.Reconciler
	journal    driven.BatchJournal
	workers    int

	mu      sync.Mutex
	running bool // accepting submissions
	closed  bool // jobs channel closed
	ctx     context.Context
	jobs    chan job
	wg      sync.WaitGroup
}

// NewBatchQueue creates a queue with the given number of workers.
func NewBatchQueue(reconciler driving.Reconciler, workers int) (*BatchQueue, error) {
	if reconciler == nil {
		return nil, fmt.Errorf("%w: batch queue requires a reconciler", domain.ErrInvalidInput)
	}
	if workers <= 0 {
		return nil, fmt.Errorf("%w: workers must be positive, got %d", domain.ErrInvalidInput, workers)
	}
	return &BatchQueue{
		reconciler: reconciler,
		workers:    workers,
	}, nil
}

// WithJournal records every processed batch in journal.
func (q *BatchQueue) WithJournal(journal driven.BatchJournal) *BatchQueue {
	q.journal = journal
	return q
}

// Start launches the workers. They exit when ctx is cancelled or Close is called.
func (q *BatchQueue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.running = true
	q.closed = false
	q.ctx = ctx
	q.jobs = make(chan job, q.workers)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work(ctx, i, q.jobs)
	}
	logger.Debug("Batch queue started with %d workers", q.workers)
}

// Submit enqueues a batch. The returned channel receives exactly one outcome.
func (q *BatchQueue) Submit(ctx context.Context, batch domain.Batch) (<-chan driving.BatchOutcome, error) {
	if err := batch.Validate(); err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.running || q.ctx.Err() != nil {
		return nil, ErrQueueClosed
	}

	j := job{ctx: ctx, batch: batch, done: make(chan driving.BatchOutcome, 1)}
	select {
	case q.jobs <- j:
		return j.done, nil
	case <-q.ctx.Done():
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting batches and waits for queued ones to finish.
func (q *BatchQueue) Close() {
	q.mu.Lock()
	q.running = false
	if q.jobs != nil && !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *BatchQueue) work(ctx context.Context, id int, jobs <-chan job) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			q.drain(ctx, jobs)
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			q.run(ctx, id, j)
		}
	}
}

// drain stops accepting submissions and fails every job still buffered.
// It holds the lock so no Submit can enqueue behind it.
func (q *BatchQueue) drain(ctx context.Context, jobs <-chan job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.running = false
	for {
		select {
		case j, ok := <-jobs:
			if !ok {
				return
			}
			j.done <- driving.BatchOutcome{Batch: j.batch, Err: ctx.Err()}
		default:
			return
		}
	}
}

func (q *BatchQueue) run(ctx context.Context, worker int, j job) {
	jobCtx, cancel := mergeCancel(ctx, j.ctx)
	defer cancel()

	logger.Debug("Worker %d processing batch (%d upserts, %d removes)", worker, len(j.batch.Upserts), len(j.batch.Removes))
	started := time.Now()
	result, err := q.reconciler.Process(jobCtx, j.batch)
	if err != nil {
		logger.Warn("Worker %d batch failed: %v", worker, err)
	}
	if q.journal != nil {
		rec := domain.NewBatchRecord(j.batch, started, time.Now(), result, err)
		// Journal writes use the queue context so a cancelled submitter is still recorded.
		if jerr := q.journal.Record(ctx, rec); jerr != nil {
			logger.Warn("Worker %d could not journal batch: %v", worker, jerr)
		}
	}
	j.done <- driving.BatchOutcome{Batch: j.batch, Result: result, Err: err}
}

// mergeCancel returns a context derived from a that is also cancelled when b is done.
func mergeCancel(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
