package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ca-shen98/knoba/internal/adapters/driven/storage/similarity"
	"github.com/ca-shen98/knoba/internal/core/domain"
	"github.com/ca-shen98/knoba/internal/core/ports/driven"
)

// Ensure MatchIndex implements the interface.
var _ driven.MatchIndex = (*MatchIndex)(nil)

// MatchIndex is an in-memory implementation of driven.MatchIndex.
//
// In exact mode only blocks whose embedding equals the query are returned,
// each with score 1. In cosine mode every block is ranked by cosine similarity.
type MatchIndex struct {
	mu         sync.RWMutex
	mode       domain.MatchMode
	blocks     map[string]domain.ContentBlock
	writeDelay time.Duration
}

// MatchIndexOption configures a MatchIndex.
type MatchIndexOption func(*MatchIndex)

// WithWriteDelay delays every Upsert and Delete, simulating a remote index.
func WithWriteDelay(d time.Duration) MatchIndexOption {
	return func(m *MatchIndex) {
		m.writeDelay = d
	}
}

// NewMatchIndex creates a new in-memory match index.
func NewMatchIndex(mode domain.MatchMode, opts ...MatchIndexOption) (*MatchIndex, error) {
	if !mode.IsValid() {
		return nil, fmt.Errorf("%w: unknown match mode %q", domain.ErrInvalidInput, mode)
	}
	m := &MatchIndex{
		mode:   mode,
		blocks: make(map[string]domain.ContentBlock),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Query returns up to k blocks closest to the embedding.
func (m *MatchIndex) Query(_ context.Context, embedding []float32, k int) ([]domain.MatchCandidate, error) {
	if k <= 0 {
		return []domain.MatchCandidate{}, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	candidates := make([]domain.MatchCandidate, 0, len(m.blocks))
	for id, block := range m.blocks {
		var score float64
		switch m.mode {
		case domain.MatchModeExact:
			if !similarity.Equal(block.Embedding, embedding) {
				continue
			}
			score = 1
		default:
			score = similarity.Cosine(block.Embedding, embedding)
		}
		candidates = append(candidates, domain.MatchCandidate{
			BlockID: id,
			Score:   score,
			Block:   block.Clone(),
		})
	}
	return similarity.TopK(candidates, k), nil
}

// Fetch returns the stored blocks among ids.
func (m *MatchIndex) Fetch(_ context.Context, ids []string) (map[string]domain.ContentBlock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]domain.ContentBlock, len(ids))
	for _, id := range ids {
		if block, ok := m.blocks[id]; ok {
			result[id] = block.Clone()
		}
	}
	return result, nil
}

// Upsert stores blocks, replacing any existing block with the same id.
func (m *MatchIndex) Upsert(ctx context.Context, blocks []domain.ContentBlock) error {
	for i := range blocks {
		if err := blocks[i].Validate(); err != nil {
			return err
		}
	}
	if err := m.delay(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, block := range blocks {
		m.blocks[block.ID] = block.Clone()
	}
	return nil
}

// Delete removes blocks by id.
func (m *MatchIndex) Delete(ctx context.Context, ids []string) error {
	if err := m.delay(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.blocks, id)
	}
	return nil
}

// Len returns the number of stored blocks.
func (m *MatchIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blocks)
}

func (m *MatchIndex) delay(ctx context.Context) error {
	if m.writeDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(m.writeDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
