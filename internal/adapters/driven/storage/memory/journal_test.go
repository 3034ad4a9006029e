package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ca-shen98/knoba/internal/core/domain"
)

func TestBatchJournal(t *testing.T) {
	j := NewBatchJournal()
	ctx := context.Background()

	assert.ErrorIs(t, j.Record(ctx, nil), domain.ErrInvalidInput)

	for _, ok := range []bool{true, false, true} {
		require.NoError(t, j.Record(ctx, &domain.BatchRecord{Success: ok}))
	}

	recent, err := j.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, int64(3), recent[0].ID)
	assert.Equal(t, int64(2), recent[1].ID)

	failed, err := j.LastFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), failed.ID)

	got, err := j.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, got.Success)

	require.NoError(t, j.Prune(ctx, 1))
	_, err = j.LastFailed(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = j.Get(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
