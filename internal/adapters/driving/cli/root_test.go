package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ca-shen98/knoba/internal/core/domain"
)

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "knoba", rootCmd.Use)
	assert.Contains(t, rootCmd.Long, "sourceType_rawId")
}

func TestExecute_RunsBootstrapWithFlags(t *testing.T) {
	withServices(t, &Services{})

	var gotOpts Options
	calls := 0
	cleaned := false
	rec := &mockReconciler{}
	boot := func(_ context.Context, opts Options) (*Services, func(), error) {
		calls++
		gotOpts = opts
		return &Services{Reconciler: rec}, func() { cleaned = true }, nil
	}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"--config", "/tmp/knoba-test", "upsert", "fs_/a.md"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		resetFlags(rootCmd)
	})

	err := Execute(context.Background(), boot)

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "/tmp/knoba-test", gotOpts.ConfigDir)
	assert.True(t, cleaned)
	assert.Len(t, rec.processed, 1)
}

func TestExecute_PartialBootstrap(t *testing.T) {
	withServices(t, &Services{})

	svc := newMockSettingsService()
	boot := func(context.Context, Options) (*Services, func(), error) {
		return &Services{Settings: svc}, func() {}, domain.ErrEmbeddingUnavailable
	}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)

	t.Run("settings still work", func(t *testing.T) {
		rootCmd.SetArgs([]string{"settings", "show"})
		t.Cleanup(func() { rootCmd.SetArgs(nil) })

		require.NoError(t, Execute(context.Background(), boot))
		assert.Contains(t, buf.String(), "Current Settings")
	})

	t.Run("engine commands report the cause", func(t *testing.T) {
		rootCmd.SetArgs([]string{"show", "fs_/a.md"})
		t.Cleanup(func() { rootCmd.SetArgs(nil) })

		err := Execute(context.Background(), boot)
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	})
}
