package factory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ca-shen98/knoba/internal/adapters/driven/embedding/hashing"
	"github.com/ca-shen98/knoba/internal/adapters/driven/storage/memory"
	"github.com/ca-shen98/knoba/internal/core/domain"
	"github.com/ca-shen98/knoba/internal/core/ports/driven"
)

func memorySettings() domain.AppSettings {
	s := domain.DefaultAppSettings()
	s.Index.Backend = domain.BackendMemory
	s.Tracker.Backend = domain.BackendMemory
	return s
}

func sourceTypes(sources []driven.ContentSource) []string {
	types := make([]string, 0, len(sources))
	for _, s := range sources {
		types = append(types, s.Type())
	}
	return types
}

func TestInit_Memory(t *testing.T) {
	result, err := Init(context.Background(), memorySettings())
	require.NoError(t, err)
	defer func() { assert.NoError(t, result.Close()) }()

	assert.IsType(t, &hashing.EmbeddingProvider{}, result.Embedder)
	assert.IsType(t, &memory.MatchIndex{}, result.Index)
	assert.IsType(t, &memory.LocationTracker{}, result.Tracker)
	assert.IsType(t, &memory.BatchJournal{}, result.Journal)
	assert.Equal(t, []string{"fs"}, sourceTypes(result.Sources))
	assert.Len(t, result.Warnings, 3)
}

func TestInit_SQLite(t *testing.T) {
	s := domain.DefaultAppSettings()
	s.Storage.DataDir = t.TempDir()

	result, err := Init(context.Background(), s)
	require.NoError(t, err)
	defer func() { assert.NoError(t, result.Close()) }()

	require.NoError(t, result.Tracker.Set(context.Background(), "fs_/a.md", []string{"b1"}))
	ids, err := result.Tracker.Get(context.Background(), "fs_/a.md")
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, ids)
	assert.NotNil(t, result.Journal)
}

func TestInit_MixedBackendsWarn(t *testing.T) {
	s := memorySettings()
	s.Tracker.Backend = domain.BackendSQLite
	s.Storage.DataDir = t.TempDir()

	result, err := Init(context.Background(), s)
	require.NoError(t, err)
	defer func() { _ = result.Close() }()

	assert.Contains(t, result.Warnings[0], "different backends")
}

func TestInit_InvalidSettings(t *testing.T) {
	s := memorySettings()
	s.Matching.SemanticThreshold = 2

	_, err := Init(context.Background(), s)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestInit_PostgresDimensionMismatch(t *testing.T) {
	s := memorySettings()
	s.Index.Backend = domain.BackendPostgres
	s.Postgres.DSN = "postgres://localhost/knoba"
	s.Postgres.Dimensions = 1536
	s.Embedding.Dimensions = 64

	_, err := Init(context.Background(), s)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCreateEmbeddingProvider(t *testing.T) {
	p, err := CreateEmbeddingProvider(domain.EmbeddingSettings{Provider: domain.EmbeddingHashing, Dimensions: 32})
	require.NoError(t, err)
	assert.Equal(t, 32, p.Dimensions())

	p, err = CreateEmbeddingProvider(domain.EmbeddingSettings{Provider: domain.EmbeddingOpenAI, APIKey: "sk"})
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", p.ModelName())

	_, err = CreateEmbeddingProvider(domain.EmbeddingSettings{Provider: domain.EmbeddingOpenAI})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	_, err = CreateEmbeddingProvider(domain.EmbeddingSettings{Provider: "cohere"})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

type badEmbedder struct {
	err  error
	dims int
}

func (b badEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	if b.err != nil {
		return nil, b.err
	}
	return [][]float32{make([]float32, 2)}, nil
}
func (b badEmbedder) Dimensions() int   { return b.dims }
func (b badEmbedder) ModelName() string { return "bad" }

func TestValidateEmbeddingProvider(t *testing.T) {
	p, err := hashing.NewEmbeddingProvider(16)
	require.NoError(t, err)
	assert.NoError(t, ValidateEmbeddingProvider(context.Background(), p))

	err = ValidateEmbeddingProvider(context.Background(), badEmbedder{err: errors.New("down")})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	err = ValidateEmbeddingProvider(context.Background(), badEmbedder{dims: 3})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestCreateContentSources(t *testing.T) {
	sources, warnings, err := CreateContentSources(context.Background(), domain.ConnectorSettings{
		NotionToken:     "n",
		GoogleDocsToken: "g",
		GitHubToken:     "h",
	})
	require.NoError(t, err)

	assert.Empty(t, warnings)
	assert.Equal(t, []string{"fs", "notion", "gdocs", "github"}, sourceTypes(sources))
	for _, s := range sources {
		_, ok := s.(driven.ContentWriter)
		assert.True(t, ok, "%s should also write", s.Type())
	}
}

func TestInitResult_CloseJoinsErrors(t *testing.T) {
	r := &InitResult{closers: []func() error{
		func() error { return errors.New("a") },
		func() error { return nil },
		func() error { return errors.New("b") },
	}}

	err := r.Close()
	assert.ErrorContains(t, err, "a")
	assert.ErrorContains(t, err, "b")
	assert.NoError(t, r.Close())
}
