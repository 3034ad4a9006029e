// Package factory builds the driven adapters selected by application
// settings: the embedding provider, the storage backends, and the content
// connectors.
package factory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ca-shen98/knoba/internal/adapters/driven/embedding/hashing"
	openaiembed "github.com/ca-shen98/knoba/internal/adapters/driven/embedding/openai"
	"github.com/ca-shen98/knoba/internal/adapters/driven/storage/memory"
	"github.com/ca-shen98/knoba/internal/adapters/driven/storage/postgres"
	"github.com/ca-shen98/knoba/internal/adapters/driven/storage/sqlite"
	"github.com/ca-shen98/knoba/internal/connectors/filesystem"
	"github.com/ca-shen98/knoba/internal/connectors/github"
	gdocs "github.com/ca-shen98/knoba/internal/connectors/google/docs"
	"github.com/ca-shen98/knoba/internal/connectors/notion"
	"github.com/ca-shen98/knoba/internal/core/domain"
	"github.com/ca-shen98/knoba/internal/core/ports/driven"
	"github.com/ca-shen98/knoba/internal/logger"
)

// pingTimeout is the maximum time to wait for embedding provider validation.
const pingTimeout = 10 * time.Second

// InitResult holds the adapters built from settings.
type InitResult struct {
	Embedder driven.EmbeddingProvider
	Index    driven.MatchIndex
	Tracker  driven.LocationTracker
	Journal  driven.BatchJournal
	Sources  []driven.ContentSource // Each may also be a driven.ContentWriter.
	Warnings []string               // Non-fatal issues, e.g. a connector left unregistered.

	closers []func() error
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// Init builds every adapter the settings select. On error, anything already
// opened is closed.
func Init(ctx context.Context, settings domain.AppSettings) (*InitResult, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	result := &InitResult{}
	embedder, err := CreateEmbeddingProvider(settings.Embedding)
	if err != nil {
		return nil, err
	}
	result.Embedder = embedder

	if err := result.openStorage(ctx, settings, embedder.Dimensions()); err != nil {
		_ = result.Close()
		return nil, err
	}

	sources, warnings, err := CreateContentSources(ctx, settings.Connectors)
	if err != nil {
		_ = result.Close()
		return nil, err
	}
	result.Sources = sources
	result.Warnings = append(result.Warnings, warnings...)
	return result, nil
}

// CreateEmbeddingProvider creates the embedding provider named by settings.
func CreateEmbeddingProvider(settings domain.EmbeddingSettings) (driven.EmbeddingProvider, error) {
	if !settings.IsConfigured() {
		return nil, fmt.Errorf("%w: provider %q is not configured", domain.ErrEmbeddingUnavailable, settings.Provider)
	}

	switch settings.Provider {
	case domain.EmbeddingOpenAI:
		return openaiembed.NewEmbeddingProvider(openaiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			MaxRetries: settings.MaxRetries,
		})

	case domain.EmbeddingHashing:
		return hashing.NewEmbeddingProvider(settings.Dimensions)

	default:
		return nil, fmt.Errorf("%w: unsupported embedding provider %q", domain.ErrEmbeddingUnavailable, settings.Provider)
	}
}

// ValidateEmbeddingProvider embeds a probe text to check connectivity and
// that the provider returns vectors of its declared size.
func ValidateEmbeddingProvider(ctx context.Context, p driven.EmbeddingProvider) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	vecs, err := p.EmbedBatch(ctx, []string{"knoba"})
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if len(vecs) != 1 || len(vecs[0]) != p.Dimensions() {
		return fmt.Errorf("%w: %s returned an unexpected vector size", domain.ErrEmbeddingUnavailable, p.ModelName())
	}
	return nil
}

// openStorage opens each backend once and hands out its index, tracker and
// journal. The journal lives with the tracker; a postgres tracker journals
// to the local SQLite database.
func (r *InitResult) openStorage(ctx context.Context, settings domain.AppSettings, dims int) error {
	var sqliteStore *sqlite.Store
	openSQLite := func() (*sqlite.Store, error) {
		if sqliteStore != nil {
			return sqliteStore, nil
		}
		store, err := sqlite.NewStore(settings.Storage.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		r.closers = append(r.closers, store.Close)
		sqliteStore = store
		return store, nil
	}

	var pgStore *postgres.Store
	openPostgres := func() (*postgres.Store, error) {
		if pgStore != nil {
			return pgStore, nil
		}
		if settings.Postgres.Dimensions != 0 && settings.Postgres.Dimensions != dims {
			return nil, fmt.Errorf("%w: postgres.dimensions is %d but %s embeds %d dimensions",
				domain.ErrInvalidInput, settings.Postgres.Dimensions, settings.Embedding.Provider, dims)
		}
		store, err := postgres.NewStore(ctx, settings.Postgres.DSN, dims)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		r.closers = append(r.closers, store.Close)
		pgStore = store
		return store, nil
	}

	switch settings.Index.Backend {
	case domain.BackendMemory:
		index, err := memory.NewMatchIndex(settings.Index.Mode)
		if err != nil {
			return err
		}
		r.Index = index
	case domain.BackendSQLite:
		store, err := openSQLite()
		if err != nil {
			return err
		}
		r.Index = store.MatchIndex()
	case domain.BackendPostgres:
		store, err := openPostgres()
		if err != nil {
			return err
		}
		r.Index = store.MatchIndex()
	}

	switch settings.Tracker.Backend {
	case domain.BackendMemory:
		r.Tracker = memory.NewLocationTracker()
		r.Journal = memory.NewBatchJournal()
	case domain.BackendSQLite:
		store, err := openSQLite()
		if err != nil {
			return err
		}
		r.Tracker = store.LocationTracker()
		r.Journal = store.BatchJournal()
	case domain.BackendPostgres:
		store, err := openPostgres()
		if err != nil {
			return err
		}
		r.Tracker = store.LocationTracker()
		journalStore, err := openSQLite()
		if err != nil {
			return err
		}
		r.Journal = journalStore.BatchJournal()
	}

	if settings.Index.Backend != settings.Tracker.Backend {
		msg := fmt.Sprintf("match index (%s) and location tracker (%s) use different backends",
			settings.Index.Backend, settings.Tracker.Backend)
		logger.Warn("%s", msg)
		r.Warnings = append(r.Warnings, msg)
	}
	return nil
}

// CreateContentSources builds the connectors that have credentials.
// The filesystem connector is always available.
func CreateContentSources(ctx context.Context, cs domain.ConnectorSettings) ([]driven.ContentSource, []string, error) {
	sources := []driven.ContentSource{filesystem.New(cs.FilesystemRoot)}
	var warnings []string

	if cs.NotionToken != "" {
		c, err := notion.New(notion.Config{Token: cs.NotionToken})
		if err != nil {
			return nil, nil, err
		}
		sources = append(sources, c)
	} else {
		warnings = append(warnings, "notion connector disabled: no token configured")
	}

	if cs.GoogleDocsToken != "" {
		c, err := gdocs.New(ctx, gdocs.Config{Token: cs.GoogleDocsToken})
		if err != nil {
			return nil, nil, err
		}
		sources = append(sources, c)
	} else {
		warnings = append(warnings, "gdocs connector disabled: no token configured")
	}

	if cs.GitHubToken != "" {
		sources = append(sources, github.New(github.NewClientWithToken(ctx, cs.GitHubToken)))
	} else {
		warnings = append(warnings, "github connector disabled: no token configured")
	}

	for _, w := range warnings {
		logger.Debug("%s", w)
	}
	return sources, warnings, nil
}
