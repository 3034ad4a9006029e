package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/ca-shen98/knoba/internal/core/domain"
	"github.com/ca-shen98/knoba/internal/core/ports/driven"
)

// Store is a PostgreSQL-backed storage that provides the tracker and match
// index through wrapper types sharing one connection pool.
type Store struct {
	pool       *pgxpool.Pool
	dimensions int
}

// NewStore connects to dsn, ensures the pgvector extension and schema exist,
// and returns a store for embeddings of the given dimension.
func NewStore(ctx context.Context, dsn string, dimensions int) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres DSN is required", domain.ErrInvalidInput)
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: vector dimensions must be positive, got %d", domain.ErrInvalidInput, dimensions)
	}

	// The extension must exist before the pool registers the vector type.
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	_, err = conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	conn.Close(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating vector extension: %w", err)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres DSN: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	s := &Store{pool: pool, dimensions: dimensions}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Dimensions returns the embedding size the store accepts.
func (s *Store) Dimensions() int {
	return s.dimensions
}

// LocationTracker returns a LocationTracker interface backed by this store.
func (s *Store) LocationTracker() driven.LocationTracker {
	return &locationTracker{store: s}
}

// MatchIndex returns a MatchIndex interface backed by this store.
func (s *Store) MatchIndex() driven.MatchIndex {
	return &matchIndex{store: s}
}

// migrate creates the schema if it does not exist.
func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements(s.dimensions) {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// schemaStatements returns the DDL for embeddings of the given dimension.
func schemaStatements(dimensions int) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS knoba_blocks (
			id                    TEXT PRIMARY KEY,
			content               TEXT NOT NULL,
			embedding             vector(%d) NOT NULL,
			referencing_locations TEXT[] NOT NULL,
			updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, dimensions),
		`CREATE INDEX IF NOT EXISTS knoba_blocks_embedding_idx
			ON knoba_blocks USING hnsw (embedding vector_cosine_ops)`,
		`CREATE TABLE IF NOT EXISTS knoba_locations (
			location   TEXT PRIMARY KEY,
			block_ids  TEXT[] NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
}
