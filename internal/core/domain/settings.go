package domain

import "fmt"

const unknownDescription = "Unknown"

// Default similarity thresholds. Scores are cosine similarities where 1 means identical.
const (
	// DefaultIdentityThreshold treats a candidate as the same content.
	DefaultIdentityThreshold = 0.98

	// DefaultSemanticThreshold treats a candidate as an edited version of the same content.
	DefaultSemanticThreshold = 0.85
)

// Backend selects the storage implementation behind the match index or location tracker.
type Backend string

// Available storage backends.
const (
	// BackendMemory keeps state in process memory. Nothing survives a restart.
	BackendMemory Backend = "memory"

	// BackendSQLite keeps state in a local SQLite database.
	BackendSQLite Backend = "sqlite"

	// BackendPostgres keeps state in PostgreSQL with the pgvector extension.
	BackendPostgres Backend = "postgres"
)

// IsValid returns true if the backend is recognised.
func (b Backend) IsValid() bool {
	switch b {
	case BackendMemory, BackendSQLite, BackendPostgres:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b Backend) String() string {
	return string(b)
}

// Description returns a human-readable description of the backend.
func (b Backend) Description() string {
	switch b {
	case BackendMemory:
		return "Memory (ephemeral)"
	case BackendSQLite:
		return "SQLite (local file)"
	case BackendPostgres:
		return "PostgreSQL + pgvector (external)"
	default:
		return unknownDescription
	}
}

// MatchMode selects how the in-memory match index scores candidates.
type MatchMode string

// Available match modes.
const (
	// MatchModeExact only returns candidates whose embedding is exactly equal.
	MatchModeExact MatchMode = "exact"

	// MatchModeCosine ranks every stored block by cosine similarity.
	MatchModeCosine MatchMode = "cosine"
)

// IsValid returns true if the match mode is recognised.
func (m MatchMode) IsValid() bool {
	return m == MatchModeExact || m == MatchModeCosine
}

// EmbeddingProviderType identifies an embedding backend.
type EmbeddingProviderType string

// Available embedding providers.
const (
	// EmbeddingOpenAI uses the OpenAI embeddings API.
	EmbeddingOpenAI EmbeddingProviderType = "openai"

	// EmbeddingHashing uses a local deterministic feature-hashing embedder.
	EmbeddingHashing EmbeddingProviderType = "hashing"
)

// IsValid returns true if the provider is recognised.
func (p EmbeddingProviderType) IsValid() bool {
	return p == EmbeddingOpenAI || p == EmbeddingHashing
}

// Description returns a human-readable description of the provider.
func (p EmbeddingProviderType) Description() string {
	switch p {
	case EmbeddingOpenAI:
		return "OpenAI (API)"
	case EmbeddingHashing:
		return "Hashing (local, no setup)"
	default:
		return unknownDescription
	}
}

// AllEmbeddingProviders returns all available embedding providers.
func AllEmbeddingProviders() []EmbeddingProviderType {
	return []EmbeddingProviderType{EmbeddingHashing, EmbeddingOpenAI}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p EmbeddingProviderType) RequiresAPIKey() bool {
	return p == EmbeddingOpenAI
}

// MatchingSettings holds the similarity thresholds used by the reconciler.
type MatchingSettings struct {
	// IdentityThreshold is the minimum score for reusing a block unchanged.
	IdentityThreshold float64

	// SemanticThreshold is the minimum score for reusing a block with replaced content.
	SemanticThreshold float64
}

// Validate checks 0 < semantic <= identity <= 1.
func (m MatchingSettings) Validate() error {
	if m.IdentityThreshold <= 0 || m.IdentityThreshold > 1 {
		return fmt.Errorf("%w: identity threshold must be in (0, 1], got %f", ErrInvalidInput, m.IdentityThreshold)
	}
	if m.SemanticThreshold <= 0 || m.SemanticThreshold > m.IdentityThreshold {
		return fmt.Errorf("%w: semantic threshold must be in (0, %f], got %f",
			ErrInvalidInput, m.IdentityThreshold, m.SemanticThreshold)
	}
	return nil
}

// IndexSettings holds match index configuration.
type IndexSettings struct {
	// Backend selects the implementation.
	Backend Backend

	// Mode applies to the memory backend only.
	Mode MatchMode
}

// TrackerSettings holds location tracker configuration.
type TrackerSettings struct {
	// Backend selects the implementation.
	Backend Backend
}

// StorageSettings holds local storage locations.
type StorageSettings struct {
	// DataDir holds the SQLite database. Empty means ~/.knoba/data.
	DataDir string
}

// PostgresSettings holds connection settings for the postgres backend.
type PostgresSettings struct {
	// DSN is the connection string.
	DSN string

	// Dimensions is the vector column size; it must match the embedding provider.
	Dimensions int
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding backend.
	Provider EmbeddingProviderType

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint, for OpenAI-compatible servers.
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// MaxRetries bounds retries of a failed embedding request. Zero leaves
	// recovery to re-submitting the batch.
	MaxRetries int

	// Dimensions is the vector size for the hashing provider.
	Dimensions int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// ReconcilerSettings holds batch processing configuration.
type ReconcilerSettings struct {
	// Workers is the number of batches processed concurrently.
	Workers int
}

// ConnectorSettings holds per-source credentials and roots.
type ConnectorSettings struct {
	// FilesystemRoot confines fs locations to a directory. Empty allows any path.
	FilesystemRoot string

	// NotionToken is the Notion integration token.
	NotionToken string

	// GoogleDocsToken is an OAuth access token with the documents scope.
	GoogleDocsToken string

	// GitHubToken is a personal access token with contents write access.
	GitHubToken string
}

// AppSettings holds all application settings.
type AppSettings struct {
	Matching   MatchingSettings
	Index      IndexSettings
	Tracker    TrackerSettings
	Storage    StorageSettings
	Postgres   PostgresSettings
	Embedding  EmbeddingSettings
	Reconciler ReconcilerSettings
	Connectors ConnectorSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// The local hashing embedder and SQLite storage work without any credentials.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Matching: MatchingSettings{
			IdentityThreshold: DefaultIdentityThreshold,
			SemanticThreshold: DefaultSemanticThreshold,
		},
		Index: IndexSettings{
			Backend: BackendSQLite,
			Mode:    MatchModeCosine,
		},
		Tracker: TrackerSettings{
			Backend: BackendSQLite,
		},
		Postgres: PostgresSettings{
			Dimensions: 1536, // text-embedding-3-small
		},
		Embedding: EmbeddingSettings{
			Provider:   EmbeddingHashing,
			Dimensions: 256,
		},
		Reconciler: ReconcilerSettings{
			Workers: 4,
		},
	}
}

// Validate checks the settings are usable together.
func (s AppSettings) Validate() error {
	if err := s.Matching.Validate(); err != nil {
		return err
	}
	if !s.Index.Backend.IsValid() {
		return fmt.Errorf("%w: unknown index backend %q", ErrInvalidInput, s.Index.Backend)
	}
	if s.Index.Backend == BackendMemory && !s.Index.Mode.IsValid() {
		return fmt.Errorf("%w: unknown index mode %q", ErrInvalidInput, s.Index.Mode)
	}
	if !s.Tracker.Backend.IsValid() {
		return fmt.Errorf("%w: unknown tracker backend %q", ErrInvalidInput, s.Tracker.Backend)
	}
	if (s.Index.Backend == BackendPostgres || s.Tracker.Backend == BackendPostgres) && s.Postgres.DSN == "" {
		return fmt.Errorf("%w: postgres backend requires a DSN", ErrInvalidInput)
	}
	if !s.Embedding.IsConfigured() {
		return fmt.Errorf("%w: embedding provider %q", ErrEmbeddingUnavailable, s.Embedding.Provider)
	}
	if s.Reconciler.Workers <= 0 {
		return fmt.Errorf("%w: reconciler workers must be positive, got %d", ErrInvalidInput, s.Reconciler.Workers)
	}
	return nil
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[EmbeddingProviderType]string {
	return map[EmbeddingProviderType]string{
		EmbeddingOpenAI:  "text-embedding-3-small",
		EmbeddingHashing: "hashing-bow",
	}
}
