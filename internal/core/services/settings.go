package services

import (
	"fmt"
	"os"
	"strconv"

	"github.com/ca-shen98/knoba/internal/core/domain"
	"github.com/ca-shen98/knoba/internal/core/ports/driven"
	"github.com/ca-shen98/knoba/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyIdentityThreshold = "matching.identity_threshold"
	keySemanticThreshold = "matching.semantic_threshold"
	keyIndexBackend      = "index.backend"
	keyIndexMode         = "index.mode"
	keyTrackerBackend    = "tracker.backend"
	keyDataDir           = "storage.data_dir"
	keyPostgresDSN       = "postgres.dsn"
	keyPostgresDims      = "postgres.dimensions"
	keyEmbedProvider     = "embedding.provider"
	keyEmbedModel        = "embedding.model"
	keyEmbedBaseURL      = "embedding.base_url"
	keyEmbedAPIKey       = "embedding.api_key"
	keyEmbedMaxRetries   = "embedding.max_retries"
	keyEmbedDims         = "embedding.dimensions"
	keyWorkers           = "reconciler.workers"
	keyFilesystemRoot    = "connectors.fs.root"
	keyNotionToken       = "connectors.notion.token"
	keyGoogleDocsToken   = "connectors.gdocs.token"
	keyGitHubToken       = "connectors.github.token"
)

// Environment variables that override stored settings.
//
//nolint:gosec // G101: These are variable names, not actual credentials.
const (
	envIdentityThreshold = "KNOBA_IDENTITY_THRESHOLD"
	envSemanticThreshold = "KNOBA_SEMANTIC_THRESHOLD"
	envIndexBackend      = "KNOBA_INDEX_BACKEND"
	envTrackerBackend    = "KNOBA_TRACKER_BACKEND"
	envDataDir           = "KNOBA_DATA_DIR"
	envPostgresDSN       = "KNOBA_POSTGRES_DSN"
	envEmbedProvider     = "KNOBA_EMBEDDING_PROVIDER"
	envEmbedModel        = "KNOBA_EMBEDDING_MODEL"
	envOpenAIKey         = "OPENAI_API_KEY"
	envWorkers           = "KNOBA_WORKERS"
	envNotionToken       = "KNOBA_NOTION_TOKEN"
	envGoogleDocsToken   = "KNOBA_GDOCS_TOKEN"
	envGitHubToken       = "KNOBA_GITHUB_TOKEN"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	lookupEnv   func(string) (string, bool)
}

// NewSettingsService creates a new settings service.
// Environment overrides are read with os.LookupEnv.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		lookupEnv:   os.LookupEnv,
	}
}

// WithEnv replaces the environment lookup. A nil lookup disables overrides.
func (s *SettingsService) WithEnv(lookup func(string) (string, bool)) *SettingsService {
	if lookup == nil {
		lookup = func(string) (string, bool) { return "", false }
	}
	s.lookupEnv = lookup
	return s
}

// Get retrieves current application settings: defaults, then the config
// store, then environment overrides.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Matching: domain.MatchingSettings{
			IdentityThreshold: s.getFloat(keyIdentityThreshold, defaults.Matching.IdentityThreshold),
			SemanticThreshold: s.getFloat(keySemanticThreshold, defaults.Matching.SemanticThreshold),
		},
		Index: domain.IndexSettings{
			Backend: s.getBackend(keyIndexBackend, defaults.Index.Backend),
			Mode:    s.getMatchMode(defaults.Index.Mode),
		},
		Tracker: domain.TrackerSettings{
			Backend: s.getBackend(keyTrackerBackend, defaults.Tracker.Backend),
		},
		Storage: domain.StorageSettings{
			DataDir: s.configStore.GetString(keyDataDir),
		},
		Postgres: domain.PostgresSettings{
			DSN:        s.configStore.GetString(keyPostgresDSN),
			Dimensions: s.getInt(keyPostgresDims, defaults.Postgres.Dimensions),
		},
		Embedding: domain.EmbeddingSettings{
			Provider:   s.getProvider(defaults.Embedding.Provider),
			Model:      s.configStore.GetString(keyEmbedModel),
			BaseURL:    s.configStore.GetString(keyEmbedBaseURL), // No default - empty uses the provider's endpoint
			APIKey:     s.configStore.GetString(keyEmbedAPIKey),
			MaxRetries: s.getInt(keyEmbedMaxRetries, defaults.Embedding.MaxRetries),
			Dimensions: s.getInt(keyEmbedDims, defaults.Embedding.Dimensions),
		},
		Reconciler: domain.ReconcilerSettings{
			Workers: s.getInt(keyWorkers, defaults.Reconciler.Workers),
		},
		Connectors: domain.ConnectorSettings{
			FilesystemRoot:  s.configStore.GetString(keyFilesystemRoot),
			NotionToken:     s.configStore.GetString(keyNotionToken),
			GoogleDocsToken: s.configStore.GetString(keyGoogleDocsToken),
			GitHubToken:     s.configStore.GetString(keyGitHubToken),
		},
	}

	if err := s.applyEnv(settings); err != nil {
		return nil, err
	}

	if settings.Embedding.Model == "" {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[settings.Embedding.Provider]
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyIdentityThreshold, settings.Matching.IdentityThreshold},
		{keySemanticThreshold, settings.Matching.SemanticThreshold},
		{keyIndexBackend, settings.Index.Backend.String()},
		{keyIndexMode, string(settings.Index.Mode)},
		{keyTrackerBackend, settings.Tracker.Backend.String()},
		{keyDataDir, settings.Storage.DataDir},
		{keyPostgresDSN, settings.Postgres.DSN},
		{keyPostgresDims, settings.Postgres.Dimensions},
		{keyEmbedProvider, string(settings.Embedding.Provider)},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedMaxRetries, settings.Embedding.MaxRetries},
		{keyEmbedDims, settings.Embedding.Dimensions},
		{keyWorkers, settings.Reconciler.Workers},
		{keyFilesystemRoot, settings.Connectors.FilesystemRoot},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	// Secrets are only written when set, so an empty form never erases them.
	secrets := []struct {
		key   string
		value string
	}{
		{keyEmbedAPIKey, settings.Embedding.APIKey},
		{keyNotionToken, settings.Connectors.NotionToken},
		{keyGoogleDocsToken, settings.Connectors.GoogleDocsToken},
		{keyGitHubToken, settings.Connectors.GitHubToken},
	}
	for _, v := range secrets {
		if v.value == "" {
			continue
		}
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	return nil
}

// SetThresholds updates the identity and semantic match thresholds.
func (s *SettingsService) SetThresholds(identity, semantic float64) error {
	matching := domain.MatchingSettings{IdentityThreshold: identity, SemanticThreshold: semantic}
	if err := matching.Validate(); err != nil {
		return err
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.Matching = matching
	return s.Save(settings)
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.EmbeddingProviderType, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: invalid embedding provider: %s", domain.ErrInvalidInput, provider)
	}

	// Validate API key if required
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrEmbeddingUnavailable, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.Embedding.Model = model
	} else {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[provider]
	}
	settings.Embedding.APIKey = apiKey

	return s.Save(settings)
}

// Validate checks if current settings are usable.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return settings.Validate()
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func (s *SettingsService) applyEnv(settings *domain.AppSettings) error {
	if v, ok := s.env(envIdentityThreshold); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, envIdentityThreshold, err)
		}
		settings.Matching.IdentityThreshold = f
	}
	if v, ok := s.env(envSemanticThreshold); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, envSemanticThreshold, err)
		}
		settings.Matching.SemanticThreshold = f
	}
	if v, ok := s.env(envWorkers); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, envWorkers, err)
		}
		settings.Reconciler.Workers = n
	}
	if v, ok := s.env(envIndexBackend); ok {
		settings.Index.Backend = domain.Backend(v)
	}
	if v, ok := s.env(envTrackerBackend); ok {
		settings.Tracker.Backend = domain.Backend(v)
	}
	if v, ok := s.env(envEmbedProvider); ok {
		settings.Embedding.Provider = domain.EmbeddingProviderType(v)
	}
	overrides := map[string]*string{
		envDataDir:         &settings.Storage.DataDir,
		envPostgresDSN:     &settings.Postgres.DSN,
		envEmbedModel:      &settings.Embedding.Model,
		envOpenAIKey:       &settings.Embedding.APIKey,
		envNotionToken:     &settings.Connectors.NotionToken,
		envGoogleDocsToken: &settings.Connectors.GoogleDocsToken,
		envGitHubToken:     &settings.Connectors.GitHubToken,
	}
	for name, field := range overrides {
		if v, ok := s.env(name); ok {
			*field = v
		}
	}
	return nil
}

// env returns a non-empty environment value.
func (s *SettingsService) env(name string) (string, bool) {
	v, ok := s.lookupEnv(name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBackend(key string, defaultVal domain.Backend) domain.Backend {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	backend := domain.Backend(val)
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}

func (s *SettingsService) getMatchMode(defaultVal domain.MatchMode) domain.MatchMode {
	mode := domain.MatchMode(s.configStore.GetString(keyIndexMode))
	if !mode.IsValid() {
		return defaultVal
	}
	return mode
}

func (s *SettingsService) getProvider(defaultVal domain.EmbeddingProviderType) domain.EmbeddingProviderType {
	provider := domain.EmbeddingProviderType(s.configStore.GetString(keyEmbedProvider))
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}
