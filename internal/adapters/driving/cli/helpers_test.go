package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ca-shen98/knoba/internal/core/domain"
)

// mockReconciler implements driving.Reconciler for testing.
type mockReconciler struct {
	mu        sync.Mutex
	processed []domain.Batch
	result    *domain.BatchResult
	err       error
	mappings  map[domain.Location][]string
	blocks    map[string]domain.ContentBlock
}

func (m *mockReconciler) Process(_ context.Context, batch domain.Batch) (*domain.BatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed = append(m.processed, batch)
	if m.err != nil {
		return nil, m.err
	}
	if m.result == nil {
		return &domain.BatchResult{}, nil
	}
	return m.result, nil
}

func (m *mockReconciler) ProcessUpsertBatch(ctx context.Context, locs []domain.Location) (*domain.BatchResult, error) {
	return m.Process(ctx, domain.Batch{Upserts: locs})
}

func (m *mockReconciler) ProcessRemoveBatch(ctx context.Context, locs []domain.Location) (*domain.BatchResult, error) {
	return m.Process(ctx, domain.Batch{Removes: locs})
}

func (m *mockReconciler) Mapping(_ context.Context, loc domain.Location) ([]string, error) {
	ids, ok := m.mappings[loc]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return ids, nil
}

func (m *mockReconciler) Blocks(_ context.Context, ids []string) (map[string]domain.ContentBlock, error) {
	out := make(map[string]domain.ContentBlock)
	for _, id := range ids {
		if b, ok := m.blocks[id]; ok {
			out[id] = b
		}
	}
	return out, nil
}

// mockJournal implements driven.BatchJournal for testing.
type mockJournal struct {
	records []domain.BatchRecord
	pruned  int
	err     error
}

func (m *mockJournal) Record(_ context.Context, rec *domain.BatchRecord) error {
	rec.ID = int64(len(m.records) + 1)
	m.records = append([]domain.BatchRecord{*rec}, m.records...)
	return nil
}

func (m *mockJournal) Recent(_ context.Context, limit int) ([]domain.BatchRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	if limit < len(m.records) {
		return m.records[:limit], nil
	}
	return m.records, nil
}

func (m *mockJournal) Get(_ context.Context, id int64) (*domain.BatchRecord, error) {
	for i := range m.records {
		if m.records[i].ID == id {
			return &m.records[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockJournal) LastFailed(_ context.Context) (*domain.BatchRecord, error) {
	for i := range m.records {
		if !m.records[i].Success {
			return &m.records[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockJournal) Prune(_ context.Context, keep int) error {
	m.pruned = keep
	return m.err
}

// mockSettingsService implements driving.SettingsService for testing.
type mockSettingsService struct {
	settings domain.AppSettings
	saveErr  error
}

func newMockSettingsService() *mockSettingsService {
	return &mockSettingsService{settings: domain.DefaultAppSettings()}
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(settings *domain.AppSettings) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.settings = *settings
	return nil
}

func (m *mockSettingsService) SetThresholds(identity, semantic float64) error {
	matching := domain.MatchingSettings{IdentityThreshold: identity, SemanticThreshold: semantic}
	if err := matching.Validate(); err != nil {
		return err
	}
	m.settings.Matching = matching
	return m.saveErr
}

func (m *mockSettingsService) SetEmbeddingProvider(provider domain.EmbeddingProviderType, model, apiKey string) error {
	if provider.RequiresAPIKey() && apiKey == "" {
		return errors.New("api key required")
	}
	m.settings.Embedding.Provider = provider
	m.settings.Embedding.Model = model
	m.settings.Embedding.APIKey = apiKey
	return m.saveErr
}

func (m *mockSettingsService) Validate() error {
	return m.settings.Validate()
}

func (m *mockSettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// withServices installs services for one test and restores the previous ones.
func withServices(t *testing.T, s *Services) {
	t.Helper()
	prev := &Services{
		Reconciler:        reconciler,
		Submitter:         batchSubmitter,
		Journal:           journal,
		Settings:          settingsService,
		ValidateEmbedding: embeddingProbe,
	}
	prevErr := bootstrapErr
	SetServices(s)
	bootstrapErr = nil
	t.Cleanup(func() {
		SetServices(prev)
		bootstrapErr = prevErr
	})
}

// execute runs the root command with args and returns its combined output.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		resetFlags(rootCmd)
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores every flag to its default so tests do not leak state.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
