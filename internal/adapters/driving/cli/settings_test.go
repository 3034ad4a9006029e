package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ca-shen98/knoba/internal/core/domain"
)

// Test helper functions in settings.go

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Short key",
			input:    "abc123",
			expected: "****",
		},
		{
			name:     "Exactly 8 chars",
			input:    "12345678",
			expected: "****",
		},
		{
			name:     "Long key",
			input:    "sk-1234567890abcdef",
			expected: "sk-1...cdef",
		},
		{
			name:     "Very long key",
			input:    "sk-proj-1234567890abcdefghijklmnop",
			expected: "sk-p...mnop",
		},
		{
			name:     "Empty key",
			input:    "",
			expected: "****",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := maskAPIKey(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		maxVal     int
		defaultVal int
		expected   int
	}{
		{
			name:       "Empty input returns default",
			input:      "",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Valid choice within range",
			input:      "3",
			maxVal:     5,
			defaultVal: 1,
			expected:   3,
		},
		{
			name:       "Choice below minimum returns default",
			input:      "0",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Choice above maximum returns default",
			input:      "6",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Invalid input returns default",
			input:      "abc",
			maxVal:     5,
			defaultVal: 2,
			expected:   2,
		},
		{
			name:       "Negative number returns default",
			input:      "-1",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Whitespace returns default",
			input:      "   ",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Maximum value is valid",
			input:      "5",
			maxVal:     5,
			defaultVal: 1,
			expected:   5,
		},
		{
			name:       "Minimum value is valid",
			input:      "1",
			maxVal:     5,
			defaultVal: 3,
			expected:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseChoice(tt.input, tt.maxVal, tt.defaultVal)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestMaskDSN(t *testing.T) {
	assert.Equal(t, "postgres://knoba:****@db:5432/knoba", maskDSN("postgres://knoba:s3cret@db:5432/knoba"))
	assert.Equal(t, "postgres://knoba@db/knoba", maskDSN("postgres://knoba@db/knoba"))
	assert.Equal(t, "postgres://db/knoba", maskDSN("postgres://db/knoba"))
	assert.Equal(t, "(set)", maskDSN("host=db user=knoba password=x"))
}

func TestSettingsCmd_Show(t *testing.T) {
	svc := newMockSettingsService()
	svc.settings.Connectors.NotionToken = "secret_abcdefghijkl"
	svc.settings.Postgres.DSN = "postgres://u:p@h/db"
	withServices(t, &Services{Settings: svc})

	out, err := execute(t, "", "settings")

	require.NoError(t, err)
	assert.Contains(t, out, "Identity threshold: 0.980")
	assert.Contains(t, out, "Semantic threshold: 0.850")
	assert.Contains(t, out, "Match index: SQLite (local file)")
	assert.Contains(t, out, "Postgres: postgres://u:****@h/db")
	assert.Contains(t, out, "notion: configured (secr...ijkl)")
	assert.Contains(t, out, "github: not configured")
	assert.Contains(t, out, "Configuration is valid.")
}

func TestSettingsCmd_ShowInvalid(t *testing.T) {
	svc := newMockSettingsService()
	svc.settings.Embedding.Provider = domain.EmbeddingOpenAI
	withServices(t, &Services{Settings: svc})

	out, err := execute(t, "", "settings", "show")

	require.NoError(t, err)
	assert.Contains(t, out, "API Key: (not set)")
	assert.Contains(t, out, "Warning:")
}

func TestSettingsThresholdsCmd(t *testing.T) {
	svc := newMockSettingsService()
	withServices(t, &Services{Settings: svc})

	out, err := execute(t, "", "settings", "thresholds", "0.95", "0.8")

	require.NoError(t, err)
	assert.Contains(t, out, "identity 0.950, semantic 0.800")
	assert.InDelta(t, 0.95, svc.settings.Matching.IdentityThreshold, 1e-9)
	assert.InDelta(t, 0.8, svc.settings.Matching.SemanticThreshold, 1e-9)
}

func TestSettingsThresholdsCmd_Rejects(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "not a number", args: []string{"high", "0.8"}},
		{name: "semantic above identity", args: []string{"0.8", "0.9"}},
		{name: "identity above one", args: []string{"1.5", "0.9"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newMockSettingsService()
			withServices(t, &Services{Settings: svc})

			_, err := execute(t, "", append([]string{"settings", "thresholds"}, tt.args...)...)

			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Equal(t, domain.DefaultIdentityThreshold, svc.settings.Matching.IdentityThreshold)
		})
	}
}

func TestSettingsEmbeddingCmd_Hashing(t *testing.T) {
	svc := newMockSettingsService()
	var probed domain.EmbeddingSettings
	withServices(t, &Services{
		Settings: svc,
		ValidateEmbedding: func(_ context.Context, s domain.EmbeddingSettings) error {
			probed = s
			return nil
		},
	})

	out, err := execute(t, "1\n\n", "settings", "embedding")

	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddingHashing, svc.settings.Embedding.Provider)
	assert.Equal(t, "hashing-bow", svc.settings.Embedding.Model)
	assert.Equal(t, domain.EmbeddingHashing, probed.Provider)
	assert.Contains(t, out, "Validating configuration... OK")
}

func TestSettingsEmbeddingCmd_ProbeFailure(t *testing.T) {
	svc := newMockSettingsService()
	withServices(t, &Services{
		Settings: svc,
		ValidateEmbedding: func(context.Context, domain.EmbeddingSettings) error {
			return domain.ErrEmbeddingUnavailable
		},
	})

	_, err := execute(t, "2\ntext-embedding-3-large\nsk-test-key-123456\n", "settings", "embedding")

	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.Equal(t, domain.EmbeddingOpenAI, svc.settings.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-large", svc.settings.Embedding.Model)
	assert.Equal(t, "sk-test-key-123456", svc.settings.Embedding.APIKey)
}

func TestSettingsCmd_WithoutService(t *testing.T) {
	withServices(t, &Services{})

	_, err := execute(t, "", "settings")
	assert.ErrorIs(t, err, errNotConfigured)
}
