package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ca-shen98/knoba/internal/core/domain"
)

// probeTimeout bounds embedding validation during configuration.
const probeTimeout = 15 * time.Second

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure match thresholds, storage backends, the embedding
provider and connector credentials.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsThresholdsCmd = &cobra.Command{
	Use:   "thresholds <identity> <semantic>",
	Short: "Set match thresholds",
	Long: `Set the cosine similarity thresholds used when matching paragraphs.

  identity - at or above this score a paragraph reuses a block unchanged
  semantic - at or above this score a paragraph replaces a block's content

Both must satisfy 0 < semantic <= identity <= 1.`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsThresholds,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure embedding provider",
	Long:  `Interactively select and validate the embedding provider.`,
	RunE:  runSettingsEmbedding,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsThresholdsCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return unavailable("settings service")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Matching]")
	cmd.Printf("  Identity threshold: %.3f\n", settings.Matching.IdentityThreshold)
	cmd.Printf("  Semantic threshold: %.3f\n", settings.Matching.SemanticThreshold)
	cmd.Println()

	cmd.Println("[Storage]")
	cmd.Printf("  Match index: %s\n", settings.Index.Backend.Description())
	if settings.Index.Backend == domain.BackendMemory {
		cmd.Printf("  Match mode: %s\n", settings.Index.Mode)
	}
	cmd.Printf("  Location tracker: %s\n", settings.Tracker.Backend.Description())
	if settings.Storage.DataDir != "" {
		cmd.Printf("  Data dir: %s\n", settings.Storage.DataDir)
	}
	if settings.Postgres.DSN != "" {
		cmd.Printf("  Postgres: %s\n", maskDSN(settings.Postgres.DSN))
	}
	cmd.Println()

	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", settings.Embedding.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.Embedding.Model)
	if settings.Embedding.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", settings.Embedding.BaseURL)
	}
	if settings.Embedding.Provider.RequiresAPIKey() {
		if settings.Embedding.APIKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(settings.Embedding.APIKey))
		} else {
			cmd.Printf("  API Key: (not set)\n")
		}
	}
	status := "configured"
	if !settings.Embedding.IsConfigured() {
		status = "not configured"
	}
	cmd.Printf("  Status: %s\n", status)
	cmd.Println()

	cmd.Println("[Connectors]")
	root := settings.Connectors.FilesystemRoot
	if root == "" {
		root = "(any absolute path)"
	}
	cmd.Printf("  fs: %s\n", root)
	cmd.Printf("  notion: %s\n", credentialStatus(settings.Connectors.NotionToken))
	cmd.Printf("  gdocs: %s\n", credentialStatus(settings.Connectors.GoogleDocsToken))
	cmd.Printf("  github: %s\n", credentialStatus(settings.Connectors.GitHubToken))
	cmd.Println()

	cmd.Printf("Workers: %d\n\n", settings.Reconciler.Workers)

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'knoba settings embedding' or edit the config file to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func runSettingsThresholds(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return unavailable("settings service")
	}

	identity, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("%w: identity threshold %q", domain.ErrInvalidInput, args[0])
	}
	semantic, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("%w: semantic threshold %q", domain.ErrInvalidInput, args[1])
	}

	if err := settingsService.SetThresholds(identity, semantic); err != nil {
		return fmt.Errorf("failed to set thresholds: %w", err)
	}
	cmd.Printf("Thresholds set: identity %.3f, semantic %.3f\n", identity, semantic)
	return nil
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return unavailable("settings service")
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	return configureEmbeddingProvider(cmd, reader)
}

func configureEmbeddingProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select Embedding Provider")
	providers := domain.AllEmbeddingProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	input := readLine(reader)
	idx := parseChoice(input, len(providers), 1)
	selectedProvider := providers[idx-1]

	defaults := domain.DefaultEmbeddingModels()
	defaultModel := defaults[selectedProvider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	var apiKey string
	if selectedProvider.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(cmd.InOrStdin(), reader)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	if err := settingsService.SetEmbeddingProvider(selectedProvider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure embedding provider: %w", err)
	}

	if embeddingProbe != nil {
		settings, err := settingsService.Get()
		if err != nil {
			return fmt.Errorf("failed to get settings: %w", err)
		}
		cmd.Print("Validating configuration... ")
		ctx, cancel := context.WithTimeout(cmd.Context(), probeTimeout)
		defer cancel()
		if err := embeddingProbe(ctx, settings.Embedding); err != nil {
			cmd.Printf("FAILED: %v\n", err)
			return fmt.Errorf("embedding configuration validation failed: %w", err)
		}
		cmd.Println("OK")
	}

	cmd.Printf("Embedding provider configured: %s (%s)\n", selectedProvider.Description(), model)
	cmd.Println("Note: changing the embedding model invalidates stored block embeddings.")
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo when in is a terminal, falling back to reader.
func readPassword(in io.Reader, reader *bufio.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// maskDSN hides the password of a postgres URL.
func maskDSN(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return "(set)"
	}
	userinfo, host, ok := strings.Cut(rest, "@")
	if !ok {
		return dsn
	}
	user, _, hasPassword := strings.Cut(userinfo, ":")
	if !hasPassword {
		return dsn
	}
	return scheme + "://" + user + ":****@" + host
}

func credentialStatus(token string) string {
	if token == "" {
		return "not configured"
	}
	return "configured (" + maskAPIKey(token) + ")"
}
