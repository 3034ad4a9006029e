// Package cli provides the knoba command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ca-shen98/knoba/internal/core/domain"
	"github.com/ca-shen98/knoba/internal/core/ports/driven"
	"github.com/ca-shen98/knoba/internal/core/ports/driving"
	"github.com/ca-shen98/knoba/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Services holds the driving ports the commands use.
type Services struct {
	Reconciler driving.Reconciler
	Submitter  driving.BatchSubmitter
	Journal    driven.BatchJournal
	Settings   driving.SettingsService

	// ValidateEmbedding checks an embedding configuration by embedding a probe text.
	ValidateEmbedding func(ctx context.Context, settings domain.EmbeddingSettings) error
}

// Options are the global flags passed to a Bootstrap.
type Options struct {
	ConfigDir string
}

// Bootstrap builds the services once flags are parsed. It may return partial
// services together with an error; commands that need a missing service
// report that error. The returned cleanup is always called.
type Bootstrap func(ctx context.Context, opts Options) (*Services, func(), error)

var (
	reconciler       driving.Reconciler
	batchSubmitter   driving.BatchSubmitter
	journal          driven.BatchJournal
	settingsService  driving.SettingsService
	embeddingProbe   func(ctx context.Context, settings domain.EmbeddingSettings) error
	bootstrap        Bootstrap
	bootstrapErr     error
	bootstrapCleanup func()
	verbose, quiet   bool
	configDir        string
	errNotConfigured = errors.New("not configured")
)

var rootCmd = &cobra.Command{
	Use:   "knoba",
	Short: "Keep shared content blocks in sync across documents",
	Long: `knoba deduplicates paragraphs that appear across documents in different
systems into shared content blocks, and propagates edits to every document
that shares a block.

Locations are written as sourceType_rawId, for example:
  fs_/home/me/notes/intro.md
  notion_1c9a0e4b5d7f4a2b8e6f0a1b2c3d4e5f
  gdocs_1AbCdEfGhIjKlMnOpQrStUvWxYz
  github_owner/repo/docs/README.md`,
	SilenceUsage:      true,
	PersistentPreRunE: runBootstrap,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress warnings")
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "config directory (default ~/.knoba)")
}

// SetServices injects services directly, bypassing any bootstrap.
func SetServices(s *Services) {
	if s == nil {
		s = &Services{}
	}
	reconciler = s.Reconciler
	batchSubmitter = s.Submitter
	journal = s.Journal
	settingsService = s.Settings
	embeddingProbe = s.ValidateEmbedding
}

// Execute runs the root command. boot builds the services after flag parsing.
func Execute(ctx context.Context, boot Bootstrap) error {
	bootstrap = boot
	defer func() {
		if bootstrapCleanup != nil {
			bootstrapCleanup()
			bootstrapCleanup = nil
		}
	}()
	return rootCmd.ExecuteContext(ctx)
}

func runBootstrap(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	logger.SetQuiet(quiet)

	if bootstrap == nil {
		return nil
	}
	boot := bootstrap
	bootstrap = nil

	services, cleanup, err := boot(cmd.Context(), Options{ConfigDir: configDir})
	bootstrapCleanup = cleanup
	bootstrapErr = err
	if services != nil {
		SetServices(services)
	}
	if err != nil {
		logger.Debug("Bootstrap incomplete: %v", err)
	}
	return nil
}

// unavailable describes why a service is missing.
func unavailable(name string) error {
	if bootstrapErr != nil {
		return fmt.Errorf("%s unavailable: %w", name, bootstrapErr)
	}
	return fmt.Errorf("%s %w", name, errNotConfigured)
}

func requireReconciler() error {
	if reconciler == nil {
		return unavailable("reconciler")
	}
	return nil
}
