// Command knoba keeps shared content blocks in sync across documents.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ca-shen98/knoba/internal/adapters/driven/config/file"
	"github.com/ca-shen98/knoba/internal/adapters/driven/factory"
	"github.com/ca-shen98/knoba/internal/adapters/driving/cli"
	"github.com/ca-shen98/knoba/internal/core/domain"
	"github.com/ca-shen98/knoba/internal/core/services"
	"github.com/ca-shen98/knoba/internal/logger"
)

func main() {
	// A missing .env file is normal.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "knoba: loading .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx, bootstrap); err != nil {
		stop()
		os.Exit(1)
	}
}

// bootstrap wires the adapters selected by settings into the services.
// Settings are returned even when the engine cannot start, so the settings
// commands can repair the configuration.
func bootstrap(ctx context.Context, opts cli.Options) (*cli.Services, func(), error) {
	noop := func() {}

	configStore, err := file.NewConfigStore(opts.ConfigDir)
	if err != nil {
		return nil, noop, fmt.Errorf("config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore)
	svc := &cli.Services{
		Settings:          settingsService,
		ValidateEmbedding: validateEmbedding,
	}

	settings, err := settingsService.Get()
	if err != nil {
		return svc, noop, err
	}

	logger.Section("Initialising adapters")
	adapters, err := factory.Init(ctx, *settings)
	if err != nil {
		return svc, noop, err
	}
	for _, w := range adapters.Warnings {
		logger.Debug("%s", w)
	}

	router := services.NewContentRouter()
	for _, src := range adapters.Sources {
		router.Register(src)
	}
	logger.Debug("Registered source types: %v", router.SourceTypes())

	reconciler, err := services.NewReconciler(
		adapters.Index, adapters.Tracker, adapters.Embedder, router, settings.Matching)
	if err != nil {
		_ = adapters.Close()
		return svc, noop, err
	}

	queue, err := services.NewBatchQueue(reconciler, settings.Reconciler.Workers)
	if err != nil {
		_ = adapters.Close()
		return svc, noop, err
	}
	queue.WithJournal(adapters.Journal).Start(ctx)

	svc.Reconciler = reconciler
	svc.Submitter = queue
	svc.Journal = adapters.Journal

	cleanup := func() {
		queue.Close()
		if err := adapters.Close(); err != nil {
			logger.Warn("Closing adapters: %v", err)
		}
	}
	return svc, cleanup, nil
}

func validateEmbedding(ctx context.Context, settings domain.EmbeddingSettings) error {
	p, err := factory.CreateEmbeddingProvider(settings)
	if err != nil {
		return err
	}
	return factory.ValidateEmbeddingProvider(ctx, p)
}
