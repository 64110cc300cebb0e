package main

import (
	"context"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/atikulmunna/visual-invoice-processor/internal/common"
	"github.com/atikulmunna/visual-invoice-processor/internal/config"
	"github.com/atikulmunna/visual-invoice-processor/internal/engine"
	"github.com/atikulmunna/visual-invoice-processor/internal/extract"
	"github.com/atikulmunna/visual-invoice-processor/internal/ingest"
	"github.com/atikulmunna/visual-invoice-processor/internal/ledger"
	"github.com/atikulmunna/visual-invoice-processor/internal/storage"
	"github.com/atikulmunna/visual-invoice-processor/internal/validate"
)

// loadConfig reads the merged viper configuration into a validated Config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, common.NewUserError(
			"failed to load configuration, check your config file and INVOICE_ environment variables",
			err,
		)
	}
	return cfg, nil
}

// initStorage opens the claim database and applies any pending migrations.
// Every command goes through here so a fresh machine works without a
// separate setup step.
func initStorage(ctx context.Context, cfg *config.Config) (*storage.SQLiteStore, error) {
	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return nil, common.NewUserError("failed to open claim database at "+cfg.Storage.Path, err)
	}

	if err := store.Migrate(ctx); err != nil {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("failed to close storage after migration failure", "error", closeErr)
		}
		return nil, common.NewUserError("failed to migrate claim database", err)
	}

	return store, nil
}

// buildEngine wires the configured source, extractor, ledger, and scorer
// into a processing engine.
func buildEngine(ctx context.Context, cfg *config.Config, store *storage.SQLiteStore) (*engine.Engine, error) {
	ingestor, err := ingest.New(ctx, cfg.Ingestion)
	if err != nil {
		return nil, common.NewUserError("failed to initialize document source", err)
	}

	extractor, err := extract.New(ctx, cfg.Extraction)
	if err != nil {
		return nil, common.NewUserError("failed to initialize extractor, check your provider API keys", err)
	}

	led, err := ledger.New(ctx, cfg.Ledger)
	if err != nil {
		return nil, common.NewUserError("failed to initialize ledger backend", err)
	}

	scorer := validate.NewScorer(cfg.Validation)

	return engine.New(store, ingestor, extractor, led, scorer, engine.Config{
		Retry:    cfg.Retry,
		Workers:  cfg.Poll.Workers,
		WorkerID: cfg.Poll.WorkerID,
	}), nil
}
