package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/atikulmunna/visual-invoice-processor/internal/storage"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the claim database schema",
		Long: `Initialize or update the claim database schema to the latest version.

Commands migrate automatically on startup, so this is only needed to
prepare a database ahead of time or to verify schema access.`,
		RunE: runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	slog.Info("running migrations", "database", cfg.Storage.Path)

	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to open claim database: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("failed to close storage", "error", closeErr)
		}
	}()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	fmt.Printf("Claim database ready at %s\n", cfg.Storage.Path)
	return nil
}
