package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/atikulmunna/visual-invoice-processor/internal/monitor"
)

func monitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Serve pipeline health, stats, and metrics over HTTP",
		Long: `Monitor runs a read-only HTTP server against the claim database.

Endpoints:
  /health    claim store reachability
  /stats     document counts per state, dead letter and review totals
  /failures  paged dead letter entries
  /backlog   discovered documents not yet stored
  /metrics   Prometheus metrics`,
		RunE: runMonitor,
	}

	cmd.Flags().String("addr", "", "listen address (overrides config)")
	_ = viper.BindPFlag("monitor.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := initStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("failed to close storage", "error", closeErr)
		}
	}()

	srv := monitor.NewServer(store, cfg.Monitor.Addr)

	errChan := make(chan error, 1)
	go func() {
		slog.Info("monitoring server listening", "addr", cfg.Monitor.Addr)
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("monitoring server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop monitoring server: %w", err)
	}
	slog.Info("monitoring server stopped")
	return nil
}
