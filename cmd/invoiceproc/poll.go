package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/atikulmunna/visual-invoice-processor/internal/service"
)

func pollCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Sweep the document source and process new documents",
		Long: `Poll lists the configured source, claims documents that have not been
stored yet, and runs each one through extraction, validation, and the
ledger. A single invocation performs one sweep; --watch keeps sweeping
on an interval until interrupted.`,
		RunE: runPoll,
	}

	cmd.Flags().Bool("watch", false, "keep polling on an interval until interrupted")
	cmd.Flags().Duration("interval", 2*time.Minute, "sweep interval in watch mode")
	cmd.Flags().Int("workers", 0, "concurrent document workers (overrides config)")
	cmd.Flags().String("worker-id", "", "claim owner identifier (overrides config)")

	_ = viper.BindPFlag("poll.interval", cmd.Flags().Lookup("interval"))
	_ = viper.BindPFlag("poll.workers", cmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("poll.worker_id", cmd.Flags().Lookup("worker-id"))

	return cmd
}

func runPoll(cmd *cobra.Command, _ []string) error {
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

	eng, err := buildEngine(ctx, cfg, store)
	if err != nil {
		return err
	}

	watch, _ := cmd.Flags().GetBool("watch")
	if !watch {
		summary, err := eng.PollOnce(ctx)
		if err != nil {
			return fmt.Errorf("sweep failed: %w", err)
		}
		printSummary(summary)
		return nil
	}

	interval := viper.GetDuration("poll.interval")
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	slog.Info("watching document source", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		summary, err := eng.PollOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("poll loop stopped")
				return nil
			}
			// One bad sweep should not kill the watcher.
			slog.Error("sweep failed", "error", err)
		} else {
			printSummary(summary)
		}

		select {
		case <-ctx.Done():
			slog.Info("poll loop stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func printSummary(s *service.PollSummary) {
	fmt.Printf("Sweep complete in %s: %d discovered, %d claimed, %d stored, %d review, %d dead-lettered, %d skipped\n",
		s.Duration.Round(time.Millisecond), s.Discovered, s.Claimed, s.Stored, s.NeedsReview, s.DeadLetter, s.Skipped)
}
