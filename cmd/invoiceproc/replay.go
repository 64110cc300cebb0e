package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/atikulmunna/visual-invoice-processor/internal/model"
	"github.com/atikulmunna/visual-invoice-processor/internal/service"
)

func replayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay dead-lettered documents through the pipeline",
		Long: `Replay re-runs documents from the dead letter queue. Each entry is
re-fetched from the source, verified against its original fingerprint,
and walked through the full pipeline again. Entries whose document was
stored in the meantime are resolved without reprocessing.

By default every pending entry is replayed; use --id to retry a single
entry after fixing its underlying problem, or --id with --abandon to
close an entry that will never be fixed.`,
		RunE: runReplay,
	}

	cmd.Flags().Int64("id", 0, "replay a single dead letter entry by id")
	cmd.Flags().String("status", string(model.ReplayPending), "entry status to replay (PENDING, ABANDONED)")
	cmd.Flags().Int("limit", 0, "maximum entries to replay (0 = all)")
	cmd.Flags().Bool("abandon", false, "mark the entry given by --id abandoned instead of replaying it")

	return cmd
}

func runReplay(cmd *cobra.Command, _ []string) error {
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

	id, _ := cmd.Flags().GetInt64("id")

	if abandon, _ := cmd.Flags().GetBool("abandon"); abandon {
		if id <= 0 {
			return fmt.Errorf("--abandon requires --id")
		}
		if err := eng.Abandon(ctx, id); err != nil {
			return err
		}
		fmt.Printf("Dead letter %d abandoned.\n", id)
		return nil
	}

	if id > 0 {
		summary, err := eng.ReplayOne(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to replay entry %d: %w", id, err)
		}
		printReplaySummary(summary)
		return nil
	}

	statusFlag, _ := cmd.Flags().GetString("status")
	status := model.ReplayStatus(strings.ToUpper(statusFlag))
	switch status {
	case model.ReplayPending, model.ReplayAbandoned:
	default:
		return fmt.Errorf("invalid replay status: %s", statusFlag)
	}

	limit, _ := cmd.Flags().GetInt("limit")
	entries, err := store.ListDeadLetters(ctx, status, limit, 0)
	if err != nil {
		return fmt.Errorf("failed to list dead letters: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("No dead letters to replay.")
		return nil
	}

	bar := progressbar.NewOptions(len(entries),
		progressbar.OptionSetWriter(os.Stdout),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Replaying dead letters"),
		progressbar.OptionOnCompletion(func() { fmt.Println() }),
	)

	total := &service.ReplaySummary{}
	for _, entry := range entries {
		if ctx.Err() != nil {
			slog.Info("replay interrupted", "remaining", len(entries)-total.Queued-total.SkippedProcessed-total.SkippedInvalid)
			break
		}

		one, err := eng.ReplayOne(ctx, entry.ID)
		if err != nil {
			slog.Error("failed to replay entry", "id", entry.ID, "error", err)
			if barErr := bar.Add(1); barErr != nil {
				slog.Warn("failed to update progress bar", "error", barErr)
			}
			continue
		}

		total.Queued += one.Queued
		total.SkippedProcessed += one.SkippedProcessed
		total.SkippedInvalid += one.SkippedInvalid

		if barErr := bar.Add(1); barErr != nil {
			slog.Warn("failed to update progress bar", "error", barErr)
		}
	}

	printReplaySummary(total)
	return nil
}

func printReplaySummary(s *service.ReplaySummary) {
	fmt.Printf("Replay complete: %d queued, %d already stored, %d invalid\n",
		s.Queued, s.SkippedProcessed, s.SkippedInvalid)
}
