package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/atikulmunna/visual-invoice-processor/internal/model"
	"github.com/atikulmunna/visual-invoice-processor/internal/storage"
)

func failuresCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "failures",
		Short: "List dead-lettered documents and the review queue",
		Long: `Failures lists the dead letter queue: documents that exhausted their
retries, with the stage and error that sank them. Use --reviews to list
documents parked for human review instead.`,
		RunE: runFailures,
	}

	cmd.Flags().String("status", "pending", "filter by replay status (all, pending, replayed, abandoned)")
	cmd.Flags().Int("limit", 50, "maximum entries to list (0 = all)")
	cmd.Flags().Int("offset", 0, "entries to skip, for paging")
	cmd.Flags().Bool("reviews", false, "list the review queue instead of dead letters")

	return cmd
}

func runFailures(cmd *cobra.Command, _ []string) error {
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

	limit, _ := cmd.Flags().GetInt("limit")

	if reviews, _ := cmd.Flags().GetBool("reviews"); reviews {
		return listReviews(cmd, store, limit)
	}

	statusFlag, _ := cmd.Flags().GetString("status")
	var status model.ReplayStatus
	if !strings.EqualFold(statusFlag, "all") {
		status = model.ReplayStatus(strings.ToUpper(statusFlag))
		switch status {
		case model.ReplayPending, model.ReplayReplayed, model.ReplayAbandoned:
		default:
			return fmt.Errorf("invalid replay status: %s", statusFlag)
		}
	}

	offset, _ := cmd.Flags().GetInt("offset")
	entries, err := store.ListDeadLetters(ctx, status, limit, offset)
	if err != nil {
		return fmt.Errorf("failed to list dead letters: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("No dead letter entries.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSOURCE\tSTAGE\tKIND\tRETRIES\tSTATUS\tCAPTURED\tERROR")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			e.ID,
			e.Fingerprint.SourceID,
			e.Stage,
			e.Kind,
			e.RetryCount,
			e.ReplayStatus,
			e.CreatedAt.Format("2006-01-02 15:04"),
			truncate(e.Context.Error, 60),
		)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write table: %w", err)
	}

	fmt.Printf("\n%d entries\n", len(entries))
	return nil
}

func listReviews(cmd *cobra.Command, store *storage.SQLiteStore, limit int) error {
	records, err := store.ListReviews(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("failed to list reviews: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("Review queue is empty.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSOURCE\tREASON\tCODES\tCONFIDENCE\tLEDGER REF\tQUEUED")
	for _, r := range records {
		codes := make([]string, 0, len(r.Codes))
		for _, c := range r.Codes {
			codes = append(codes, string(c))
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.2f\t%s\t%s\n",
			r.ID,
			r.Fingerprint.SourceID,
			r.Reason,
			strings.Join(codes, ","),
			r.Confidence,
			r.LedgerRef,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write table: %w", err)
	}

	fmt.Printf("\n%d queued for review\n", len(records))
	return nil
}

// truncate keeps the first line of s, capped at n runes.
func truncate(s string, n int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
