package storage

import (
	"context"
	"fmt"

	"github.com/atikulmunna/visual-invoice-processor/internal/model"
)

// Stats aggregates pipeline counters for the monitoring endpoints.
func (s *SQLiteStore) Stats(ctx context.Context) (*model.PipelineStats, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	stats := &model.PipelineStats{
		Outcomes: make(map[model.ClaimOutcome]int64),
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT outcome, COUNT(*)
		FROM claims
		WHERE outcome IS NOT NULL
		GROUP BY outcome
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count outcomes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			outcome string
			count   int64
		)
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, fmt.Errorf("failed to scan outcome count: %w", err)
		}
		stats.Outcomes[model.ClaimOutcome(outcome)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outcome counts: %w", err)
	}

	counts := []struct {
		dest  *int64
		query string
		args  []any
	}{
		{&stats.ActiveClaims, `SELECT COUNT(*) FROM claims WHERE released_at IS NULL`, nil},
		{&stats.DeadLetterPending, `SELECT COUNT(*) FROM dead_letters WHERE replay_status = ?`, []any{string(model.ReplayPending)}},
		{&stats.DeadLetterTotal, `SELECT COUNT(*) FROM dead_letters`, nil},
		{&stats.ReviewOpen, `SELECT COUNT(*) FROM reviews`, nil},
		{&stats.Discovered, `SELECT COUNT(*) FROM discoveries`, nil},
		{&stats.Backlog, `
			SELECT COUNT(*)
			FROM discoveries d
			LEFT JOIN claims c
				ON d.source_id = c.source_id AND d.content_hash = c.content_hash
			WHERE c.id IS NULL`, nil},
	}

	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query, c.args...).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to aggregate stats: %w", err)
		}
	}

	version, err := s.SchemaVersion(ctx)
	if err != nil {
		return nil, err
	}
	stats.SchemaVersion = version

	return stats, nil
}
