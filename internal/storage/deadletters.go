package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/atikulmunna/visual-invoice-processor/internal/common"
	"github.com/atikulmunna/visual-invoice-processor/internal/model"
)

// AddDeadLetter records a document the pipeline exhausted its retries on.
func (s *SQLiteStore) AddDeadLetter(ctx context.Context, entry *model.DeadLetterEntry) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateDeadLetter(entry); err != nil {
		return 0, err
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.ReplayStatus == "" {
		entry.ReplayStatus = model.ReplayPending
	}

	contextJSON, err := json.Marshal(entry.Context)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal dead letter context: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO dead_letters (
			source_id, content_hash, stage, kind, context,
			retry_count, created_at, replay_status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.Fingerprint.SourceID,
		entry.Fingerprint.ContentHash,
		string(entry.Stage),
		string(entry.Kind),
		string(contextJSON),
		entry.RetryCount,
		entry.CreatedAt,
		string(entry.ReplayStatus),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert dead letter: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read dead letter id: %w", err)
	}
	entry.ID = id
	return id, nil
}

// GetDeadLetter fetches a single entry by id.
func (s *SQLiteStore) GetDeadLetter(ctx context.Context, id int64) (*model.DeadLetterEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, source_id, content_hash, stage, kind, context,
		       retry_count, created_at, replay_status, replayed_at
		FROM dead_letters
		WHERE id = ?
	`, id)

	entry, err := scanDeadLetter(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: dead letter %d", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dead letter: %w", err)
	}
	return entry, nil
}

// ListDeadLetters returns entries newest first. An empty status matches all
// entries; limit <= 0 means no limit; offset skips that many entries for
// paging.
func (s *SQLiteStore) ListDeadLetters(ctx context.Context, status model.ReplayStatus, limit, offset int) ([]model.DeadLetterEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if status != "" {
		if err := validateReplayStatus(status); err != nil {
			return nil, err
		}
	}

	query := `
		SELECT id, source_id, content_hash, stage, kind, context,
		       retry_count, created_at, replay_status, replayed_at
		FROM dead_letters`
	args := make([]any, 0, 3)
	if status != "" {
		query += ` WHERE replay_status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	} else if offset > 0 {
		// SQLite requires a LIMIT clause before OFFSET; -1 means unbounded.
		query += ` LIMIT -1`
	}
	if offset > 0 {
		query += ` OFFSET ?`
		args = append(args, offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.DeadLetterEntry
	for rows.Next() {
		entry, scanErr := scanDeadLetter(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan dead letter: %w", scanErr)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dead letters: %w", err)
	}
	return entries, nil
}

// ResolveDeadLetter marks an entry replayed or abandoned. REPLAYED is final;
// the guard on replay_status makes resolution atomic, so concurrent replays
// of the same entry see not found and skip it. Abandoned entries stay
// resolvable, which lets a later replay of the abandoned queue close them out.
func (s *SQLiteStore) ResolveDeadLetter(ctx context.Context, id int64, status model.ReplayStatus) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateReplayStatus(status); err != nil {
		return err
	}
	if status == model.ReplayPending {
		return fmt.Errorf("%w: cannot resolve back to pending", ErrInvalidStatus)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE dead_letters
		SET replay_status = ?, replayed_at = ?
		WHERE id = ? AND replay_status != ?
	`, string(status), time.Now().UTC(), id, string(model.ReplayReplayed))
	if err != nil {
		return fmt.Errorf("failed to resolve dead letter: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read resolve result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: unresolved dead letter %d", common.ErrNotFound, id)
	}
	return nil
}

// rowScanner covers both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeadLetter(row rowScanner) (*model.DeadLetterEntry, error) {
	var (
		entry       model.DeadLetterEntry
		stage       string
		kind        string
		contextJSON string
		status      string
		replayedAt  sql.NullTime
	)
	err := row.Scan(
		&entry.ID,
		&entry.Fingerprint.SourceID,
		&entry.Fingerprint.ContentHash,
		&stage,
		&kind,
		&contextJSON,
		&entry.RetryCount,
		&entry.CreatedAt,
		&status,
		&replayedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.Stage = model.Stage(stage)
	entry.Kind = model.FailureKind(kind)
	entry.ReplayStatus = model.ReplayStatus(status)
	if replayedAt.Valid {
		entry.ReplayedAt = &replayedAt.Time
	}
	if err := json.Unmarshal([]byte(contextJSON), &entry.Context); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dead letter context: %w", err)
	}
	return &entry, nil
}
