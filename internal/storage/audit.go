package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/atikulmunna/visual-invoice-processor/internal/model"
)

// AppendAudit records one state transition. The sequence number is assigned
// inside the insert so the trail stays monotonic per fingerprint even when
// entries arrive from different components.
func (s *SQLiteStore) AppendAudit(ctx context.Context, entry *model.AuditEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAudit(entry); err != nil {
		return err
	}

	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (source_id, content_hash, seq, from_state, to_state, actor, note, at)
		VALUES (
			?, ?,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM audit_log WHERE source_id = ? AND content_hash = ?),
			?, ?, ?, ?, ?
		)
	`,
		entry.Fingerprint.SourceID,
		entry.Fingerprint.ContentHash,
		entry.Fingerprint.SourceID,
		entry.Fingerprint.ContentHash,
		string(entry.FromState),
		string(entry.ToState),
		string(entry.Actor),
		entry.Note,
		entry.At,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read audit id: %w", err)
	}
	entry.ID = id
	return nil
}

// AuditTrail returns every transition for a fingerprint in sequence order.
func (s *SQLiteStore) AuditTrail(ctx context.Context, fp model.Fingerprint) ([]model.AuditEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateFingerprint(fp); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_id, content_hash, seq, from_state, to_state, actor, note, at
		FROM audit_log
		WHERE source_id = ? AND content_hash = ?
		ORDER BY seq
	`, fp.SourceID, fp.ContentHash)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit trail: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.AuditEntry
	for rows.Next() {
		var (
			entry     model.AuditEntry
			fromState string
			toState   string
			actor     string
			note      sql.NullString
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.Fingerprint.SourceID,
			&entry.Fingerprint.ContentHash,
			&entry.Seq,
			&fromState,
			&toState,
			&actor,
			&note,
			&entry.At,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		entry.FromState = model.State(fromState)
		entry.ToState = model.State(toState)
		entry.Actor = model.Actor(actor)
		entry.Note = note.String
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit trail: %w", err)
	}
	return entries, nil
}
