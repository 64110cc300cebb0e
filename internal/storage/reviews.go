package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/atikulmunna/visual-invoice-processor/internal/model"
)

// AddReview queues a document for human review.
func (s *SQLiteStore) AddReview(ctx context.Context, rec *model.ReviewRecord) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateReview(rec); err != nil {
		return 0, err
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	var codesJSON []byte
	if len(rec.Codes) > 0 {
		var err error
		codesJSON, err = json.Marshal(rec.Codes)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal rule codes: %w", err)
		}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO reviews (
			source_id, content_hash, reason, codes, confidence, ledger_ref, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		rec.Fingerprint.SourceID,
		rec.Fingerprint.ContentHash,
		string(rec.Reason),
		string(codesJSON),
		rec.Confidence,
		rec.LedgerRef,
		rec.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert review: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read review id: %w", err)
	}
	rec.ID = id
	return id, nil
}

// ListReviews returns queued reviews newest first. Limit <= 0 means no limit.
func (s *SQLiteStore) ListReviews(ctx context.Context, limit int) ([]model.ReviewRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT id, source_id, content_hash, reason, codes, confidence, ledger_ref, created_at
		FROM reviews
		ORDER BY created_at DESC, id DESC`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.ReviewRecord
	for rows.Next() {
		var (
			rec       model.ReviewRecord
			reason    string
			codesJSON sql.NullString
			ledgerRef sql.NullString
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.Fingerprint.SourceID,
			&rec.Fingerprint.ContentHash,
			&reason,
			&codesJSON,
			&rec.Confidence,
			&ledgerRef,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}

		rec.Reason = model.RuleCode(reason)
		rec.LedgerRef = ledgerRef.String
		if codesJSON.Valid && codesJSON.String != "" {
			if err := json.Unmarshal([]byte(codesJSON.String), &rec.Codes); err != nil {
				return nil, fmt.Errorf("failed to unmarshal rule codes: %w", err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reviews: %w", err)
	}
	return records, nil
}
