package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/atikulmunna/visual-invoice-processor/internal/model"
)

// RecordDiscovery upserts a sighting of a file in a source backend. First
// sight sets first_seen; later sweeps only refresh last_seen and metadata.
func (s *SQLiteStore) RecordDiscovery(ctx context.Context, ref model.FileRef, fp model.Fingerprint, seen time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateFingerprint(fp); err != nil {
		return err
	}
	if err := validateString(ref.Name, "ref.Name"); err != nil {
		return err
	}

	if seen.IsZero() {
		seen = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO discoveries (source_id, content_hash, name, mime_type, size, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id, content_hash) DO UPDATE SET
			name = excluded.name,
			mime_type = excluded.mime_type,
			size = excluded.size,
			last_seen = excluded.last_seen
	`, fp.SourceID, fp.ContentHash, ref.Name, ref.MimeType, ref.Size, seen, seen)
	if err != nil {
		return fmt.Errorf("failed to record discovery: %w", err)
	}
	return nil
}

// Backlog lists discovered documents that no worker has ever claimed,
// oldest sighting first. Limit <= 0 means no limit.
func (s *SQLiteStore) Backlog(ctx context.Context, limit int) ([]model.Discovery, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT d.source_id, d.content_hash, d.name, d.mime_type, d.size, d.first_seen, d.last_seen
		FROM discoveries d
		LEFT JOIN claims c
			ON d.source_id = c.source_id AND d.content_hash = c.content_hash
		WHERE c.id IS NULL
		ORDER BY d.first_seen`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query backlog: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var backlog []model.Discovery
	for rows.Next() {
		var d model.Discovery
		if err := rows.Scan(
			&d.Fingerprint.SourceID,
			&d.Fingerprint.ContentHash,
			&d.Ref.Name,
			&d.Ref.MimeType,
			&d.Ref.Size,
			&d.FirstSeen,
			&d.LastSeen,
		); err != nil {
			return nil, fmt.Errorf("failed to scan discovery: %w", err)
		}
		d.Ref.SourceID = d.Fingerprint.SourceID
		backlog = append(backlog, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate backlog: %w", err)
	}
	return backlog, nil
}
