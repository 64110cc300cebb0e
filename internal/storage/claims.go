package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/atikulmunna/visual-invoice-processor/internal/common"
	"github.com/atikulmunna/visual-invoice-processor/internal/model"

	"github.com/google/uuid"
)

// TryClaim attempts to take exclusive ownership of a document fingerprint.
// The insert and the conflict probe run in one immediate transaction, so two
// workers racing on the same document cannot both win.
func (s *SQLiteStore) TryClaim(ctx context.Context, fp model.Fingerprint, workerID string) (*model.ClaimResult, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateFingerprint(fp); err != nil {
		return nil, err
	}
	if err := validateString(workerID, "workerID"); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	claim := &model.Claim{
		ID:          uuid.New().String(),
		Fingerprint: fp,
		WorkerID:    workerID,
		ClaimedAt:   time.Now().UTC(),
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO claims (id, source_id, content_hash, worker_id, claimed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(source_id, content_hash) DO NOTHING
	`, claim.ID, fp.SourceID, fp.ContentHash, workerID, claim.ClaimedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert claim: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read insert result: %w", err)
	}

	if rows == 1 {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit claim: %w", err)
		}
		return &model.ClaimResult{Status: model.ClaimGranted, Claim: claim}, nil
	}

	// Lost the insert: inspect the existing row to decide what happened.
	var (
		existingID string
		owner      string
		claimedAt  time.Time
		releasedAt sql.NullTime
		outcome    sql.NullString
	)
	err = tx.QueryRowContext(ctx, `
		SELECT id, worker_id, claimed_at, released_at, outcome
		FROM claims
		WHERE source_id = ? AND content_hash = ?
	`, fp.SourceID, fp.ContentHash).Scan(&existingID, &owner, &claimedAt, &releasedAt, &outcome)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect existing claim: %w", err)
	}

	switch {
	case !releasedAt.Valid:
		// Another worker still holds the claim.
		return &model.ClaimResult{Status: model.ClaimHeld, Owner: owner}, nil

	case outcome.String == string(model.OutcomeStored):
		return &model.ClaimResult{Status: model.ClaimProcessed, Owner: owner}, nil
	}

	// Released with a non-stored outcome: the document is reclaimable. Reuse
	// the row so the fingerprint keeps a single claim record.
	claim.ID = existingID
	_, err = tx.ExecContext(ctx, `
		UPDATE claims
		SET worker_id = ?, claimed_at = ?, released_at = NULL, outcome = NULL
		WHERE id = ?
	`, workerID, claim.ClaimedAt, existingID)
	if err != nil {
		return nil, fmt.Errorf("failed to reclaim: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reclaim: %w", err)
	}
	return &model.ClaimResult{Status: model.ClaimGranted, Claim: claim}, nil
}

// Release finishes a claim with its outcome. Releasing an already released
// claim is a no-op: the first outcome stands. Releasing an unknown claim id
// is an error.
func (s *SQLiteStore) Release(ctx context.Context, claimID string, outcome model.ClaimOutcome) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(claimID, "claimID"); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE claims
		SET released_at = ?, outcome = ?
		WHERE id = ? AND released_at IS NULL
	`, time.Now().UTC(), string(outcome), claimID)
	if err != nil {
		return fmt.Errorf("failed to release claim: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read release result: %w", err)
	}
	if rows == 0 {
		var exists bool
		err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM claims WHERE id = ?)`, claimID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check claim: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: claim %s", common.ErrNotFound, claimID)
		}
		// Already released; keep the recorded outcome.
	}
	return nil
}

// IsProcessed reports whether the fingerprint already reached a stored state.
func (s *SQLiteStore) IsProcessed(ctx context.Context, fp model.Fingerprint) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateFingerprint(fp); err != nil {
		return false, err
	}

	var processed bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM claims
			WHERE source_id = ? AND content_hash = ? AND outcome = ?
		)
	`, fp.SourceID, fp.ContentHash, string(model.OutcomeStored)).Scan(&processed)
	if err != nil {
		return false, fmt.Errorf("failed to check processed state: %w", err)
	}
	return processed, nil
}

// GetClaim looks up a claim by id.
func (s *SQLiteStore) GetClaim(ctx context.Context, claimID string) (*model.Claim, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(claimID, "claimID"); err != nil {
		return nil, err
	}

	var (
		claim      model.Claim
		releasedAt sql.NullTime
		outcome    sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, source_id, content_hash, worker_id, claimed_at, released_at, outcome
		FROM claims
		WHERE id = ?
	`, claimID).Scan(
		&claim.ID,
		&claim.Fingerprint.SourceID,
		&claim.Fingerprint.ContentHash,
		&claim.WorkerID,
		&claim.ClaimedAt,
		&releasedAt,
		&outcome,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: claim %s", common.ErrNotFound, claimID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}

	if releasedAt.Valid {
		claim.ReleasedAt = &releasedAt.Time
	}
	claim.Outcome = model.ClaimOutcome(outcome.String)
	return &claim, nil
}
