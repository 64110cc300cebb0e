// Package storage provides the data persistence layer for the pipeline.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atikulmunna/visual-invoice-processor/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidFingerprint = errors.New("invalid fingerprint")
	ErrInvalidEntry       = errors.New("invalid dead letter entry")
	ErrInvalidAudit       = errors.New("invalid audit entry")
	ErrInvalidReview      = errors.New("invalid review record")
	ErrInvalidStatus      = errors.New("invalid replay status")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateFingerprint ensures both halves of a fingerprint are present.
func validateFingerprint(fp model.Fingerprint) error {
	if fp.SourceID == "" {
		return fmt.Errorf("%w: missing source id", ErrInvalidFingerprint)
	}
	if fp.ContentHash == "" {
		return fmt.Errorf("%w: missing content hash", ErrInvalidFingerprint)
	}
	return nil
}

// validateDeadLetter ensures an entry has everything the replay path needs.
func validateDeadLetter(entry *model.DeadLetterEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry", ErrNilParameter)
	}
	if err := validateFingerprint(entry.Fingerprint); err != nil {
		return err
	}
	if entry.Stage == "" {
		return fmt.Errorf("%w: missing stage", ErrInvalidEntry)
	}
	if entry.Kind == "" {
		return fmt.Errorf("%w: missing failure kind", ErrInvalidEntry)
	}
	return nil
}

// validateAudit ensures an audit entry records a real transition.
func validateAudit(entry *model.AuditEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry", ErrNilParameter)
	}
	if err := validateFingerprint(entry.Fingerprint); err != nil {
		return err
	}
	if entry.ToState == "" {
		return fmt.Errorf("%w: missing target state", ErrInvalidAudit)
	}
	if entry.Actor == "" {
		return fmt.Errorf("%w: missing actor", ErrInvalidAudit)
	}
	return nil
}

// validateReview ensures a review record names its reason.
func validateReview(rec *model.ReviewRecord) error {
	if rec == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if err := validateFingerprint(rec.Fingerprint); err != nil {
		return err
	}
	if rec.Reason == "" {
		return fmt.Errorf("%w: missing reason", ErrInvalidReview)
	}
	return nil
}

// validateReplayStatus rejects statuses outside the known set.
func validateReplayStatus(status model.ReplayStatus) error {
	switch status {
	case model.ReplayPending, model.ReplayReplayed, model.ReplayAbandoned:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
}
