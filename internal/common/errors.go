// Package common provides shared utilities and types used across the pipeline.
package common

import (
	"context"
	"errors"
	"fmt"

	"github.com/atikulmunna/visual-invoice-processor/internal/model"
)

// Common pipeline errors.
var (
	// Claim store errors.
	ErrAlreadyClaimed   = errors.New("document already claimed")
	ErrAlreadyProcessed = errors.New("document already processed")

	// Database errors.
	ErrNotFound          = errors.New("not found")
	ErrDuplicateEntry    = errors.New("duplicate entry")
	ErrDatabaseCorrupted = errors.New("database corrupted")

	// Extraction errors.
	ErrExtractionParse = errors.New("extraction output unparseable")
	ErrNoProviders     = errors.New("no extraction providers available")

	// Validation errors.
	ErrValidationFailed = errors.New("validation rules violated")

	// Ledger errors.
	ErrLedgerWrite = errors.New("ledger write failed")

	// State machine errors.
	ErrInvalidTransition = errors.New("invalid state transition")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// PipelineError tags a failure with the stage that produced it and the
// failure kind recorded on dead letter entries.
type PipelineError struct {
	Err   error
	Stage model.Stage
	Kind  model.FailureKind
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// StageFailure wraps err with stage provenance, classifying its kind.
func StageFailure(stage model.Stage, err error) *PipelineError {
	return &PipelineError{
		Err:   err,
		Stage: stage,
		Kind:  FailureKindOf(err),
	}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	// Parse and validation failures never improve on retry
	if errors.Is(err, ErrExtractionParse) ||
		errors.Is(err, ErrValidationFailed) ||
		errors.Is(err, ErrInvalidTransition) {
		return false
	}

	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Check for retryable error type
	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}

// FailureKindOf maps an error to the failure kind recorded on dead letter
// entries and metrics labels.
func FailureKindOf(err error) model.FailureKind {
	var pipelineErr *PipelineError
	if errors.As(err, &pipelineErr) {
		return pipelineErr.Kind
	}

	switch {
	case errors.Is(err, ErrExtractionParse):
		return model.FailureExtractionParse
	case errors.Is(err, ErrValidationFailed):
		return model.FailureValidationRule
	case errors.Is(err, ErrLedgerWrite):
		return model.FailureStorageWrite
	case errors.Is(err, ErrInvalidTransition):
		return model.FailureInvalidTransition
	case errors.Is(err, ErrAlreadyClaimed), errors.Is(err, ErrAlreadyProcessed):
		return model.FailureDuplicateClaim
	case IsRetryable(err):
		return model.FailureTransientIO
	}
	return model.FailureUnknown
}
