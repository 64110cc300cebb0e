package model

import "time"

// ReplayStatus tracks what has happened to a dead letter entry since capture.
type ReplayStatus string

// Replay statuses.
const (
	ReplayPending   ReplayStatus = "PENDING"
	ReplayReplayed  ReplayStatus = "REPLAYED"
	ReplayAbandoned ReplayStatus = "ABANDONED"
)

// FailureKind groups failures by the class of error that produced them.
type FailureKind string

// Failure kinds recorded on dead letter entries.
const (
	FailureTransientIO       FailureKind = "TRANSIENT_IO"
	FailureExtractionParse   FailureKind = "EXTRACTION_PARSE"
	FailureValidationRule    FailureKind = "VALIDATION_RULE"
	FailureStorageWrite      FailureKind = "STORAGE_WRITE"
	FailureDuplicateClaim    FailureKind = "DUPLICATE_CLAIM"
	FailureInvalidTransition FailureKind = "INVALID_TRANSITION"
	FailureUnknown           FailureKind = "UNKNOWN"
)

// DeadLetterContext preserves everything needed to resume a replayed document
// from its failing stage instead of starting over.
type DeadLetterContext struct {
	Ref         FileRef         `json:"ref"`
	ResumeState State           `json:"resume_state"`
	Payload     *InvoicePayload `json:"payload,omitempty"`
	Provider    string          `json:"provider,omitempty"`
	Error       string          `json:"error"`
}

// DeadLetterEntry is a document the pipeline gave up on after exhausting
// retries. Entries stay queryable until replayed or abandoned.
type DeadLetterEntry struct {
	ID           int64             `json:"id"`
	Fingerprint  Fingerprint       `json:"fingerprint"`
	Stage        Stage             `json:"stage"`
	Kind         FailureKind       `json:"kind"`
	Context      DeadLetterContext `json:"context"`
	RetryCount   int               `json:"retry_count"`
	CreatedAt    time.Time         `json:"created_at"`
	ReplayStatus ReplayStatus      `json:"replay_status"`
	ReplayedAt   *time.Time        `json:"replayed_at,omitempty"`
}
