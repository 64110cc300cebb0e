// Package service defines the interfaces for all pipeline components.
package service

import (
	"context"
	"time"

	"github.com/atikulmunna/visual-invoice-processor/internal/model"
)

// Ingestor lists and fetches documents from a source backend such as a Drive
// folder or an object store bucket.
type Ingestor interface {
	// List returns every unprocessed document visible in the source.
	List(ctx context.Context) ([]model.FileRef, error)
	// Fetch downloads the raw bytes for a document.
	Fetch(ctx context.Context, ref model.FileRef) ([]byte, error)
	// Archive moves a successfully stored document out of the inbox.
	Archive(ctx context.Context, ref model.FileRef) error
	// MoveToReview relocates a document flagged for human review.
	MoveToReview(ctx context.Context, ref model.FileRef) error
	// Name identifies the backend in logs and audit rows.
	Name() string
}

// Extractor turns document bytes into a structured invoice payload.
type Extractor interface {
	Extract(ctx context.Context, ref model.FileRef, data []byte) (*ExtractionResult, error)
	Name() string
}

// ExtractionResult carries the parsed payload plus provenance for auditing.
type ExtractionResult struct {
	Payload   *model.InvoicePayload
	Provider  string
	Corrected bool
}

// Ledger is the downstream system of record for extracted invoices.
type Ledger interface {
	// Append writes a validated record and returns a backend row reference.
	Append(ctx context.Context, fp model.Fingerprint, payload *model.InvoicePayload) (string, error)
	// MarkForReview places the record in the backend's review area instead of
	// the main ledger and returns its row reference.
	MarkForReview(ctx context.Context, fp model.Fingerprint, payload *model.InvoicePayload, reason model.RuleCode) (string, error)
	Name() string
}

// ClaimStore hands out exclusive processing claims per document fingerprint.
type ClaimStore interface {
	TryClaim(ctx context.Context, fp model.Fingerprint, workerID string) (*model.ClaimResult, error)
	Release(ctx context.Context, claimID string, outcome model.ClaimOutcome) error
	IsProcessed(ctx context.Context, fp model.Fingerprint) (bool, error)
}

// DeadLetterStore persists documents the pipeline gave up on.
type DeadLetterStore interface {
	AddDeadLetter(ctx context.Context, entry *model.DeadLetterEntry) (int64, error)
	GetDeadLetter(ctx context.Context, id int64) (*model.DeadLetterEntry, error)
	ListDeadLetters(ctx context.Context, status model.ReplayStatus, limit, offset int) ([]model.DeadLetterEntry, error)
	ResolveDeadLetter(ctx context.Context, id int64, status model.ReplayStatus) error
}

// ReviewStore persists documents waiting on a human decision.
type ReviewStore interface {
	AddReview(ctx context.Context, rec *model.ReviewRecord) (int64, error)
	ListReviews(ctx context.Context, limit int) ([]model.ReviewRecord, error)
}

// AuditStore records every state transition a document makes.
type AuditStore interface {
	AppendAudit(ctx context.Context, entry *model.AuditEntry) error
	AuditTrail(ctx context.Context, fp model.Fingerprint) ([]model.AuditEntry, error)
}

// DiscoveryStore tracks files seen in sources, for backlog reporting.
type DiscoveryStore interface {
	RecordDiscovery(ctx context.Context, ref model.FileRef, fp model.Fingerprint, seen time.Time) error
	Backlog(ctx context.Context, limit int) ([]model.Discovery, error)
}

// StatsStore aggregates counters for the monitoring endpoints.
type StatsStore interface {
	Stats(ctx context.Context) (*model.PipelineStats, error)
}

// Store defines the contract for our persistence layer.
type Store interface {
	ClaimStore
	DeadLetterStore
	ReviewStore
	AuditStore
	DiscoveryStore
	StatsStore

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// RetryPolicy configures exponential backoff for transient failures.
// AttemptTimeout bounds each individual adapter call; a call that exceeds it
// fails with a retryable timeout. Zero disables the bound.
type RetryPolicy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy returns the backoff settings used by the pipeline when
// no overrides are configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		BaseDelay:      500 * time.Millisecond,
		MaxDelay:       8 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
		AttemptTimeout: 60 * time.Second,
	}
}

// PollSummary shows the results of one pipeline sweep.
type PollSummary struct {
	Discovered  int
	Claimed     int
	Skipped     int
	Stored      int
	NeedsReview int
	DeadLetter  int
	Duration    time.Duration
}

// ReplaySummary shows the results of a dead letter replay pass.
type ReplaySummary struct {
	Queued           int
	SkippedProcessed int
	SkippedInvalid   int
}
