// Package model defines the core domain models used throughout the pipeline.
package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// FileRef points at a document inside a source backend.
type FileRef struct {
	SourceID string `json:"source_id"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// Fingerprint identifies document content independent of where it was found.
// Two files with the same bytes from the same source share a fingerprint.
type Fingerprint struct {
	SourceID    string `json:"source_id"`
	ContentHash string `json:"content_hash"`
}

// NewFingerprint hashes raw document bytes for duplicate detection.
func NewFingerprint(sourceID string, data []byte) Fingerprint {
	hash := sha256.Sum256(data)
	return Fingerprint{
		SourceID:    sourceID,
		ContentHash: fmt.Sprintf("%x", hash),
	}
}

// String renders the fingerprint for logs and audit rows.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%s:%s", f.SourceID, f.ContentHash)
}

// Zero reports whether the fingerprint has not been computed yet.
func (f Fingerprint) Zero() bool {
	return f.SourceID == "" && f.ContentHash == ""
}

// StageEvent records one state a document passed through.
type StageEvent struct {
	State State
	At    time.Time
}

// Document carries a file through the pipeline from discovery to a terminal state.
type Document struct {
	Fingerprint  Fingerprint
	Ref          FileRef
	State        State
	History      []StageEvent
	Payload      *InvoicePayload
	Verdict      *ValidationResult
	Retries      map[Stage]int
	DiscoveredAt time.Time
}

// Advance moves the document to next and appends the transition to its history.
func (d *Document) Advance(next State, at time.Time) {
	d.State = next
	d.History = append(d.History, StageEvent{State: next, At: at})
}

// RecordAttempt increments the retry counter for a stage and returns the new count.
func (d *Document) RecordAttempt(stage Stage) int {
	if d.Retries == nil {
		d.Retries = make(map[Stage]int)
	}
	d.Retries[stage]++
	return d.Retries[stage]
}

// Discovery records a file seen in a source backend. Files stay in the
// discovery ledger until a pipeline pass resolves them, which is what the
// backlog report counts.
type Discovery struct {
	Fingerprint Fingerprint `json:"fingerprint"`
	Ref         FileRef     `json:"ref"`
	FirstSeen   time.Time   `json:"first_seen"`
	LastSeen    time.Time   `json:"last_seen"`
}
