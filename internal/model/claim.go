package model

import "time"

// ClaimStatus is the outcome of a claim attempt.
type ClaimStatus string

// Claim attempt outcomes.
const (
	// ClaimGranted means the caller now owns the document.
	ClaimGranted ClaimStatus = "GRANTED"
	// ClaimHeld means another worker holds an active claim.
	ClaimHeld ClaimStatus = "HELD"
	// ClaimProcessed means the document already reached a stored state.
	ClaimProcessed ClaimStatus = "PROCESSED"
)

// ClaimOutcome records how a finished claim ended.
type ClaimOutcome string

// Claim outcomes written at release time. ABANDONED marks a claim given up
// mid-flight on shutdown; the document stays reclaimable.
const (
	OutcomeStored      ClaimOutcome = "STORED"
	OutcomeNeedsReview ClaimOutcome = "NEEDS_REVIEW"
	OutcomeDeadLetter  ClaimOutcome = "DEAD_LETTER"
	OutcomeAbandoned   ClaimOutcome = "ABANDONED"
)

// Claim marks exclusive ownership of one document fingerprint. At most one
// active claim exists per fingerprint at any time.
type Claim struct {
	ID          string
	Fingerprint Fingerprint
	WorkerID    string
	ClaimedAt   time.Time
	ReleasedAt  *time.Time
	Outcome     ClaimOutcome
}

// Active reports whether the claim is still held.
func (c *Claim) Active() bool {
	return c.ReleasedAt == nil
}

// ClaimResult reports whether a claim attempt won the document. Owner is set
// when another worker holds the claim.
type ClaimResult struct {
	Status ClaimStatus
	Claim  *Claim
	Owner  string
}
