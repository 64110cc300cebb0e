package model

import "time"

// Actor identifies what initiated a state transition.
type Actor string

// Audit actors.
const (
	ActorSystem Actor = "system"
	ActorReplay Actor = "replay"
	ActorManual Actor = "manual"
)

// AuditEntry records one state transition for a document. Seq is monotonic
// per fingerprint so the full history reads back in order.
type AuditEntry struct {
	ID          int64
	Fingerprint Fingerprint
	Seq         int
	FromState   State
	ToState     State
	Actor       Actor
	Note        string
	At          time.Time
}
