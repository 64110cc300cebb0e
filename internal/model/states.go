package model

// State identifies where a document sits in the processing pipeline.
type State string

// Pipeline states.
const (
	StateDiscovered  State = "DISCOVERED"
	StateClaimed     State = "CLAIMED"
	StateDownloading State = "DOWNLOADING"
	StateExtracting  State = "EXTRACTING"
	StateValidating  State = "VALIDATING"
	StateStored      State = "STORED"
	StateNeedsReview State = "NEEDS_REVIEW"
	StateFailed      State = "FAILED"
	StateDeadLetter  State = "DEAD_LETTER"
)

// IsTerminal reports whether the state ends processing for a document.
// Dead-lettered documents only re-enter the pipeline through replay.
func (s State) IsTerminal() bool {
	switch s {
	case StateStored, StateNeedsReview, StateDeadLetter:
		return true
	}
	return false
}

// Stage names a unit of pipeline work for retry accounting and failure reports.
type Stage string

// Pipeline stages.
const (
	StageDiscover Stage = "discover"
	StageDownload Stage = "download"
	StageExtract  Stage = "extract"
	StageValidate Stage = "validate"
	StageStore    Stage = "store"
)
