package model

// PipelineStats summarizes pipeline progress for the monitoring endpoints.
type PipelineStats struct {
	Outcomes          map[ClaimOutcome]int64 `json:"outcomes"`
	ActiveClaims      int64                  `json:"active_claims"`
	DeadLetterPending int64                  `json:"dead_letter_pending"`
	DeadLetterTotal   int64                  `json:"dead_letter_total"`
	ReviewOpen        int64                  `json:"review_open"`
	Discovered        int64                  `json:"discovered"`
	Backlog           int64                  `json:"backlog"`
	SchemaVersion     int                    `json:"schema_version"`
}
