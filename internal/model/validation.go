package model

// ValidationResult is the verdict the rule scorer attaches to a document.
type ValidationResult struct {
	TotalsMatch     bool       `json:"totals_match"`
	LineConsistency float64    `json:"line_consistency"`
	Confidence      float64    `json:"confidence"`
	Violations      []RuleCode `json:"violations,omitempty"`
}

// Passed reports whether the document cleared every rule. Confidence gating
// is applied during scoring, so a passing result has no violations.
func (r *ValidationResult) Passed() bool {
	return len(r.Violations) == 0
}

// ReviewReason returns the most severe violation for review routing.
func (r *ValidationResult) ReviewReason() RuleCode {
	return MostSevere(r.Violations)
}
