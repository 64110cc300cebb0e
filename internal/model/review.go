package model

import "time"

// RuleCode identifies a validation rule violation.
type RuleCode string

// Validation rule codes, from most to least severe.
const (
	RuleTotalMismatch    RuleCode = "TOTAL_MISMATCH"
	RuleMissingLineItems RuleCode = "MISSING_LINE_ITEMS"
	RuleNegativeQuantity RuleCode = "NEGATIVE_QUANTITY"
	RuleLowConfidence    RuleCode = "LOW_CONFIDENCE"
)

// ruleSeverity ranks codes so review reasons stay deterministic when a
// document violates several rules at once.
var ruleSeverity = map[RuleCode]int{
	RuleTotalMismatch:    40,
	RuleMissingLineItems: 30,
	RuleNegativeQuantity: 20,
	RuleLowConfidence:    10,
}

// Severity returns the rank of the code; unknown codes rank lowest.
func (c RuleCode) Severity() int {
	return ruleSeverity[c]
}

// MostSevere picks the highest-ranked code from a violation list. It returns
// an empty code for an empty list.
func MostSevere(codes []RuleCode) RuleCode {
	var top RuleCode
	for _, c := range codes {
		if top == "" || c.Severity() > top.Severity() {
			top = c
		}
	}
	return top
}

// ReviewRecord queues a document for a human decision. Reason carries the
// most severe rule violation; Codes keeps the full list.
type ReviewRecord struct {
	ID          int64
	Fingerprint Fingerprint
	Reason      RuleCode
	Codes       []RuleCode
	Confidence  float64
	LedgerRef   string
	CreatedAt   time.Time
}
