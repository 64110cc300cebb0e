// Package validate scores extracted payloads against business rules and
// decides whether a document is stored or routed to review.
package validate

import (
	"math"
	"sort"

	"github.com/atikulmunna/visual-invoice-processor/internal/model"
)

// Config holds the tunable knobs for the scorer.
type Config struct {
	// EpsilonRelative is the tolerated totals drift as a fraction of the
	// declared total.
	EpsilonRelative float64
	// EpsilonFloor is the absolute tolerance floor, one currency cent by
	// default, so tiny invoices are not flagged on rounding noise.
	EpsilonFloor float64
	// AcceptThreshold is the minimum confidence for the stored path.
	AcceptThreshold float64
	// ModelWeight is the share of the extractor-reported confidence in the
	// blended score; the rest comes from the structural checks.
	ModelWeight float64
}

// DefaultConfig returns the scoring defaults.
func DefaultConfig() Config {
	return Config{
		EpsilonRelative: 0.01,
		EpsilonFloor:    0.01,
		AcceptThreshold: 0.85,
		ModelWeight:     0.6,
	}
}

// Scorer computes validation verdicts for extracted payloads.
type Scorer struct {
	cfg Config
}

// NewScorer creates a scorer, filling unset config fields with defaults.
func NewScorer(cfg Config) *Scorer {
	defaults := DefaultConfig()
	if cfg.EpsilonRelative <= 0 {
		cfg.EpsilonRelative = defaults.EpsilonRelative
	}
	if cfg.EpsilonFloor <= 0 {
		cfg.EpsilonFloor = defaults.EpsilonFloor
	}
	if cfg.AcceptThreshold <= 0 {
		cfg.AcceptThreshold = defaults.AcceptThreshold
	}
	if cfg.ModelWeight <= 0 || cfg.ModelWeight > 1 {
		cfg.ModelWeight = defaults.ModelWeight
	}
	return &Scorer{cfg: cfg}
}

// Score checks totals reconciliation and line item structure, blends the
// extractor's own confidence in, and collects rule violations. Violations are
// ordered most severe first so the review reason is the leading code.
func (s *Scorer) Score(payload *model.InvoicePayload) *model.ValidationResult {
	result := &model.ValidationResult{}

	if len(payload.LineItems) == 0 {
		result.Violations = append(result.Violations, model.RuleMissingLineItems)
	} else {
		// Line items carry tax-exclusive amounts, so reconcile against the
		// declared total net of tax.
		declared := payload.TotalAmount - payload.TaxAmount
		result.TotalsMatch = s.withinEpsilon(declared, payload.LineItemTotal())
		if !result.TotalsMatch {
			result.Violations = append(result.Violations, model.RuleTotalMismatch)
		}

		if hasNegativeQuantity(payload.LineItems) {
			result.Violations = append(result.Violations, model.RuleNegativeQuantity)
		}

		result.LineConsistency = s.lineConsistency(payload.LineItems)
	}

	result.Confidence = s.blendConfidence(payload.ModelConfidence, result)

	if result.Confidence < s.cfg.AcceptThreshold {
		result.Violations = append(result.Violations, model.RuleLowConfidence)
	}

	sortBySeverity(result.Violations)
	return result
}

// AcceptThreshold reports the configured cutoff, for logging and review rows.
func (s *Scorer) AcceptThreshold() float64 {
	return s.cfg.AcceptThreshold
}

// withinEpsilon compares amounts under the relative tolerance with an
// absolute floor.
func (s *Scorer) withinEpsilon(declared, sum float64) bool {
	eps := s.cfg.EpsilonRelative * math.Abs(declared)
	if eps < s.cfg.EpsilonFloor {
		eps = s.cfg.EpsilonFloor
	}
	return math.Abs(declared-sum) <= eps
}

// lineConsistency is the fraction of items passing per-field structural
// checks: a usable amount, a non-negative quantity, and a line total that
// agrees with quantity times unit price when both are present.
func (s *Scorer) lineConsistency(items []model.LineItem) float64 {
	passing := 0
	for _, item := range items {
		if s.itemPasses(item) {
			passing++
		}
	}
	return float64(passing) / float64(len(items))
}

func (s *Scorer) itemPasses(item model.LineItem) bool {
	if item.Quantity < 0 {
		return false
	}
	if item.Quantity > 0 && item.UnitPrice > 0 {
		return s.withinEpsilon(item.Quantity*item.UnitPrice, item.LineTotal)
	}
	// No computable subtotal: accept only when an amount was extracted.
	return item.LineTotal != 0
}

// blendConfidence mixes the extractor's reported confidence with the
// structural evidence. Payloads without a model confidence fall back to the
// structural score alone.
func (s *Scorer) blendConfidence(modelConfidence float64, result *model.ValidationResult) float64 {
	structural := 0.0
	if result.TotalsMatch {
		structural += 0.5
	}
	structural += 0.5 * result.LineConsistency

	confidence := structural
	if modelConfidence > 0 {
		confidence = s.cfg.ModelWeight*modelConfidence + (1-s.cfg.ModelWeight)*structural
	}

	return clamp01(confidence)
}

func hasNegativeQuantity(items []model.LineItem) bool {
	for _, item := range items {
		if item.Quantity < 0 {
			return true
		}
	}
	return false
}

// sortBySeverity orders codes most severe first.
func sortBySeverity(codes []model.RuleCode) {
	sort.SliceStable(codes, func(i, j int) bool {
		return codes[i].Severity() > codes[j].Severity()
	})
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
