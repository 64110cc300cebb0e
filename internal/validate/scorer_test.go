package validate

import (
	"testing"
	"time"

	"github.com/atikulmunna/visual-invoice-processor/internal/model"
)

func basePayload() *model.InvoicePayload {
	return &model.InvoicePayload{
		DocumentType:    model.DocTypeInvoice,
		VendorName:      "Acme Supply Co",
		InvoiceDate:     time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC),
		Currency:        "USD",
		Subtotal:        100.00,
		TotalAmount:     100.00,
		ModelConfidence: 0.95,
		LineItems: []model.LineItem{
			{Description: "Widgets", Quantity: 1, UnitPrice: 100, LineTotal: 100},
		},
	}
}

func TestScore_CleanPayloadPasses(t *testing.T) {
	scorer := NewScorer(Config{})
	result := scorer.Score(basePayload())

	if !result.TotalsMatch {
		t.Error("TotalsMatch = false for exact totals")
	}
	if result.LineConsistency != 1 {
		t.Errorf("LineConsistency = %v, want 1", result.LineConsistency)
	}
	if result.Confidence < scorer.AcceptThreshold() {
		t.Errorf("Confidence = %v, below threshold %v", result.Confidence, scorer.AcceptThreshold())
	}
	if !result.Passed() {
		t.Errorf("Passed() = false, violations = %v", result.Violations)
	}
}

func TestScore_TotalMismatch(t *testing.T) {
	payload := basePayload()
	payload.LineItems = []model.LineItem{
		{Description: "Widgets", Quantity: 1, UnitPrice: 90, LineTotal: 90},
	}

	scorer := NewScorer(Config{})
	result := scorer.Score(payload)

	if result.TotalsMatch {
		t.Error("TotalsMatch = true for 100 declared vs 90 summed at 1% epsilon")
	}
	if result.Passed() {
		t.Error("Passed() = true for mismatched totals")
	}
	if got := result.ReviewReason(); got != model.RuleTotalMismatch {
		t.Errorf("ReviewReason() = %v, want %v", got, model.RuleTotalMismatch)
	}
	// Most severe code leads the list.
	if result.Violations[0] != model.RuleTotalMismatch {
		t.Errorf("Violations[0] = %v, want %v", result.Violations[0], model.RuleTotalMismatch)
	}
}

func TestScore_MissingLineItems(t *testing.T) {
	payload := basePayload()
	payload.LineItems = nil

	result := NewScorer(Config{}).Score(payload)

	if result.Passed() {
		t.Error("Passed() = true without line items")
	}
	if got := result.ReviewReason(); got != model.RuleMissingLineItems {
		t.Errorf("ReviewReason() = %v, want %v", got, model.RuleMissingLineItems)
	}
	if result.TotalsMatch {
		t.Error("TotalsMatch should stay false when there is nothing to sum")
	}
}

func TestScore_NegativeQuantity(t *testing.T) {
	payload := basePayload()
	payload.TotalAmount = 10
	payload.Subtotal = 10
	payload.LineItems = []model.LineItem{
		{Description: "Widgets", Quantity: 2, UnitPrice: 6, LineTotal: 12},
		{Description: "Return", Quantity: -1, UnitPrice: 0, LineTotal: -2},
	}

	result := NewScorer(Config{}).Score(payload)

	if !result.TotalsMatch {
		t.Error("TotalsMatch = false; 12 - 2 should reconcile against 10")
	}
	if result.LineConsistency != 0.5 {
		t.Errorf("LineConsistency = %v, want 0.5", result.LineConsistency)
	}
	if got := result.ReviewReason(); got != model.RuleNegativeQuantity {
		t.Errorf("ReviewReason() = %v, want %v", got, model.RuleNegativeQuantity)
	}
}

func TestScore_LowConfidence(t *testing.T) {
	payload := basePayload()
	payload.ModelConfidence = 0.3

	result := NewScorer(Config{}).Score(payload)

	// Structure is perfect, so the only violation is the blended score.
	if !result.TotalsMatch || result.LineConsistency != 1 {
		t.Fatalf("structural checks should pass: %+v", result)
	}
	if result.Passed() {
		t.Error("Passed() = true at model confidence 0.3")
	}
	if got := result.ReviewReason(); got != model.RuleLowConfidence {
		t.Errorf("ReviewReason() = %v, want %v", got, model.RuleLowConfidence)
	}
}

func TestScore_ThresholdConfigurable(t *testing.T) {
	payload := basePayload()
	payload.ModelConfidence = 0.7

	strict := NewScorer(Config{AcceptThreshold: 0.9}).Score(payload)
	if strict.Passed() {
		t.Error("strict threshold should flag confidence 0.7")
	}

	lenient := NewScorer(Config{AcceptThreshold: 0.5}).Score(payload)
	if !lenient.Passed() {
		t.Errorf("lenient threshold should accept: %+v", lenient.Violations)
	}
}

func TestScore_EpsilonFloorForSmallAmounts(t *testing.T) {
	payload := basePayload()
	payload.TotalAmount = 0.50
	payload.Subtotal = 0.50
	payload.ModelConfidence = 0
	payload.LineItems = []model.LineItem{
		{Description: "Sticker", Quantity: 1, UnitPrice: 0, LineTotal: 0.505},
	}

	result := NewScorer(Config{}).Score(payload)

	// Half a cent of drift sits inside the absolute floor.
	if !result.TotalsMatch {
		t.Error("TotalsMatch = false within the one-cent floor")
	}
	// No model confidence: the structural score carries the decision.
	if !result.Passed() {
		t.Errorf("Passed() = false, violations = %v, confidence = %v", result.Violations, result.Confidence)
	}
}

func TestScore_RelativeEpsilonScalesUp(t *testing.T) {
	payload := basePayload()
	payload.TotalAmount = 10000
	payload.Subtotal = 10000

	payload.LineItems = []model.LineItem{
		{Description: "Consulting", Quantity: 1, UnitPrice: 9950, LineTotal: 9950},
	}
	if result := NewScorer(Config{}).Score(payload); !result.TotalsMatch {
		t.Error("50 drift on a 10000 total sits inside 1% tolerance")
	}

	payload.LineItems = []model.LineItem{
		{Description: "Consulting", Quantity: 1, UnitPrice: 9850, LineTotal: 9850},
	}
	if result := NewScorer(Config{}).Score(payload); result.TotalsMatch {
		t.Error("150 drift on a 10000 total exceeds 1% tolerance")
	}
}

func TestScore_TaxExclusiveLineItems(t *testing.T) {
	payload := basePayload()
	payload.Subtotal = 100
	payload.TaxAmount = 8.25
	payload.TotalAmount = 108.25

	result := NewScorer(Config{}).Score(payload)

	if !result.TotalsMatch {
		t.Error("line items should reconcile against the total net of tax")
	}
}

func TestScore_ConfidenceClamped(t *testing.T) {
	payload := basePayload()
	payload.ModelConfidence = 1.0

	result := NewScorer(Config{}).Score(payload)
	if result.Confidence > 1 || result.Confidence < 0 {
		t.Errorf("Confidence = %v, want inside [0, 1]", result.Confidence)
	}
}
