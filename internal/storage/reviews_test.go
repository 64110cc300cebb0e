package storage

import (
	"context"
	"testing"

	"github.com/atikulmunna/visual-invoice-processor/internal/model"
)

func TestAddReview_Roundtrip(t *testing.T) {
	store, cleanup := createTestStore(t)
	defer cleanup()

	ctx := context.Background()
	rec := &model.ReviewRecord{
		Fingerprint: testFingerprint("rev-a"),
		Reason:      model.RuleTotalMismatch,
		Codes:       []model.RuleCode{model.RuleTotalMismatch, model.RuleLowConfidence},
		Confidence:  0.62,
		LedgerRef:   "review!A7",
	}

	id, err := store.AddReview(ctx, rec)
	if err != nil {
		t.Fatalf("AddReview() error = %v", err)
	}
	if id == 0 {
		t.Fatal("AddReview() returned zero id")
	}

	records, err := store.ListReviews(ctx, 0)
	if err != nil {
		t.Fatalf("ListReviews() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("review count = %d, want 1", len(records))
	}

	got := records[0]
	if got.Reason != model.RuleTotalMismatch {
		t.Errorf("Reason = %v, want %v", got.Reason, model.RuleTotalMismatch)
	}
	if len(got.Codes) != 2 || got.Codes[1] != model.RuleLowConfidence {
		t.Errorf("Codes = %v", got.Codes)
	}
	if got.LedgerRef != "review!A7" {
		t.Errorf("LedgerRef = %q", got.LedgerRef)
	}
	if got.Confidence != 0.62 {
		t.Errorf("Confidence = %v, want 0.62", got.Confidence)
	}
}

func TestAddReview_Invalid(t *testing.T) {
	store, cleanup := createTestStore(t)
	defer cleanup()

	ctx := context.Background()

	if _, err := store.AddReview(ctx, nil); err == nil {
		t.Error("expected error for nil record")
	}
	if _, err := store.AddReview(ctx, &model.ReviewRecord{Fingerprint: testFingerprint("rev-b")}); err == nil {
		t.Error("expected error for missing reason")
	}
}

func TestListReviews_Limit(t *testing.T) {
	store, cleanup := createTestStore(t)
	defer cleanup()

	ctx := context.Background()
	for _, tag := range []string{"rev-c", "rev-d", "rev-e"} {
		_, err := store.AddReview(ctx, &model.ReviewRecord{
			Fingerprint: testFingerprint(tag),
			Reason:      model.RuleLowConfidence,
			Confidence:  0.3,
		})
		if err != nil {
			t.Fatalf("AddReview() error = %v", err)
		}
	}

	records, err := store.ListReviews(ctx, 2)
	if err != nil {
		t.Fatalf("ListReviews() error = %v", err)
	}
	if len(records) != 2 {
		t.Errorf("review count = %d, want 2", len(records))
	}
}
