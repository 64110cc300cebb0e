package storage

import (
	"context"
	"testing"

	"github.com/atikulmunna/visual-invoice-processor/internal/model"
)

func TestAppendAudit_SequencePerFingerprint(t *testing.T) {
	store, cleanup := createTestStore(t)
	defer cleanup()

	ctx := context.Background()
	fpA := testFingerprint("audit-a")
	fpB := testFingerprint("audit-b")

	steps := []struct {
		from model.State
		to   model.State
	}{
		{model.StateDiscovered, model.StateClaimed},
		{model.StateClaimed, model.StateDownloading},
		{model.StateDownloading, model.StateExtracting},
	}

	for _, step := range steps {
		err := store.AppendAudit(ctx, &model.AuditEntry{
			Fingerprint: fpA,
			FromState:   step.from,
			ToState:     step.to,
			Actor:       model.ActorSystem,
		})
		if err != nil {
			t.Fatalf("AppendAudit() error = %v", err)
		}
	}

	// A second document starts its own sequence.
	err := store.AppendAudit(ctx, &model.AuditEntry{
		Fingerprint: fpB,
		FromState:   model.StateDiscovered,
		ToState:     model.StateClaimed,
		Actor:       model.ActorSystem,
	})
	if err != nil {
		t.Fatalf("AppendAudit() error = %v", err)
	}

	trail, err := store.AuditTrail(ctx, fpA)
	if err != nil {
		t.Fatalf("AuditTrail() error = %v", err)
	}
	if len(trail) != 3 {
		t.Fatalf("trail length = %d, want 3", len(trail))
	}
	for i, entry := range trail {
		if entry.Seq != i+1 {
			t.Errorf("entry %d seq = %d, want %d", i, entry.Seq, i+1)
		}
	}
	if trail[2].ToState != model.StateExtracting {
		t.Errorf("last transition = %v, want %v", trail[2].ToState, model.StateExtracting)
	}

	other, err := store.AuditTrail(ctx, fpB)
	if err != nil {
		t.Fatalf("AuditTrail() error = %v", err)
	}
	if len(other) != 1 || other[0].Seq != 1 {
		t.Errorf("second document trail = %+v, want one entry with seq 1", other)
	}
}

func TestAppendAudit_KeepsNote(t *testing.T) {
	store, cleanup := createTestStore(t)
	defer cleanup()

	ctx := context.Background()
	fp := testFingerprint("audit-c")

	err := store.AppendAudit(ctx, &model.AuditEntry{
		Fingerprint: fp,
		FromState:   model.StateFailed,
		ToState:     model.StateDeadLetter,
		Actor:       model.ActorSystem,
		Note:        "retries exhausted at extract",
	})
	if err != nil {
		t.Fatalf("AppendAudit() error = %v", err)
	}

	trail, err := store.AuditTrail(ctx, fp)
	if err != nil {
		t.Fatalf("AuditTrail() error = %v", err)
	}
	if len(trail) != 1 {
		t.Fatalf("trail length = %d, want 1", len(trail))
	}
	if trail[0].Note != "retries exhausted at extract" {
		t.Errorf("Note = %q", trail[0].Note)
	}
	if trail[0].Actor != model.ActorSystem {
		t.Errorf("Actor = %q, want system", trail[0].Actor)
	}
}

func TestAppendAudit_Invalid(t *testing.T) {
	store, cleanup := createTestStore(t)
	defer cleanup()

	ctx := context.Background()

	if err := store.AppendAudit(ctx, nil); err == nil {
		t.Error("expected error for nil entry")
	}
	if err := store.AppendAudit(ctx, &model.AuditEntry{Fingerprint: testFingerprint("x")}); err == nil {
		t.Error("expected error for missing target state")
	}
}
