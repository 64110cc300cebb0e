package storage

import (
	"context"
	"testing"
	"time"

	"github.com/atikulmunna/visual-invoice-processor/internal/model"
)

func TestRecordDiscovery_UpsertKeepsFirstSeen(t *testing.T) {
	store, cleanup := createTestStore(t)
	defer cleanup()

	ctx := context.Background()
	fp := testFingerprint("disc-a")
	ref := model.FileRef{SourceID: fp.SourceID, Name: "march.pdf", MimeType: "application/pdf", Size: 100}

	first := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	second := first.Add(48 * time.Hour)

	if err := store.RecordDiscovery(ctx, ref, fp, first); err != nil {
		t.Fatalf("RecordDiscovery() error = %v", err)
	}

	ref.Name = "march-renamed.pdf"
	if err := store.RecordDiscovery(ctx, ref, fp, second); err != nil {
		t.Fatalf("second RecordDiscovery() error = %v", err)
	}

	backlog, err := store.Backlog(ctx, 0)
	if err != nil {
		t.Fatalf("Backlog() error = %v", err)
	}
	if len(backlog) != 1 {
		t.Fatalf("backlog length = %d, want 1", len(backlog))
	}

	d := backlog[0]
	if !d.FirstSeen.Equal(first) {
		t.Errorf("FirstSeen = %v, want %v", d.FirstSeen, first)
	}
	if !d.LastSeen.Equal(second) {
		t.Errorf("LastSeen = %v, want %v", d.LastSeen, second)
	}
	if d.Ref.Name != "march-renamed.pdf" {
		t.Errorf("Name = %q, want renamed value", d.Ref.Name)
	}
}

func TestBacklog_ExcludesClaimed(t *testing.T) {
	store, cleanup := createTestStore(t)
	defer cleanup()

	ctx := context.Background()
	seen := time.Now().UTC()

	claimed := testFingerprint("disc-b")
	waiting := testFingerprint("disc-c")

	for _, fp := range []model.Fingerprint{claimed, waiting} {
		ref := model.FileRef{SourceID: fp.SourceID, Name: fp.ContentHash[:8] + ".pdf"}
		if err := store.RecordDiscovery(ctx, ref, fp, seen); err != nil {
			t.Fatalf("RecordDiscovery() error = %v", err)
		}
	}

	if _, err := store.TryClaim(ctx, claimed, "worker-1"); err != nil {
		t.Fatalf("TryClaim() error = %v", err)
	}

	backlog, err := store.Backlog(ctx, 0)
	if err != nil {
		t.Fatalf("Backlog() error = %v", err)
	}
	if len(backlog) != 1 {
		t.Fatalf("backlog length = %d, want 1", len(backlog))
	}
	if backlog[0].Fingerprint != waiting {
		t.Errorf("backlog entry = %v, want the unclaimed document", backlog[0].Fingerprint)
	}
}

func TestBacklog_OrderAndLimit(t *testing.T) {
	store, cleanup := createTestStore(t)
	defer cleanup()

	ctx := context.Background()
	base := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	for i, tag := range []string{"disc-new", "disc-old", "disc-mid"} {
		fp := testFingerprint(tag)
		ref := model.FileRef{SourceID: fp.SourceID, Name: tag + ".pdf"}
		var seen time.Time
		switch i {
		case 0:
			seen = base.Add(72 * time.Hour)
		case 1:
			seen = base
		case 2:
			seen = base.Add(24 * time.Hour)
		}
		if err := store.RecordDiscovery(ctx, ref, fp, seen); err != nil {
			t.Fatalf("RecordDiscovery() error = %v", err)
		}
	}

	backlog, err := store.Backlog(ctx, 2)
	if err != nil {
		t.Fatalf("Backlog() error = %v", err)
	}
	if len(backlog) != 2 {
		t.Fatalf("backlog length = %d, want 2", len(backlog))
	}
	if backlog[0].Ref.Name != "disc-old.pdf" || backlog[1].Ref.Name != "disc-mid.pdf" {
		t.Errorf("backlog order = %q, %q; want oldest first", backlog[0].Ref.Name, backlog[1].Ref.Name)
	}
}
