package model

import (
	"testing"
	"time"
)

func TestNewFingerprint(t *testing.T) {
	data := []byte("invoice bytes")

	a := NewFingerprint("drive", data)
	b := NewFingerprint("drive", data)
	if a != b {
		t.Errorf("same bytes produced different fingerprints: %v vs %v", a, b)
	}

	c := NewFingerprint("drive", []byte("other bytes"))
	if a.ContentHash == c.ContentHash {
		t.Error("different bytes produced the same content hash")
	}

	d := NewFingerprint("gcs", data)
	if a == d {
		t.Error("different sources produced identical fingerprints")
	}
	if a.ContentHash != d.ContentHash {
		t.Error("content hash should not depend on the source")
	}

	if len(a.ContentHash) != 64 {
		t.Errorf("content hash length = %d, want 64", len(a.ContentHash))
	}
}

func TestFingerprint_String(t *testing.T) {
	fp := Fingerprint{SourceID: "drive", ContentHash: "abc123"}
	if got := fp.String(); got != "drive:abc123" {
		t.Errorf("String() = %q, want %q", got, "drive:abc123")
	}

	if !(Fingerprint{}).Zero() {
		t.Error("empty fingerprint should report Zero")
	}
	if fp.Zero() {
		t.Error("populated fingerprint should not report Zero")
	}
}

func TestDocument_Advance(t *testing.T) {
	doc := &Document{State: StateDiscovered}
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	doc.Advance(StateClaimed, base)
	doc.Advance(StateDownloading, base.Add(time.Second))

	if doc.State != StateDownloading {
		t.Errorf("State = %v, want %v", doc.State, StateDownloading)
	}
	if len(doc.History) != 2 {
		t.Fatalf("History length = %d, want 2", len(doc.History))
	}
	if doc.History[0].State != StateClaimed || doc.History[1].State != StateDownloading {
		t.Errorf("History order wrong: %v", doc.History)
	}
}

func TestDocument_RecordAttempt(t *testing.T) {
	doc := &Document{}

	if n := doc.RecordAttempt(StageExtract); n != 1 {
		t.Errorf("first attempt = %d, want 1", n)
	}
	if n := doc.RecordAttempt(StageExtract); n != 2 {
		t.Errorf("second attempt = %d, want 2", n)
	}
	if n := doc.RecordAttempt(StageStore); n != 1 {
		t.Errorf("other stage attempt = %d, want 1", n)
	}
}

func TestState_IsTerminal(t *testing.T) {
	terminal := []State{StateStored, StateNeedsReview, StateDeadLetter}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%v should be terminal", s)
		}
	}

	active := []State{StateDiscovered, StateClaimed, StateDownloading, StateExtracting, StateValidating, StateFailed}
	for _, s := range active {
		if s.IsTerminal() {
			t.Errorf("%v should not be terminal", s)
		}
	}
}
