package storage

import (
	"context"
	"testing"
)

// TestMigrate_SchemaShape verifies the migration ladder produces every table
// and index the store methods depend on.
func TestMigrate_SchemaShape(t *testing.T) {
	store, cleanup := createTestStore(t)
	defer cleanup()
	ctx := context.Background()

	tables := []string{"claims", "audit_log", "dead_letters", "reviews", "discoveries"}
	for _, table := range tables {
		var count int
		err := store.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM sqlite_master
			WHERE type='table' AND name=?
		`, table).Scan(&count)
		if err != nil {
			t.Fatalf("Failed to check table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("Table %s was not created", table)
		}
	}

	indexes := []string{
		"idx_claims_outcome",
		"idx_audit_fingerprint",
		"idx_reviews_fingerprint",
		"idx_dead_letters_status",
	}
	for _, index := range indexes {
		var count int
		err := store.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM sqlite_master
			WHERE type='index' AND name=?
		`, index).Scan(&count)
		if err != nil {
			t.Fatalf("Failed to check index %s: %v", index, err)
		}
		if count != 1 {
			t.Errorf("Index %s was not created", index)
		}
	}
}

// TestMigrate_ReplayedAtColumn verifies migration 5 extended dead_letters
// with the resolution timestamp.
func TestMigrate_ReplayedAtColumn(t *testing.T) {
	store, cleanup := createTestStore(t)
	defer cleanup()
	ctx := context.Background()

	rows, err := store.db.QueryContext(ctx, `PRAGMA table_info(dead_letters)`)
	if err != nil {
		t.Fatalf("Failed to read table info: %v", err)
	}
	defer func() { _ = rows.Close() }()

	found := false
	for rows.Next() {
		var (
			cid        int
			name       string
			colType    string
			notNull    int
			defaultVal any
			pk         int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultVal, &pk); err != nil {
			t.Fatalf("Failed to scan column info: %v", err)
		}
		if name == "replayed_at" {
			found = true
		}
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("Failed to iterate columns: %v", err)
	}
	if !found {
		t.Error("dead_letters is missing the replayed_at column")
	}
}
