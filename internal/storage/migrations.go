package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 5

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Claim table and audit log",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS claims (
					id TEXT PRIMARY KEY,
					source_id TEXT NOT NULL,
					content_hash TEXT NOT NULL,
					worker_id TEXT NOT NULL,
					claimed_at DATETIME NOT NULL,
					released_at DATETIME,
					outcome TEXT,
					UNIQUE(source_id, content_hash)
				)`,
				`CREATE INDEX idx_claims_outcome ON claims(outcome)`,

				`CREATE TABLE IF NOT EXISTS audit_log (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					source_id TEXT NOT NULL,
					content_hash TEXT NOT NULL,
					seq INTEGER NOT NULL,
					from_state TEXT NOT NULL,
					to_state TEXT NOT NULL,
					actor TEXT NOT NULL,
					note TEXT,
					at DATETIME NOT NULL,
					UNIQUE(source_id, content_hash, seq)
				)`,
				`CREATE INDEX idx_audit_fingerprint ON audit_log(source_id, content_hash)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Dead letter queue",
		Up: func(tx *sql.Tx) error {
			query := `CREATE TABLE IF NOT EXISTS dead_letters (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				source_id TEXT NOT NULL,
				content_hash TEXT NOT NULL,
				stage TEXT NOT NULL,
				kind TEXT NOT NULL,
				context TEXT NOT NULL,
				retry_count INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL,
				replay_status TEXT NOT NULL DEFAULT 'PENDING'
			)`
			if _, err := tx.Exec(query); err != nil {
				return fmt.Errorf("failed to create dead_letters table: %w", err)
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Review queue",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS reviews (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					source_id TEXT NOT NULL,
					content_hash TEXT NOT NULL,
					reason TEXT NOT NULL,
					codes TEXT,
					confidence REAL NOT NULL DEFAULT 0,
					ledger_ref TEXT,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_reviews_fingerprint ON reviews(source_id, content_hash)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     4,
		Description: "Discovery ledger for backlog reporting",
		Up: func(tx *sql.Tx) error {
			query := `CREATE TABLE IF NOT EXISTS discoveries (
				source_id TEXT NOT NULL,
				content_hash TEXT NOT NULL,
				name TEXT NOT NULL,
				mime_type TEXT,
				size INTEGER NOT NULL DEFAULT 0,
				first_seen DATETIME NOT NULL,
				last_seen DATETIME NOT NULL,
				PRIMARY KEY (source_id, content_hash)
			)`
			if _, err := tx.Exec(query); err != nil {
				return fmt.Errorf("failed to create discoveries table: %w", err)
			}
			return nil
		},
	},
	{
		Version:     5,
		Description: "Track replay resolution time on dead letters",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`ALTER TABLE dead_letters ADD COLUMN replayed_at DATETIME`,
				`CREATE INDEX idx_dead_letters_status ON dead_letters(replay_status)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
}

// Migrate brings the database schema up to the expected version.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	// Get current version
	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	// Apply migrations
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		// Update version
		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	// Verify we're at the expected schema version
	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion reports the current schema version of the open database.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
