// Package ledger implements the systems of record that receive validated
// invoice payloads: a Google Sheets spreadsheet for bookkeeper-facing
// workflows and a Postgres table for programmatic consumers.
package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/atikulmunna/visual-invoice-processor/internal/service"
)

// Config selects and configures the ledger backend.
type Config struct {
	Backend  string
	Sheets   SheetsConfig
	Postgres PostgresConfig
}

// New creates the configured ledger backend. An empty backend name selects
// Google Sheets.
func New(ctx context.Context, cfg Config) (service.Ledger, error) {
	switch strings.ToLower(cfg.Backend) {
	case "sheets", "":
		return newSheetsLedger(ctx, cfg.Sheets)
	case "postgres":
		return newPostgresLedger(ctx, cfg.Postgres)
	default:
		return nil, fmt.Errorf("unsupported ledger backend: %s", cfg.Backend)
	}
}
