package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/atikulmunna/visual-invoice-processor/internal/common"
	"github.com/atikulmunna/visual-invoice-processor/internal/model"
)

// PostgresConfig configures the Postgres ledger backend.
type PostgresConfig struct {
	URL   string
	Table string
}

// defaultInvoicesTable is the table name used when none is configured.
const defaultInvoicesTable = "invoices"

// postgresLedger upserts invoice rows into a Postgres table keyed by
// fingerprint, so a replayed document refreshes its row instead of
// duplicating it.
type postgresLedger struct {
	db     *sql.DB
	table  string
	quoted string
}

const createInvoicesTable = `
CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	fingerprint TEXT NOT NULL UNIQUE,
	source_id TEXT NOT NULL,
	document_type TEXT NOT NULL,
	vendor_name TEXT NOT NULL,
	invoice_number TEXT NOT NULL DEFAULT '',
	invoice_date DATE NOT NULL,
	due_date DATE,
	currency TEXT NOT NULL,
	subtotal NUMERIC(14,2) NOT NULL,
	tax_amount NUMERIC(14,2) NOT NULL,
	total_amount NUMERIC(14,2) NOT NULL,
	payment_method TEXT NOT NULL DEFAULT '',
	line_items JSONB NOT NULL DEFAULT '[]',
	model_confidence DOUBLE PRECISION NOT NULL,
	notes TEXT NOT NULL DEFAULT '',
	needs_review BOOLEAN NOT NULL DEFAULT FALSE,
	review_reason TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

func newPostgresLedger(ctx context.Context, cfg PostgresConfig) (*postgresLedger, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: postgres ledger needs a connection URL", common.ErrMissingConfig)
	}
	if cfg.Table == "" {
		cfg.Table = defaultInvoicesTable
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	l := &postgresLedger{
		db:     db,
		table:  cfg.Table,
		quoted: pq.QuoteIdentifier(cfg.Table),
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf(createInvoicesTable, l.quoted)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create %s table: %w", cfg.Table, err)
	}

	return l, nil
}

func (l *postgresLedger) Name() string { return "postgres" }

func (l *postgresLedger) Append(ctx context.Context, fp model.Fingerprint, payload *model.InvoicePayload) (string, error) {
	return l.upsert(ctx, fp, payload, false, "")
}

func (l *postgresLedger) MarkForReview(ctx context.Context, fp model.Fingerprint, payload *model.InvoicePayload, reason model.RuleCode) (string, error) {
	return l.upsert(ctx, fp, payload, true, string(reason))
}

func (l *postgresLedger) upsert(ctx context.Context, fp model.Fingerprint, payload *model.InvoicePayload, needsReview bool, reason string) (string, error) {
	items, err := json.Marshal(payload.LineItems)
	if err != nil {
		return "", fmt.Errorf("%w: failed to encode line items: %v", common.ErrLedgerWrite, err)
	}

	var dueDate sql.NullTime
	if payload.DueDate != nil {
		dueDate = sql.NullTime{Time: *payload.DueDate, Valid: true}
	}

	query := `
		INSERT INTO ` + l.quoted + ` (
			fingerprint, source_id, document_type, vendor_name, invoice_number,
			invoice_date, due_date, currency, subtotal, tax_amount, total_amount,
			payment_method, line_items, model_confidence, notes,
			needs_review, review_reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (fingerprint) DO UPDATE SET
			document_type = EXCLUDED.document_type,
			vendor_name = EXCLUDED.vendor_name,
			invoice_number = EXCLUDED.invoice_number,
			invoice_date = EXCLUDED.invoice_date,
			due_date = EXCLUDED.due_date,
			currency = EXCLUDED.currency,
			subtotal = EXCLUDED.subtotal,
			tax_amount = EXCLUDED.tax_amount,
			total_amount = EXCLUDED.total_amount,
			payment_method = EXCLUDED.payment_method,
			line_items = EXCLUDED.line_items,
			model_confidence = EXCLUDED.model_confidence,
			notes = EXCLUDED.notes,
			needs_review = EXCLUDED.needs_review,
			review_reason = EXCLUDED.review_reason,
			updated_at = NOW()
		RETURNING id`

	var id int64
	err = l.db.QueryRowContext(ctx, query,
		fp.String(),
		fp.SourceID,
		string(payload.DocumentType),
		payload.VendorName,
		payload.InvoiceNumber,
		payload.InvoiceDate,
		dueDate,
		payload.Currency,
		payload.Subtotal,
		payload.TaxAmount,
		payload.TotalAmount,
		payload.PaymentMethod,
		items,
		payload.ModelConfidence,
		payload.Notes,
		needsReview,
		reason,
	).Scan(&id)
	if err != nil {
		return "", classifyPGError(err)
	}

	return fmt.Sprintf("%s/%d", l.table, id), nil
}

// Close releases the connection pool.
func (l *postgresLedger) Close() error {
	return l.db.Close()
}

// classifyPGError maps a Postgres failure onto the pipeline error taxonomy.
// Connection, serialization, resource, and shutdown errors clear up on
// retry; constraint and data errors do not.
func classifyPGError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return &common.RetryableError{
			Err:       fmt.Errorf("%w: %v", common.ErrLedgerWrite, err),
			Retryable: true,
		}
	}

	switch pqErr.Code.Class() {
	case "08", "40", "53", "57":
		return &common.RetryableError{
			Err:       fmt.Errorf("%w: postgres %s: %s", common.ErrLedgerWrite, pqErr.Code, pqErr.Message),
			Retryable: true,
		}
	}
	return fmt.Errorf("%w: postgres %s: %s", common.ErrLedgerWrite, pqErr.Code, pqErr.Message)
}
