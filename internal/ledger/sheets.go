package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/atikulmunna/visual-invoice-processor/internal/common"
	"github.com/atikulmunna/visual-invoice-processor/internal/gauth"
	"github.com/atikulmunna/visual-invoice-processor/internal/model"
)

// Default tab names inside the ledger spreadsheet.
const (
	defaultLedgerTab = "Ledger"
	defaultReviewTab = "Review"
)

// SheetsConfig configures the Google Sheets ledger backend.
type SheetsConfig struct {
	SpreadsheetID string
	LedgerTab     string
	ReviewTab     string
	Auth          gauth.Config
}

// sheetsLedger appends invoice rows to a Google Sheets spreadsheet. Stored
// documents land on the ledger tab and review candidates on the review tab,
// so a bookkeeper works both queues from the same document.
type sheetsLedger struct {
	service       *sheets.Service
	spreadsheetID string
	ledgerTab     string
	reviewTab     string
}

func newSheetsLedger(ctx context.Context, cfg SheetsConfig) (*sheetsLedger, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("%w: sheets ledger needs a spreadsheet ID", common.ErrMissingConfig)
	}
	if cfg.LedgerTab == "" {
		cfg.LedgerTab = defaultLedgerTab
	}
	if cfg.ReviewTab == "" {
		cfg.ReviewTab = defaultReviewTab
	}

	httpClient, err := cfg.Auth.Client(ctx, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("failed to build sheets credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return &sheetsLedger{
		service:       srv,
		spreadsheetID: cfg.SpreadsheetID,
		ledgerTab:     cfg.LedgerTab,
		reviewTab:     cfg.ReviewTab,
	}, nil
}

func (l *sheetsLedger) Name() string { return "sheets" }

// Append writes the payload to the ledger tab and returns the updated range
// as the row reference.
func (l *sheetsLedger) Append(ctx context.Context, fp model.Fingerprint, payload *model.InvoicePayload) (string, error) {
	return l.appendRow(ctx, l.ledgerTab, ledgerRow(fp, payload))
}

// MarkForReview writes the payload to the review tab with the violation that
// routed it there appended as the final column.
func (l *sheetsLedger) MarkForReview(ctx context.Context, fp model.Fingerprint, payload *model.InvoicePayload, reason model.RuleCode) (string, error) {
	row := append(ledgerRow(fp, payload), string(reason))
	return l.appendRow(ctx, l.reviewTab, row)
}

func (l *sheetsLedger) appendRow(ctx context.Context, tab string, row []any) (string, error) {
	valueRange := &sheets.ValueRange{
		Values: [][]any{row},
	}

	resp, err := l.service.Spreadsheets.Values.Append(l.spreadsheetID, tab+"!A1", valueRange).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return "", classifySheetsError(err)
	}

	ref := ""
	if resp.Updates != nil {
		ref = resp.Updates.UpdatedRange
	}
	slog.Debug("appended ledger row", "tab", tab, "range", ref)
	return ref, nil
}

// ledgerRow flattens a payload into the spreadsheet column order: written at,
// fingerprint, type, vendor, invoice number, dates, currency, amounts,
// payment method, item count, confidence, notes.
func ledgerRow(fp model.Fingerprint, payload *model.InvoicePayload) []any {
	dueDate := ""
	if payload.DueDate != nil {
		dueDate = payload.DueDate.Format("2006-01-02")
	}
	return []any{
		time.Now().UTC().Format(time.RFC3339),
		fp.String(),
		string(payload.DocumentType),
		payload.VendorName,
		payload.InvoiceNumber,
		payload.InvoiceDate.Format("2006-01-02"),
		dueDate,
		payload.Currency,
		payload.Subtotal,
		payload.TaxAmount,
		payload.TotalAmount,
		payload.PaymentMethod,
		len(payload.LineItems),
		fmt.Sprintf("%.2f", payload.ModelConfidence),
		payload.Notes,
	}
}

// classifySheetsError maps a Sheets API failure onto the pipeline error
// taxonomy. Quota exhaustion and server errors clear up on retry; every
// other API response is a terminal write failure.
func classifySheetsError(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return &common.RetryableError{
			Err:       fmt.Errorf("%w: %v", common.ErrLedgerWrite, err),
			Retryable: true,
		}
	}

	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: sheets API status %d: %w", common.ErrLedgerWrite, apiErr.Code, common.ErrRateLimit)
	case apiErr.Code >= 500:
		return &common.RetryableError{
			Err:       fmt.Errorf("%w: sheets API status %d", common.ErrLedgerWrite, apiErr.Code),
			Retryable: true,
		}
	default:
		return fmt.Errorf("%w: sheets API status %d: %v", common.ErrLedgerWrite, apiErr.Code, apiErr.Message)
	}
}
