package extract

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/atikulmunna/visual-invoice-processor/internal/model"
)

func testNormalizer() *Normalizer {
	return NewNormalizer(DefaultRules())
}

func TestNormalize_AliasResolution(t *testing.T) {
	raw := map[string]any{
		"merchant":    "Blue Bottle",
		"grand_total": "$12.50",
		"date":        "03/05/2025",
		"type":        "receipt",
		"items": []any{
			map[string]any{"name": "Latte", "qty": 2.0, "price": 6.25},
		},
	}

	payload, err := testNormalizer().Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if payload.VendorName != "Blue Bottle" {
		t.Errorf("VendorName = %q", payload.VendorName)
	}
	if payload.TotalAmount != 12.50 {
		t.Errorf("TotalAmount = %v, want 12.50", payload.TotalAmount)
	}
	if payload.DocumentType != model.DocTypeReceipt {
		t.Errorf("DocumentType = %v, want receipt", payload.DocumentType)
	}
	want := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	if !payload.InvoiceDate.Equal(want) {
		t.Errorf("InvoiceDate = %v, want %v", payload.InvoiceDate, want)
	}
	if payload.Currency != "USD" {
		t.Errorf("Currency = %q, want default USD", payload.Currency)
	}
}

func TestNormalize_DerivesMissingAmounts(t *testing.T) {
	raw := map[string]any{
		"vendor_name":  "Acme",
		"invoice_date": "2025-06-01",
		"tax_amount":   10.0,
		"line_items": []any{
			map[string]any{"description": "Widget", "quantity": 2.0, "unit_price": 50.0},
		},
	}

	payload, err := testNormalizer().Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	// Line total derived from qty * unit, grand total from items + tax,
	// subtotal from total - tax.
	if payload.LineItems[0].LineTotal != 100 {
		t.Errorf("LineTotal = %v, want 100", payload.LineItems[0].LineTotal)
	}
	if payload.TotalAmount != 110 {
		t.Errorf("TotalAmount = %v, want 110", payload.TotalAmount)
	}
	if payload.Subtotal != 100 {
		t.Errorf("Subtotal = %v, want 100", payload.Subtotal)
	}
}

func TestNormalize_LineItemFallbacks(t *testing.T) {
	raw := map[string]any{
		"vendor_name":  "Acme",
		"invoice_date": "2025-06-01",
		"line_items": []any{
			map[string]any{"description": "Flat fee", "total": 30.0},
			map[string]any{"description": "Bulk", "qty": 4.0, "amount": 10.0},
			map[string]any{},
		},
	}

	payload, err := testNormalizer().Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if len(payload.LineItems) != 2 {
		t.Fatalf("got %d line items, want 2 (empty entry dropped)", len(payload.LineItems))
	}

	flat := payload.LineItems[0]
	if flat.Quantity != 1 || flat.UnitPrice != 30 || flat.LineTotal != 30 {
		t.Errorf("flat fee item = %+v", flat)
	}

	bulk := payload.LineItems[1]
	if bulk.Quantity != 4 || bulk.UnitPrice != 2.5 || bulk.LineTotal != 10 {
		t.Errorf("bulk item = %+v", bulk)
	}
}

func TestNormalize_PaymentMethod(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{name: "visa maps to card", value: "VISA ****1234", want: "card"},
		{name: "cash", value: "paid in cash", want: "cash"},
		{name: "sepa maps to bank transfer", value: "SEPA transfer", want: "bank_transfer"},
		{name: "cheque", value: "Cheque #12", want: "check"},
		{name: "unknown passes through", value: "Crypto", want: "crypto"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := map[string]any{
				"vendor_name":    "Acme",
				"invoice_date":   "2025-06-01",
				"total_amount":   5.0,
				"payment_method": tt.value,
				"line_items": []any{
					map[string]any{"description": "Thing", "quantity": 1.0, "unit_price": 5.0, "line_total": 5.0},
				},
			}
			payload, err := testNormalizer().Normalize(raw)
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if payload.PaymentMethod != tt.want {
				t.Errorf("PaymentMethod = %q, want %q", payload.PaymentMethod, tt.want)
			}
		})
	}
}

func TestNormalize_OCRRecovery(t *testing.T) {
	ocr := "ACME HARDWARE\n" +
		"2025-04-01\n" +
		"Hammer              1   12.00   12.00\n" +
		"Nails box           2    3.50    7.00\n" +
		"TOTAL   19.00\n"

	raw := map[string]any{
		"vendor_name": "Acme Hardware",
		"raw_text":    ocr,
	}

	payload, err := testNormalizer().Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	want := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	if !payload.InvoiceDate.Equal(want) {
		t.Errorf("InvoiceDate = %v, want recovered %v", payload.InvoiceDate, want)
	}

	if len(payload.LineItems) != 2 {
		t.Fatalf("recovered %d line items, want 2: %+v", len(payload.LineItems), payload.LineItems)
	}
	if payload.LineItems[0].Description != "Hammer" || payload.LineItems[0].LineTotal != 12 {
		t.Errorf("first recovered item = %+v", payload.LineItems[0])
	}
	if payload.LineItems[1].Description != "Nails box" || payload.LineItems[1].Quantity != 2 {
		t.Errorf("second recovered item = %+v", payload.LineItems[1])
	}
	if payload.TotalAmount != 19 {
		t.Errorf("TotalAmount = %v, want 19 derived from recovered items", payload.TotalAmount)
	}
}

func TestNormalize_ConfidenceClamped(t *testing.T) {
	raw := map[string]any{
		"vendor_name":  "Acme",
		"invoice_date": "2025-06-01",
		"total_amount": 5.0,
		"confidence":   1.7,
	}

	payload, err := testNormalizer().Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if payload.ModelConfidence != 1 {
		t.Errorf("ModelConfidence = %v, want clamped to 1", payload.ModelConfidence)
	}
}

func TestNormalize_Empty(t *testing.T) {
	if _, err := testNormalizer().Normalize(map[string]any{}); err == nil {
		t.Error("Normalize() accepted an empty payload")
	}
}

func TestCoerceFloat(t *testing.T) {
	tests := []struct {
		value  any
		want   float64
		wantOK bool
	}{
		{value: 42.5, want: 42.5, wantOK: true},
		{value: "42", want: 42, wantOK: true},
		{value: "$1,234.56", want: 1234.56, wantOK: true},
		{value: "1.234,56", want: 1234.56, wantOK: true},
		{value: "12,50", want: 12.5, wantOK: true},
		{value: " $99.99 ", want: 99.99, wantOK: true},
		{value: "€250", want: 250, wantOK: true},
		{value: "abc", wantOK: false},
		{value: nil, wantOK: false},
		{value: true, wantOK: false},
	}

	for _, tt := range tests {
		got, ok := coerceFloat(tt.value)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("coerceFloat(%v) = (%v, %v), want (%v, %v)", tt.value, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestLoadRules_Overrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := "field_aliases:\n" +
		"  vendor_name: [\"shop\"]\n" +
		"default_currency: EUR\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules() error = %v", err)
	}

	if rules.DefaultCurrency != "EUR" {
		t.Errorf("DefaultCurrency = %q, want EUR", rules.DefaultCurrency)
	}
	if got := rules.FieldAliases["vendor_name"]; len(got) != 1 || got[0] != "shop" {
		t.Errorf("vendor_name aliases = %v, want [shop]", got)
	}
	// Untouched fields keep their defaults.
	if len(rules.FieldAliases["total_amount"]) == 0 {
		t.Error("total_amount aliases lost during merge")
	}
	if rules.DefaultDocType != "invoice" {
		t.Errorf("DefaultDocType = %q, want invoice", rules.DefaultDocType)
	}

	raw := map[string]any{
		"shop":         "Corner Store",
		"invoice_date": "2025-06-01",
		"total_amount": 5.0,
	}
	payload, err := NewNormalizer(rules).Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if payload.VendorName != "Corner Store" {
		t.Errorf("VendorName = %q, want resolution through override alias", payload.VendorName)
	}
	if payload.Currency != "EUR" {
		t.Errorf("Currency = %q, want EUR default", payload.Currency)
	}
}

func TestLoadRules_MissingFile(t *testing.T) {
	if _, err := LoadRules("/nonexistent/rules.yaml"); err == nil {
		t.Error("LoadRules() accepted a missing file")
	}
}

func TestLoadRules_EmptyPath(t *testing.T) {
	rules, err := LoadRules("")
	if err != nil {
		t.Fatalf("LoadRules() error = %v", err)
	}
	if rules.DefaultCurrency != "USD" {
		t.Errorf("DefaultCurrency = %q, want built-in USD", rules.DefaultCurrency)
	}
}
