package extract

import (
	"errors"
	"testing"

	"github.com/atikulmunna/visual-invoice-processor/internal/common"
)

const goodReply = `{
	"document_type": "invoice",
	"vendor_name": "Acme Supply Co",
	"invoice_number": "INV-1001",
	"invoice_date": "2025-03-10",
	"currency": "usd",
	"subtotal": 42,
	"tax_amount": 0,
	"total_amount": 42,
	"line_items": [
		{"description": "Thing", "quantity": 1, "unit_price": 42, "line_total": 42}
	],
	"confidence": 0.9
}`

func TestParsePayload(t *testing.T) {
	payload, err := parsePayload(goodReply, testNormalizer())
	if err != nil {
		t.Fatalf("parsePayload() error = %v", err)
	}
	if payload.VendorName != "Acme Supply Co" {
		t.Errorf("VendorName = %q", payload.VendorName)
	}
	if payload.Currency != "USD" {
		t.Errorf("Currency = %q, want USD", payload.Currency)
	}
	if payload.InvoiceNumber != "INV-1001" {
		t.Errorf("InvoiceNumber = %q", payload.InvoiceNumber)
	}
}

func TestParsePayload_StripsFence(t *testing.T) {
	fenced := "```json\n" + goodReply + "\n```"
	payload, err := parsePayload(fenced, testNormalizer())
	if err != nil {
		t.Fatalf("parsePayload() error = %v", err)
	}
	if payload.TotalAmount != 42 {
		t.Errorf("TotalAmount = %v, want 42", payload.TotalAmount)
	}
}

func TestParsePayload_MalformedJSON(t *testing.T) {
	_, err := parsePayload(`{"vendor_name": "Acme"`, testNormalizer())
	if !errors.Is(err, common.ErrExtractionParse) {
		t.Errorf("error = %v, want ErrExtractionParse", err)
	}
}

func TestParsePayload_StructurallyInvalid(t *testing.T) {
	// Valid JSON, but no vendor survives normalization.
	_, err := parsePayload(`{"invoice_date": "2025-03-10", "total_amount": 10}`, testNormalizer())
	if !errors.Is(err, common.ErrExtractionParse) {
		t.Errorf("error = %v, want ErrExtractionParse", err)
	}
}

func TestStripMarkdownFence(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "bare json", content: `{"a": 1}`, want: `{"a": 1}`},
		{name: "json fence", content: "```json\n{\"a\": 1}\n```", want: `{"a": 1}`},
		{name: "plain fence", content: "```\n{\"a\": 1}\n```", want: `{"a": 1}`},
		{name: "surrounding whitespace", content: "  {\"a\": 1}\n\n", want: `{"a": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripMarkdownFence(tt.content); got != tt.want {
				t.Errorf("stripMarkdownFence() = %q, want %q", got, tt.want)
			}
		})
	}
}
