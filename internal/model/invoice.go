package model

import (
	"fmt"
	"time"
)

// DocumentType distinguishes the two document families the pipeline accepts.
type DocumentType string

// Document type constants.
const (
	DocTypeInvoice DocumentType = "invoice"
	DocTypeReceipt DocumentType = "receipt"
)

// LineItem is a single billed line on an invoice or receipt.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	LineTotal   float64 `json:"line_total"`
	Category    string  `json:"category,omitempty"`
}

// InvoicePayload is the structured record extracted from a document image.
type InvoicePayload struct {
	DocumentType    DocumentType `json:"document_type"`
	VendorName      string       `json:"vendor_name"`
	VendorTaxID     string       `json:"vendor_tax_id,omitempty"`
	InvoiceNumber   string       `json:"invoice_number,omitempty"`
	InvoiceDate     time.Time    `json:"invoice_date"`
	DueDate         *time.Time   `json:"due_date,omitempty"`
	Currency        string       `json:"currency"`
	Subtotal        float64      `json:"subtotal"`
	TaxAmount       float64      `json:"tax_amount"`
	TotalAmount     float64      `json:"total_amount"`
	PaymentMethod   string       `json:"payment_method,omitempty"`
	LineItems       []LineItem   `json:"line_items"`
	ModelConfidence float64      `json:"model_confidence"`
	Notes           string       `json:"notes,omitempty"`
}

// LineItemTotal sums the line totals across all items.
func (p *InvoicePayload) LineItemTotal() float64 {
	var sum float64
	for _, item := range p.LineItems {
		sum += item.LineTotal
	}
	return sum
}

// Validate checks the structural constraints an extracted payload must meet
// before it is scored. Rule-level checks such as totals reconciliation are
// the validator's job, not this one.
func (p *InvoicePayload) Validate() error {
	if p.DocumentType != DocTypeInvoice && p.DocumentType != DocTypeReceipt {
		return fmt.Errorf("invalid document type: %q", p.DocumentType)
	}
	if p.VendorName == "" {
		return fmt.Errorf("vendor name is required")
	}
	if p.InvoiceDate.IsZero() {
		return fmt.Errorf("invoice date is required")
	}
	if !validCurrencyCode(p.Currency) {
		return fmt.Errorf("invalid currency code: %q", p.Currency)
	}
	if p.Subtotal < 0 {
		return fmt.Errorf("subtotal cannot be negative: %f", p.Subtotal)
	}
	if p.TaxAmount < 0 {
		return fmt.Errorf("tax amount cannot be negative: %f", p.TaxAmount)
	}
	if p.TotalAmount < 0 {
		return fmt.Errorf("total amount cannot be negative: %f", p.TotalAmount)
	}
	if p.ModelConfidence < 0 || p.ModelConfidence > 1 {
		return fmt.Errorf("model confidence must be between 0 and 1: %f", p.ModelConfidence)
	}
	for i, item := range p.LineItems {
		if item.Description == "" {
			return fmt.Errorf("line item %d: description is required", i)
		}
	}
	return nil
}

// validCurrencyCode accepts exactly three uppercase ASCII letters.
func validCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}
