package extract

import (
	"context"
	"sync"
	"time"

	"github.com/atikulmunna/visual-invoice-processor/internal/model"
	"github.com/atikulmunna/visual-invoice-processor/internal/service"
)

// Mock is a test implementation of the Extractor interface.
type Mock struct {
	// ExtractFn can be set by tests to control behavior.
	ExtractFn func(ctx context.Context, ref model.FileRef, data []byte) (*service.ExtractionResult, error)

	// Call tracking.
	ExtractCalls []ExtractCall

	mu sync.Mutex
}

// ExtractCall records the parameters of an Extract call.
type ExtractCall struct {
	Ref  model.FileRef
	Size int
}

// NewMock creates a new mock extractor.
func NewMock() *Mock {
	return &Mock{ExtractCalls: []ExtractCall{}}
}

// Extract implements service.Extractor.
func (m *Mock) Extract(ctx context.Context, ref model.FileRef, data []byte) (*service.ExtractionResult, error) {
	m.mu.Lock()
	m.ExtractCalls = append(m.ExtractCalls, ExtractCall{Ref: ref, Size: len(data)})
	m.mu.Unlock()

	if m.ExtractFn != nil {
		return m.ExtractFn(ctx, ref, data)
	}

	// Default behavior: a small payload that passes structural validation.
	return &service.ExtractionResult{
		Payload: &model.InvoicePayload{
			DocumentType: model.DocTypeInvoice,
			VendorName:   "Mock Vendor",
			InvoiceDate:  time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
			Currency:     "USD",
			Subtotal:     10,
			TotalAmount:  10,
			LineItems: []model.LineItem{
				{Description: "Mock item", Quantity: 1, UnitPrice: 10, LineTotal: 10},
			},
			ModelConfidence: 0.99,
		},
		Provider: m.Name(),
	}, nil
}

// Name implements service.Extractor.
func (m *Mock) Name() string {
	return "mock"
}

// Calls returns a copy of the recorded calls.
func (m *Mock) Calls() []ExtractCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]ExtractCall, len(m.ExtractCalls))
	copy(calls, m.ExtractCalls)
	return calls
}

// Reset clears all call tracking.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExtractCalls = []ExtractCall{}
}

// Ensure Mock implements the Extractor interface.
var _ service.Extractor = (*Mock)(nil)
