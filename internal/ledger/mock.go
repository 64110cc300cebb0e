package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/atikulmunna/visual-invoice-processor/internal/model"
	"github.com/atikulmunna/visual-invoice-processor/internal/service"
)

// Mock is a test implementation of the Ledger interface.
type Mock struct {
	// Function fields can be set by tests to control behavior.
	AppendFn        func(ctx context.Context, fp model.Fingerprint, payload *model.InvoicePayload) (string, error)
	MarkForReviewFn func(ctx context.Context, fp model.Fingerprint, payload *model.InvoicePayload, reason model.RuleCode) (string, error)

	// Call tracking.
	AppendCalls []AppendCall
	ReviewCalls []ReviewCall

	mu sync.Mutex
}

// AppendCall records the parameters of an Append call.
type AppendCall struct {
	Fingerprint model.Fingerprint
	Payload     *model.InvoicePayload
}

// ReviewCall records the parameters of a MarkForReview call.
type ReviewCall struct {
	Fingerprint model.Fingerprint
	Payload     *model.InvoicePayload
	Reason      model.RuleCode
}

// NewMock creates a new mock ledger.
func NewMock() *Mock {
	return &Mock{
		AppendCalls: []AppendCall{},
		ReviewCalls: []ReviewCall{},
	}
}

// Append implements service.Ledger.
func (m *Mock) Append(ctx context.Context, fp model.Fingerprint, payload *model.InvoicePayload) (string, error) {
	m.mu.Lock()
	m.AppendCalls = append(m.AppendCalls, AppendCall{Fingerprint: fp, Payload: payload})
	n := len(m.AppendCalls)
	m.mu.Unlock()

	if m.AppendFn != nil {
		return m.AppendFn(ctx, fp, payload)
	}
	return fmt.Sprintf("mock/%d", n), nil
}

// MarkForReview implements service.Ledger.
func (m *Mock) MarkForReview(ctx context.Context, fp model.Fingerprint, payload *model.InvoicePayload, reason model.RuleCode) (string, error) {
	m.mu.Lock()
	m.ReviewCalls = append(m.ReviewCalls, ReviewCall{Fingerprint: fp, Payload: payload, Reason: reason})
	n := len(m.ReviewCalls)
	m.mu.Unlock()

	if m.MarkForReviewFn != nil {
		return m.MarkForReviewFn(ctx, fp, payload, reason)
	}
	return fmt.Sprintf("mock/review/%d", n), nil
}

// Name implements service.Ledger.
func (m *Mock) Name() string {
	return "mock"
}

// Appends returns a copy of the recorded Append calls.
func (m *Mock) Appends() []AppendCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]AppendCall, len(m.AppendCalls))
	copy(calls, m.AppendCalls)
	return calls
}

// Reviews returns a copy of the recorded MarkForReview calls.
func (m *Mock) Reviews() []ReviewCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]ReviewCall, len(m.ReviewCalls))
	copy(calls, m.ReviewCalls)
	return calls
}

// Reset clears all call tracking.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AppendCalls = []AppendCall{}
	m.ReviewCalls = []ReviewCall{}
}

// Ensure Mock implements the Ledger interface.
var _ service.Ledger = (*Mock)(nil)
