package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/atikulmunna/visual-invoice-processor/internal/common"
	"github.com/atikulmunna/visual-invoice-processor/internal/model"
	"github.com/atikulmunna/visual-invoice-processor/internal/service"
)

// Mock is a test implementation of the Ingestor interface. Files and
// Data seed the default List and Fetch behavior.
type Mock struct {
	// Functions that can be set by tests to control behavior.
	ListFn         func(ctx context.Context) ([]model.FileRef, error)
	FetchFn        func(ctx context.Context, ref model.FileRef) ([]byte, error)
	ArchiveFn      func(ctx context.Context, ref model.FileRef) error
	MoveToReviewFn func(ctx context.Context, ref model.FileRef) error

	// Seed data for the default behavior.
	Files []model.FileRef
	Data  map[string][]byte

	// Call tracking.
	ListCalls    int
	FetchCalls   []string
	ArchiveCalls []string
	ReviewCalls  []string

	mu sync.Mutex
}

// NewMock creates a new mock ingestor.
func NewMock() *Mock {
	return &Mock{Data: map[string][]byte{}}
}

// AddFile seeds a file and its content.
func (m *Mock) AddFile(ref model.FileRef, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Files = append(m.Files, ref)
	m.Data[ref.SourceID] = data
}

// List implements service.Ingestor.
func (m *Mock) List(ctx context.Context) ([]model.FileRef, error) {
	m.mu.Lock()
	m.ListCalls++
	m.mu.Unlock()

	if m.ListFn != nil {
		return m.ListFn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	refs := make([]model.FileRef, len(m.Files))
	copy(refs, m.Files)
	return refs, nil
}

// Fetch implements service.Ingestor.
func (m *Mock) Fetch(ctx context.Context, ref model.FileRef) ([]byte, error) {
	m.mu.Lock()
	m.FetchCalls = append(m.FetchCalls, ref.SourceID)
	m.mu.Unlock()

	if m.FetchFn != nil {
		return m.FetchFn(ctx, ref)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.Data[ref.SourceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrNotFound, ref.SourceID)
	}
	return data, nil
}

// Archive implements service.Ingestor.
func (m *Mock) Archive(ctx context.Context, ref model.FileRef) error {
	m.mu.Lock()
	m.ArchiveCalls = append(m.ArchiveCalls, ref.SourceID)
	m.mu.Unlock()

	if m.ArchiveFn != nil {
		return m.ArchiveFn(ctx, ref)
	}
	return nil
}

// MoveToReview implements service.Ingestor.
func (m *Mock) MoveToReview(ctx context.Context, ref model.FileRef) error {
	m.mu.Lock()
	m.ReviewCalls = append(m.ReviewCalls, ref.SourceID)
	m.mu.Unlock()

	if m.MoveToReviewFn != nil {
		return m.MoveToReviewFn(ctx, ref)
	}
	return nil
}

// Name implements service.Ingestor.
func (m *Mock) Name() string {
	return "mock"
}

// Reset clears all call tracking and seed data.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Files = nil
	m.Data = map[string][]byte{}
	m.ListCalls = 0
	m.FetchCalls = nil
	m.ArchiveCalls = nil
	m.ReviewCalls = nil
}

// Ensure Mock implements the Ingestor interface.
var _ service.Ingestor = (*Mock)(nil)
