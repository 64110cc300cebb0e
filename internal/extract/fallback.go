package extract

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/atikulmunna/visual-invoice-processor/internal/common"
	"github.com/atikulmunna/visual-invoice-processor/internal/model"
	"github.com/atikulmunna/visual-invoice-processor/internal/service"
)

// Chain tries providers in configured order. A provider that fails
// terminally hands the document to the next one; a retryable failure
// returns immediately so the caller's retry policy governs the whole
// chain rather than each link.
type Chain struct {
	extractors []service.Extractor
}

// NewChain builds a fallback chain over the given providers.
func NewChain(extractors ...service.Extractor) *Chain {
	return &Chain{extractors: extractors}
}

// Name lists the chained providers in order.
func (c *Chain) Name() string {
	names := make([]string, 0, len(c.extractors))
	for _, extractor := range c.extractors {
		names = append(names, extractor.Name())
	}
	return "fallback(" + strings.Join(names, ",") + ")"
}

// Extract runs the providers in order until one succeeds.
func (c *Chain) Extract(ctx context.Context, ref model.FileRef, data []byte) (*service.ExtractionResult, error) {
	if len(c.extractors) == 0 {
		return nil, common.ErrNoProviders
	}

	var lastErr error
	for _, extractor := range c.extractors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := extractor.Extract(ctx, ref, data)
		if err == nil {
			return result, nil
		}
		if common.IsRetryable(err) {
			return nil, err
		}

		lastErr = err
		slog.Warn("extraction provider failed, trying next",
			"provider", extractor.Name(),
			"document", ref.Name,
			"error", err)
	}

	return nil, fmt.Errorf("all extraction providers failed: %w", lastErr)
}

// Close releases any providers that hold external clients.
func (c *Chain) Close() error {
	var firstErr error
	for _, extractor := range c.extractors {
		if closer, ok := extractor.(io.Closer); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
