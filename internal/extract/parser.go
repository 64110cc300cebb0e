package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/atikulmunna/visual-invoice-processor/internal/common"
	"github.com/atikulmunna/visual-invoice-processor/internal/model"
)

// parsePayload turns raw model output into a structurally valid payload.
// Every failure wraps ErrExtractionParse so callers can tell a bad reply
// from a transport fault.
func parsePayload(content string, normalizer *Normalizer) (*model.InvoicePayload, error) {
	content = stripMarkdownFence(content)

	var raw map[string]any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrExtractionParse, err)
	}

	payload, err := normalizer.Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrExtractionParse, err)
	}

	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrExtractionParse, err)
	}

	return payload, nil
}

// stripMarkdownFence removes a ```json wrapper that models add despite
// being told not to.
func stripMarkdownFence(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
