// Package extract turns document bytes into structured invoice payloads
// using model-based extraction providers.
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/atikulmunna/visual-invoice-processor/internal/service"
)

// ProviderConfig holds the settings shared by the HTTP API providers.
type ProviderConfig struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// GeminiConfig holds the Vertex AI settings for the Gemini provider.
type GeminiConfig struct {
	ProjectID string
	Region    string
	Model     string
}

// Config selects and configures the extraction providers. Providers are
// tried in the order listed.
type Config struct {
	Providers []string
	OpenAI    ProviderConfig
	Anthropic ProviderConfig
	Gemini    GeminiConfig
	RulesPath string
}

// New creates the configured extractor. More than one provider name
// yields a fallback chain.
func New(ctx context.Context, cfg Config) (service.Extractor, error) {
	rules, err := LoadRules(cfg.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load extraction rules: %w", err)
	}
	normalizer := NewNormalizer(rules)

	providers := cfg.Providers
	if len(providers) == 0 {
		providers = []string{"openai"}
	}

	extractors := make([]service.Extractor, 0, len(providers))
	for _, name := range providers {
		var (
			extractor service.Extractor
			buildErr  error
		)
		switch strings.ToLower(name) {
		case "openai":
			extractor, buildErr = newOpenAIExtractor(cfg.OpenAI, normalizer)
		case "anthropic":
			extractor, buildErr = newAnthropicExtractor(cfg.Anthropic, normalizer)
		case "gemini":
			extractor, buildErr = newGeminiExtractor(ctx, cfg.Gemini, normalizer)
		default:
			return nil, fmt.Errorf("unsupported extraction provider: %s", name)
		}
		if buildErr != nil {
			return nil, buildErr
		}
		extractors = append(extractors, extractor)
	}

	if len(extractors) == 1 {
		return extractors[0], nil
	}
	return NewChain(extractors...), nil
}
