package extract

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/atikulmunna/visual-invoice-processor/internal/common"
	"github.com/atikulmunna/visual-invoice-processor/internal/model"
	"github.com/atikulmunna/visual-invoice-processor/internal/service"
)

const anthropicEndpoint = "https://api.anthropic.com/v1/messages"

// anthropicExtractor extracts invoice data through the Anthropic API.
type anthropicExtractor struct {
	httpClient  *http.Client
	normalizer  *Normalizer
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
}

// newAnthropicExtractor creates a new Anthropic extraction provider.
func newAnthropicExtractor(cfg ProviderConfig, normalizer *Normalizer) (service.Extractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = "claude-3-5-sonnet-20241022"
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.1
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2000
	}

	return &anthropicExtractor{
		apiKey:      cfg.APIKey,
		model:       modelName,
		temperature: temperature,
		maxTokens:   maxTokens,
		endpoint:    anthropicEndpoint,
		normalizer:  normalizer,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// Name identifies this provider in logs and fallback chains.
func (c *anthropicExtractor) Name() string {
	return "anthropic"
}

// Extract sends the document to the model and parses the structured
// reply, with one corrective re-prompt on a malformed reply.
func (c *anthropicExtractor) Extract(ctx context.Context, ref model.FileRef, data []byte) (*service.ExtractionResult, error) {
	messages := []map[string]any{
		{
			"role": "user",
			"content": []map[string]any{
				{
					"type": "image",
					"source": map[string]string{
						"type":       "base64",
						"media_type": ref.MimeType,
						"data":       base64.StdEncoding.EncodeToString(data),
					},
				},
				{"type": "text", "text": extractionUserPrompt},
			},
		},
	}

	content, err := c.complete(ctx, messages)
	if err != nil {
		return nil, err
	}

	payload, parseErr := parsePayload(content, c.normalizer)
	if parseErr == nil {
		return &service.ExtractionResult{Payload: payload, Provider: c.Name()}, nil
	}

	slog.Warn("extraction output unparseable, requesting correction",
		"provider", c.Name(),
		"document", ref.Name,
		"error", parseErr)

	messages = append(messages,
		map[string]any{"role": "assistant", "content": content},
		map[string]any{"role": "user", "content": correctivePrompt(parseErr)},
	)

	content, err = c.complete(ctx, messages)
	if err != nil {
		return nil, err
	}

	payload, parseErr = parsePayload(content, c.normalizer)
	if parseErr != nil {
		return nil, parseErr
	}

	return &service.ExtractionResult{Payload: payload, Provider: c.Name(), Corrected: true}, nil
}

// complete runs one messages call and returns the reply text.
func (c *anthropicExtractor) complete(ctx context.Context, messages []map[string]any) (string, error) {
	requestBody := map[string]any{
		"model":       c.model,
		"max_tokens":  c.maxTokens,
		"temperature": c.temperature,
		"system":      extractionSystemPrompt,
		"messages":    messages,
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(string(jsonBody)))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &common.RetryableError{Err: fmt.Errorf("request failed: %w", err), Retryable: true}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &common.RetryableError{Err: fmt.Errorf("failed to read response: %w", err), Retryable: true}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("%w: anthropic API status %d", common.ErrRateLimit, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return "", &common.RetryableError{Err: fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, string(body)), Retryable: true}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, string(body))
	}

	var response anthropicResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if len(response.Content) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	return response.Content[0].Text, nil
}

// anthropicResponse represents the Anthropic API response structure.
type anthropicResponse struct {
	ID         string `json:"id"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}
