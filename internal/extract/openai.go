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

const openAIEndpoint = "https://api.openai.com/v1/chat/completions"

// openAIExtractor extracts invoice data through the OpenAI vision API.
type openAIExtractor struct {
	httpClient  *http.Client
	normalizer  *Normalizer
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
}

// newOpenAIExtractor creates a new OpenAI extraction provider.
func newOpenAIExtractor(cfg ProviderConfig, normalizer *Normalizer) (service.Extractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = "gpt-4o"
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.1
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2000
	}

	return &openAIExtractor{
		apiKey:      cfg.APIKey,
		model:       modelName,
		temperature: temperature,
		maxTokens:   maxTokens,
		endpoint:    openAIEndpoint,
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
func (c *openAIExtractor) Name() string {
	return "openai"
}

// Extract sends the document to the model and parses the structured
// reply. A reply that fails to parse gets exactly one corrective
// re-prompt before the failure is surfaced as terminal.
func (c *openAIExtractor) Extract(ctx context.Context, ref model.FileRef, data []byte) (*service.ExtractionResult, error) {
	messages := []map[string]any{
		{
			"role":    "system",
			"content": extractionSystemPrompt,
		},
		{
			"role": "user",
			"content": []map[string]any{
				{"type": "text", "text": extractionUserPrompt},
				{"type": "image_url", "image_url": map[string]string{"url": imageDataURL(ref.MimeType, data)}},
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

// complete runs one chat completion and returns the reply text.
func (c *openAIExtractor) complete(ctx context.Context, messages []map[string]any) (string, error) {
	requestBody := map[string]any{
		"model":       c.model,
		"messages":    messages,
		"temperature": c.temperature,
		"max_tokens":  c.maxTokens,
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
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

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
		return "", fmt.Errorf("%w: OpenAI API status %d", common.ErrRateLimit, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return "", &common.RetryableError{Err: fmt.Errorf("OpenAI API error (status %d): %s", resp.StatusCode, string(body)), Retryable: true}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OpenAI API error (status %d): %s", resp.StatusCode, string(body))
	}

	var response openAIResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}

	return response.Choices[0].Message.Content, nil
}

// imageDataURL inlines document bytes as a data URL for the vision API.
func imageDataURL(mimeType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// openAIResponse represents the OpenAI API response structure.
type openAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
		Index        int    `json:"index"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}
