package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/atikulmunna/visual-invoice-processor/internal/common"
	"github.com/atikulmunna/visual-invoice-processor/internal/model"
	"github.com/atikulmunna/visual-invoice-processor/internal/service"
)

// geminiExtractor extracts invoice data through Gemini on Vertex AI.
type geminiExtractor struct {
	client     *genai.Client
	model      *genai.GenerativeModel
	normalizer *Normalizer
}

// newGeminiExtractor creates a new Gemini extraction provider.
func newGeminiExtractor(ctx context.Context, cfg GeminiConfig, normalizer *Normalizer) (service.Extractor, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("gemini project ID is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-central1"
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = "gemini-1.5-pro"
	}

	client, err := genai.NewClient(ctx, cfg.ProjectID, region)
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex client: %w", err)
	}

	generativeModel := client.GenerativeModel(modelName)
	generativeModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(extractionSystemPrompt)},
	}
	generativeModel.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.1),
	}

	return &geminiExtractor{client: client, model: generativeModel, normalizer: normalizer}, nil
}

// Name identifies this provider in logs and fallback chains.
func (c *geminiExtractor) Name() string {
	return "gemini"
}

// Extract sends the document to Gemini and parses the structured reply,
// with one corrective re-prompt on a malformed reply. Gemini has no
// conversation to append to, so the correction carries the previous
// reply inline.
func (c *geminiExtractor) Extract(ctx context.Context, ref model.FileRef, data []byte) (*service.ExtractionResult, error) {
	document := genai.Blob{MIMEType: ref.MimeType, Data: data}

	content, err := c.generate(ctx, document, genai.Text(extractionUserPrompt))
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

	correction := fmt.Sprintf("%s\n\nYour previous reply was:\n%s", correctivePrompt(parseErr), content)
	content, err = c.generate(ctx, document, genai.Text(correction))
	if err != nil {
		return nil, err
	}

	payload, parseErr = parsePayload(content, c.normalizer)
	if parseErr != nil {
		return nil, parseErr
	}

	return &service.ExtractionResult{Payload: payload, Provider: c.Name(), Corrected: true}, nil
}

// Close releases the underlying Vertex AI client.
func (c *geminiExtractor) Close() error {
	return c.client.Close()
}

func (c *geminiExtractor) generate(ctx context.Context, parts ...genai.Part) (string, error) {
	resp, err := c.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", &common.RetryableError{Err: fmt.Errorf("failed to generate content: %w", err), Retryable: true}
	}

	content := responseText(resp)
	if content == "" {
		return "", fmt.Errorf("no content in response")
	}
	return content, nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(text.String())
}
