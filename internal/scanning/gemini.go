package scanning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini implements the Extractor interface using Google Gemini
type Gemini struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	timeout time.Duration
}

// NewGemini creates a new Gemini Extractor instance
func NewGemini(apiKey string, modelName string, maxTokens int, timeout time.Duration) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	if maxTokens > 0 {
		model.SetMaxOutputTokens(int32(maxTokens))
	}

	return &Gemini{
		client:  client,
		model:   model,
		timeout: timeout,
	}, nil
}

// ExtractFromText sends a statement's text layer to Gemini
func (g *Gemini) ExtractFromText(ctx context.Context, text string) (string, error) {
	return g.generate(ctx, genai.Text(textExtractionPrompt+text))
}

// ExtractFromImage sends a rendered page to Gemini
func (g *Gemini) ExtractFromImage(ctx context.Context, png []byte) (string, error) {
	// genai.ImageData expects just the format suffix, not the full MIME type
	return g.generate(ctx, genai.ImageData("png", png), genai.Text(imageExtractionPrompt))
}

func (g *Gemini) generate(ctx context.Context, parts ...genai.Part) (string, error) {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrNoResponse
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	return strings.TrimSpace(responseText.String()), nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
