package scanning

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI implements the Extractor interface using the chat completions API
type OpenAI struct {
	client    *openai.Client
	model     string
	maxTokens int
	timeout   time.Duration
}

// NewOpenAI creates a new OpenAI Extractor instance. baseURL may point at
// any OpenAI-compatible endpoint; empty means api.openai.com.
func NewOpenAI(apiKey, baseURL, modelName string, maxTokens int, timeout time.Duration) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if modelName == "" {
		modelName = openai.GPT4o
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}

	return &OpenAI{
		client:    openai.NewClientWithConfig(cfg),
		model:     modelName,
		maxTokens: maxTokens,
		timeout:   timeout,
	}, nil
}

// ExtractFromText sends a statement's text layer to OpenAI
func (o *OpenAI) ExtractFromText(ctx context.Context, text string) (string, error) {
	return o.complete(ctx, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: textExtractionPrompt + text,
	})
}

// ExtractFromImage sends a rendered page to OpenAI as a data URL
func (o *OpenAI) ExtractFromImage(ctx context.Context, png []byte) (string, error) {
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
	return o.complete(ctx, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: imageExtractionPrompt},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL}},
		},
	})
}

func (o *OpenAI) complete(ctx context.Context, msg openai.ChatCompletionMessage) (string, error) {
	ctx, cancel := withTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.model,
		MaxTokens: o.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			msg,
		},
	})
	if err != nil {
		return "", fmt.Errorf("creating chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoResponse
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Close is a no-op; the client holds no resources
func (o *OpenAI) Close() error {
	return nil
}
