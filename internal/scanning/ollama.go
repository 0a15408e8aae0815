package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Ollama implements the Extractor interface using a local Ollama server
type Ollama struct {
	baseURL string
	model   string
	timeout time.Duration
	client  *http.Client
}

// NewOllama creates a new Ollama Extractor instance.
// Vision models that read statement tables reasonably well:
//   - llava (default)
//   - qwen2-vl:7b (good OCR capabilities)
//   - llama3.2-vision
func NewOllama(baseURL string, modelName string, timeout time.Duration) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "llava"
	}

	return &Ollama{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   modelName,
		timeout: timeout,
		client:  &http.Client{},
	}, nil
}

// ollamaChatRequest represents the request body for Ollama's chat API
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// ollamaChatResponse represents the response from Ollama's chat API
type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// ExtractFromText sends a statement's text layer to Ollama
func (o *Ollama) ExtractFromText(ctx context.Context, text string) (string, error) {
	return o.chat(ctx, ollamaMessage{Role: "user", Content: textExtractionPrompt + text})
}

// ExtractFromImage sends a rendered page to Ollama
func (o *Ollama) ExtractFromImage(ctx context.Context, png []byte) (string, error) {
	return o.chat(ctx, ollamaMessage{
		Role:    "user",
		Content: imageExtractionPrompt,
		Images:  []string{base64.StdEncoding.EncodeToString(png)},
	})
}

func (o *Ollama) chat(ctx context.Context, msg ollamaMessage) (string, error) {
	ctx, cancel := withTimeout(ctx, o.timeout)
	defer cancel()

	reqBody := ollamaChatRequest{
		Model:  o.model,
		Stream: false,
		Messages: []ollamaMessage{
			{Role: "system", Content: systemPrompt},
			msg,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", o.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling ollama API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(body))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	return strings.TrimSpace(chatResp.Message.Content), nil
}

// Close closes the Ollama client (no-op for HTTP client)
func (o *Ollama) Close() error {
	return nil
}
