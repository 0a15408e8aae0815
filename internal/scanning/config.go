package scanning

import (
	"fmt"
	"time"
)

// Provider names accepted by New
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Config holds everything needed to build an Extractor. Credentials live
// here rather than in process-wide state.
type Config struct {
	Provider    string
	GeminiKey   string
	GeminiModel string
	OllamaURL   string
	OllamaModel string
	OpenAIKey   string
	OpenAIModel string
	OpenAIURL   string
	MaxTokens   int
	Timeout     time.Duration
}

// Validate checks that the selected provider has what it needs
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderGemini:
		if c.GeminiKey == "" {
			return fmt.Errorf("gemini api key is required")
		}
	case ProviderOpenAI:
		if c.OpenAIKey == "" {
			return fmt.Errorf("openai api key is required")
		}
	case ProviderOllama:
	default:
		return fmt.Errorf("invalid extractor provider %q: want %s, %s or %s", c.Provider, ProviderGemini, ProviderOllama, ProviderOpenAI)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max tokens must not be negative")
	}
	return nil
}

// New builds the Extractor selected by cfg.Provider
func New(cfg Config) (Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case ProviderGemini:
		return NewGemini(cfg.GeminiKey, cfg.GeminiModel, cfg.MaxTokens, cfg.Timeout)
	case ProviderOpenAI:
		return NewOpenAI(cfg.OpenAIKey, cfg.OpenAIURL, cfg.OpenAIModel, cfg.MaxTokens, cfg.Timeout)
	default:
		return NewOllama(cfg.OllamaURL, cfg.OllamaModel, cfg.Timeout)
	}
}
