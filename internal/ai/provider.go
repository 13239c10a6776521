// Package ai talks to the vision and language models behind extraction, validation and template learning.
package ai

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
)

// Request is one model call. Image is optional.
type Request struct {
	System   string
	Prompt   string
	Image    []byte
	MIMEType string
}

// Provider returns the model's raw text answer, which is expected to be a JSON object.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// OpenAIConfig configures the OpenAI (or compatible) provider.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model"`
}

// GeminiConfig configures the Gemini provider.
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// NewProvider builds the named provider ("openai" or "gemini").
func NewProvider(ctx context.Context, name string, oa OpenAIConfig, gm GeminiConfig) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "openai", "":
		if oa.APIKey == "" {
			return nil, eris.New("ai: OPENAI_API_KEY not configured")
		}
		return NewOpenAIProvider(oa), nil
	case "gemini":
		if gm.APIKey == "" {
			return nil, eris.New("ai: GEMINI_API_KEY not configured")
		}
		return NewGeminiProvider(ctx, gm)
	default:
		return nil, eris.Errorf("ai: unknown provider %q", name)
	}
}
