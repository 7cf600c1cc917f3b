package ai

import (
	"context"
	"fmt"

	cfgpkg "github.com/local/editorialbrief/internal/config"
)

// New builds the configured provider wrapped in Observed.
func New(ctx context.Context, cfg cfgpkg.AIConfig) (Client, error) {
	var c Client
	switch cfg.Engine {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai: %w", ErrMissingAPIKey)
		}
		c = NewOpenAIClient(cfg.OpenAIAPIKey)
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, fmt.Errorf("anthropic: %w", ErrMissingAPIKey)
		}
		c = NewAnthropicClient(cfg.AnthropicKey)
	case "gemini", "":
		g, err := NewGeminiClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		c = g
	default:
		return nil, fmt.Errorf("unknown AI engine: %s", cfg.Engine)
	}
	return Observed{Client: c, Timeout: cfg.RequestTimeout}, nil
}
