package perception

import (
	"context"
	"fmt"
	"os"
	"strings"

	"relogic/internal/config"
)

// ParseProvider validates a provider name (case-insensitive).
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Providers {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown provider: %s (valid: openai, vllm, ollama, gemini)", s)
}

// ClientConfigFromConfig resolves the llm section of the application config.
func ClientConfigFromConfig(cfg *config.Config) (ClientConfig, error) {
	provider, err := ParseProvider(cfg.LLM.Provider)
	if err != nil {
		return ClientConfig{}, err
	}
	return ClientConfig{
		Provider:    provider,
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Timeout:     cfg.GetLLMTimeout(),
		Temperature: cfg.LLM.Temperature,
		MaxRetries:  cfg.LLM.MaxRetries,
	}, nil
}

// NewClient creates the StructuredClient for cfg.Provider.
func NewClient(ctx context.Context, cfg ClientConfig) (StructuredClient, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		return NewOpenAIClient(cfg), nil
	case ProviderVLLM:
		return NewVLLMClient(cfg), nil
	case ProviderOllama:
		return NewOllamaClient(cfg), nil
	case ProviderGemini:
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("GEMINI_API_KEY")
		}
		c, err := NewGeminiClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
}

// NewClientFromConfig creates a client from the application config.
func NewClientFromConfig(ctx context.Context, cfg *config.Config) (StructuredClient, error) {
	cc, err := ClientConfigFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return NewClient(ctx, cc)
}
