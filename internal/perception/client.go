// Package perception holds the LLM transports behind the oracle. Every client
// answers one prompt with a JSON document constrained by a response schema.
package perception

import (
	"context"
	"sync"
	"time"
)

// StructuredClient generates a JSON reply that conforms to schema.
type StructuredClient interface {
	GenerateStructured(ctx context.Context, prompt string, schema ResponseSchema) (string, error)
}

// ResponseSchema names a JSON schema sent to the provider's structured-output mode.
type ResponseSchema struct {
	Name   string
	Schema map[string]interface{}
}

// Provider represents an LLM provider.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderVLLM   Provider = "vllm"
	ProviderOllama Provider = "ollama"
	ProviderGemini Provider = "gemini"
)

// Providers lists the supported providers.
var Providers = []Provider{ProviderOpenAI, ProviderVLLM, ProviderOllama, ProviderGemini}

// ClientConfig configures any provider client.
type ClientConfig struct {
	Provider    Provider
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Temperature float64
	MaxRetries  int
}

// Default endpoints and models per provider.
const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultVLLMBaseURL   = "http://0.0.0.0:8000/v1"
	DefaultOllamaBaseURL = "http://localhost:11434"

	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultVLLMModel   = "Qwen/Qwen2.5-7B-Instruct"
	DefaultOllamaModel = "llama3.1"
	DefaultGeminiModel = "gemini-2.5-flash"
)

// minRequestInterval is the client-side rate limit shared by the HTTP clients.
const minRequestInterval = 100 * time.Millisecond

// pacer spaces requests at least interval apart. Each caller reserves the next
// free slot under the lock and waits for it after releasing the lock.
type pacer struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

// wait blocks until the caller's slot, or returns ctx.Err() if ctx ends first.
func (p *pacer) wait(ctx context.Context) error {
	p.mu.Lock()
	now := time.Now()
	slot := p.next
	if slot.Before(now) {
		slot = now
	}
	interval := p.interval
	if interval == 0 {
		interval = minRequestInterval
	}
	p.next = slot.Add(interval)
	p.mu.Unlock()

	if d := slot.Sub(now); d > 0 {
		return sleepContext(ctx, d)
	}
	return ctx.Err()
}
