package perception

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"relogic/internal/logging"
)

// OllamaClient implements StructuredClient against a local Ollama server using
// /api/generate with the JSON schema passed as the format constraint.
type OllamaClient struct {
	baseURL     string
	model       string
	temperature float64
	httpClient  *http.Client
}

// NewOllamaClient creates an Ollama client. Empty fields fall back to defaults.
func NewOllamaClient(cfg ClientConfig) *OllamaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOllamaBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &OllamaClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
	}
}

// GetModel returns the configured model.
func (c *OllamaClient) GetModel() string { return c.model }

// GenerateStructured runs a single non-streaming generation.
func (c *OllamaClient) GenerateStructured(ctx context.Context, prompt string, schema ResponseSchema) (string, error) {
	startTime := time.Now()
	logging.PerceptionDebug("[Ollama] GenerateStructured: model=%s schema=%s prompt_len=%d", c.model, schema.Name, len(prompt))

	payload, err := json.Marshal(OllamaRequest{
		Model:   c.model,
		Prompt:  prompt,
		Format:  schema.Schema,
		Stream:  false,
		Options: OllamaOptions{Temperature: c.temperature},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.PerceptionError("[Ollama] GenerateStructured: request failed: %v", err)
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var out OllamaResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("API error: %s", out.Error)
	}

	reply := cleanStructuredReply(out.Response)
	logging.Perception("[Ollama] GenerateStructured: completed in %v response_len=%d", time.Since(startTime), len(reply))
	return reply, nil
}
