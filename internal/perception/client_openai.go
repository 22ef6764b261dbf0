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

// OpenAIClient implements StructuredClient for the OpenAI chat/completions API
// and for OpenAI-compatible servers such as vLLM.
type OpenAIClient struct {
	label       string
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxRetries  int
	retryBase   time.Duration
	httpClient  *http.Client
	pace        pacer
}

// NewOpenAIClient creates an OpenAI client. Empty fields fall back to defaults.
func NewOpenAIClient(cfg ClientConfig) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	return newOpenAICompatible("OpenAI", cfg)
}

// NewVLLMClient creates a client for a vLLM OpenAI-compatible endpoint. vLLM does
// not check the key, so an empty key is replaced by a placeholder.
func NewVLLMClient(cfg ClientConfig) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultVLLMBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultVLLMModel
	}
	if cfg.APIKey == "" {
		cfg.APIKey = "EMPTY"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return newOpenAICompatible("vLLM", cfg)
}

func newOpenAICompatible(label string, cfg ClientConfig) *OpenAIClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	return &OpenAIClient{
		label:       label,
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxRetries:  cfg.MaxRetries,
		retryBase:   time.Second,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
	}
}

// GetModel returns the configured model.
func (c *OpenAIClient) GetModel() string { return c.model }

// GenerateStructured sends prompt as a single user message and returns the JSON reply.
func (c *OpenAIClient) GenerateStructured(ctx context.Context, prompt string, schema ResponseSchema) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	startTime := time.Now()
	logging.PerceptionDebug("[%s] GenerateStructured: model=%s schema=%s prompt_len=%d", c.label, c.model, schema.Name, len(prompt))

	if c.apiKey == "" {
		logging.PerceptionError("[%s] GenerateStructured: API key not configured", c.label)
		return "", fmt.Errorf("API key not configured")
	}

	if err := c.pace.wait(ctx); err != nil {
		logging.PerceptionWarn("[%s] GenerateStructured: %v", c.label, err)
		return "", err
	}

	reqBody := OpenAIRequest{
		Model:       c.model,
		Messages:    []OpenAIMessage{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
	}
	if schema.Schema != nil {
		reqBody.ResponseFormat = &OpenAIResponseFormat{
			Type: "json_schema",
			JSONSchema: &OpenAIJSONSchema{
				Name:   schema.Name,
				Strict: true,
				Schema: schema.Schema,
			},
		}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for i := 0; i <= c.maxRetries; i++ {
		if i > 0 {
			if err := sleepContext(ctx, c.retryBase<<uint(i-1)); err != nil {
				return "", err
			}
		}

		body, status, err := c.post(ctx, jsonData)
		if err != nil {
			if ctx.Err() != nil {
				return "", fmt.Errorf("request failed: %w", ctx.Err())
			}
			lastErr = err
			continue
		}
		if status == http.StatusTooManyRequests || status >= 500 {
			lastErr = fmt.Errorf("API request failed with status %d: %s", status, string(body))
			logging.PerceptionWarn("[%s] GenerateStructured: retrying after status %d", c.label, status)
			continue
		}
		if status != http.StatusOK {
			return "", fmt.Errorf("API request failed with status %d: %s", status, string(body))
		}

		var resp OpenAIResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("failed to parse response: %w", err)
		}
		if resp.Error != nil {
			return "", fmt.Errorf("API error: %s", resp.Error.Message)
		}
		if len(resp.Choices) == 0 {
			logging.PerceptionError("[%s] GenerateStructured: no completion returned", c.label)
			return "", fmt.Errorf("no completion returned")
		}
		if refusal := resp.Choices[0].Message.Refusal; refusal != "" {
			return "", fmt.Errorf("model refused: %s", refusal)
		}

		reply := cleanStructuredReply(resp.Choices[0].Message.Content)
		logging.Perception("[%s] GenerateStructured: completed in %v response_len=%d", c.label, time.Since(startTime), len(reply))
		return reply, nil
	}

	logging.PerceptionError("[%s] GenerateStructured: max retries exceeded after %v: %v", c.label, time.Since(startTime), lastErr)
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *OpenAIClient) post(ctx context.Context, payload []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
