package perception

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"google.golang.org/genai"

	"relogic/internal/logging"
)

// GeminiClient implements StructuredClient with the Google GenAI SDK, passing
// the JSON schema as the response schema with application/json output.
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float64
	timeout     time.Duration
	pace        pacer
}

// NewGeminiClient creates a Gemini client. An API key is required.
func NewGeminiClient(ctx context.Context, cfg ClientConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiClient{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
	}, nil
}

// GetModel returns the configured model.
func (c *GeminiClient) GetModel() string { return c.model }

// GenerateStructured runs one GenerateContent call.
func (c *GeminiClient) GenerateStructured(ctx context.Context, prompt string, schema ResponseSchema) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	startTime := time.Now()
	logging.PerceptionDebug("[Gemini] GenerateStructured: model=%s schema=%s prompt_len=%d", c.model, schema.Name, len(prompt))

	if err := c.pace.wait(ctx); err != nil {
		logging.PerceptionWarn("[Gemini] GenerateStructured: %v", err)
		return "", err
	}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](float32(c.temperature)),
		ResponseMIMEType: "application/json",
	}
	if schema.Schema != nil {
		config.ResponseSchema = toGenAISchema(schema.Schema)
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		logging.PerceptionError("[Gemini] GenerateStructured: %v", err)
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("no completion returned")
	}
	reply := cleanStructuredReply(text)
	logging.Perception("[Gemini] GenerateStructured: completed in %v response_len=%d", time.Since(startTime), len(reply))
	return reply, nil
}

// toGenAISchema converts the JSON-schema subset used by the oracle (object,
// string, array, enum, required) into a genai.Schema. additionalProperties has
// no GenAI equivalent and is dropped.
func toGenAISchema(m map[string]interface{}) *genai.Schema {
	s := &genai.Schema{}
	switch m["type"] {
	case "object":
		s.Type = genai.TypeObject
	case "string":
		s.Type = genai.TypeString
	case "array":
		s.Type = genai.TypeArray
	case "integer":
		s.Type = genai.TypeInteger
	case "number":
		s.Type = genai.TypeNumber
	case "boolean":
		s.Type = genai.TypeBoolean
	}
	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	s.Enum = stringList(m["enum"])
	s.Required = stringList(m["required"])

	if props, ok := m["properties"].(map[string]interface{}); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]interface{}); ok {
				s.Properties[name] = toGenAISchema(pm)
			}
		}
		order := append([]string(nil), s.Required...)
		for name := range props {
			if !contains(order, name) {
				order = append(order, name)
			}
		}
		sort.Strings(order[len(s.Required):])
		s.PropertyOrdering = order
	}
	if items, ok := m["items"].(map[string]interface{}); ok {
		s.Items = toGenAISchema(items)
	}
	return s
}

func stringList(v interface{}) []string {
	switch l := v.(type) {
	case []string:
		return append([]string(nil), l...)
	case []interface{}:
		out := make([]string, 0, len(l))
		for _, x := range l {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
