package perception

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"relogic/internal/logging"
)

// CallTrace captures one structured-output call.
type CallTrace struct {
	ID           string    `json:"id"`
	RunID        string    `json:"run_id,omitempty"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model,omitempty"`
	Schema       string    `json:"schema"`
	Prompt       string    `json:"prompt"`
	Response     string    `json:"response"`
	DurationMs   int64     `json:"duration_ms"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// TraceStore persists call traces.
type TraceStore interface {
	StoreCallTrace(trace *CallTrace) error
}

type modelGetter interface {
	GetModel() string
}

type redaction struct {
	body  string
	label string
}

// TracingClient wraps a StructuredClient and records every call. Prompt
// template bodies registered with WithTemplates are replaced by [NAME] in the
// stored prompt so traces stay readable.
type TracingClient struct {
	underlying StructuredClient
	store      TraceStore
	provider   string

	mu         sync.RWMutex
	runID      string
	redactions []redaction
}

// NewTracingClient creates a tracing wrapper around an existing client.
func NewTracingClient(underlying StructuredClient, store TraceStore, provider Provider) *TracingClient {
	return &TracingClient{
		underlying: underlying,
		store:      store,
		provider:   string(provider),
	}
}

// WithTemplates registers template bodies keyed by template name.
func (tc *TracingClient) WithTemplates(bodies map[string]string) *TracingClient {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.redactions = tc.redactions[:0]
	for name, body := range bodies {
		body = strings.TrimSpace(body)
		if body == "" {
			continue
		}
		tc.redactions = append(tc.redactions, redaction{body: body, label: "[" + strings.ToUpper(name) + "]"})
	}
	// Longest first so a body that contains another is replaced whole.
	sort.Slice(tc.redactions, func(i, j int) bool {
		if len(tc.redactions[i].body) != len(tc.redactions[j].body) {
			return len(tc.redactions[i].body) > len(tc.redactions[j].body)
		}
		return tc.redactions[i].label < tc.redactions[j].label
	})
	return tc
}

// SetRunID attributes subsequent traces to a run (e.g. one contract batch).
func (tc *TracingClient) SetRunID(id string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.runID = id
}

// GenerateStructured implements StructuredClient with tracing.
func (tc *TracingClient) GenerateStructured(ctx context.Context, prompt string, schema ResponseSchema) (string, error) {
	tc.mu.RLock()
	runID := tc.runID
	tc.mu.RUnlock()

	start := time.Now()
	logging.PerceptionDebug("LLM call started: provider=%s schema=%s prompt_len=%d", tc.provider, schema.Name, len(prompt))

	response, err := tc.underlying.GenerateStructured(ctx, prompt, schema)

	duration := time.Since(start)
	if err != nil {
		logging.PerceptionWarn("LLM call failed: schema=%s duration=%v error=%v", schema.Name, duration, err)
	} else {
		logging.PerceptionDebug("LLM call completed: schema=%s duration=%v response_len=%d", schema.Name, duration, len(response))
	}

	trace := &CallTrace{
		ID:         uuid.NewString(),
		RunID:      runID,
		Provider:   tc.provider,
		Schema:     schema.Name,
		Prompt:     tc.redact(prompt),
		Response:   response,
		DurationMs: duration.Milliseconds(),
		Success:    err == nil,
		Timestamp:  start.UTC(),
	}
	if mg, ok := tc.underlying.(modelGetter); ok {
		trace.Model = mg.GetModel()
	}
	if err != nil {
		trace.ErrorMessage = err.Error()
	}

	if tc.store != nil {
		if storeErr := tc.store.StoreCallTrace(trace); storeErr != nil {
			logging.PerceptionWarn("Failed to store call trace: %v", storeErr)
		}
	}

	return response, err
}

// GetModel forwards to the wrapped client when it exposes a model.
func (tc *TracingClient) GetModel() string {
	if mg, ok := tc.underlying.(modelGetter); ok {
		return mg.GetModel()
	}
	return ""
}

func (tc *TracingClient) redact(prompt string) string {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	for _, r := range tc.redactions {
		prompt = strings.ReplaceAll(prompt, r.body, r.label)
	}
	return prompt
}
