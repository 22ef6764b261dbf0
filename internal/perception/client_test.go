package perception

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"relogic/internal/config"
)

var answerSchema = ResponseSchema{
	Name: "choose_parser",
	Schema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"answer": map[string]interface{}{"type": "string", "enum": []string{"A", "B", "C", "D"}},
		},
		"required":             []string{"answer"},
		"additionalProperties": false,
	},
}

func openAIReply(content string) string {
	b, _ := json.Marshal(map[string]interface{}{
		"id":    "cmpl-1",
		"model": "test-model",
		"choices": []map[string]interface{}{
			{"index": 0, "message": map[string]string{"role": "assistant", "content": content}},
		},
	})
	return string(b)
}

func TestOpenAIClient_SendsJSONSchemaAndReturnsContent(t *testing.T) {
	var got OpenAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		io.WriteString(w, openAIReply("```json\n{\"answer\": \"C\"}\n```"))
	}))
	defer srv.Close()

	c := NewOpenAIClient(ClientConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1/", Model: "test-model"})
	reply, err := c.GenerateStructured(context.Background(), "classify this", answerSchema)
	require.NoError(t, err)
	assert.Equal(t, `{"answer": "C"}`, reply)

	assert.Equal(t, "test-model", got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "classify this", got.Messages[0].Content)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_schema", got.ResponseFormat.Type)
	assert.Equal(t, "choose_parser", got.ResponseFormat.JSONSchema.Name)
	assert.True(t, got.ResponseFormat.JSONSchema.Strict)
	assert.Equal(t, float64(0), got.Temperature)
}

func TestOpenAIClient_RetriesOnRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			io.WriteString(w, "slow down")
			return
		}
		io.WriteString(w, openAIReply(`{"answer":"A"}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(ClientConfig{APIKey: "k", BaseURL: srv.URL})
	c.retryBase = time.Millisecond

	reply, err := c.GenerateStructured(context.Background(), "p", answerSchema)
	require.NoError(t, err)
	assert.Equal(t, `{"answer":"A"}`, reply)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestOpenAIClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"message":"bad schema"}}`)
	}))
	defer srv.Close()

	c := NewOpenAIClient(ClientConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := c.GenerateStructured(context.Background(), "p", answerSchema)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")

	noKey := NewOpenAIClient(ClientConfig{BaseURL: srv.URL})
	_, err = noKey.GenerateStructured(context.Background(), "p", answerSchema)
	assert.EqualError(t, err, "API key not configured")
}

func TestOpenAIClient_ContextCancelStopsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewOpenAIClient(ClientConfig{APIKey: "k", BaseURL: srv.URL})
	c.retryBase = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.GenerateStructured(ctx, "p", answerSchema)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestPacer_SpacesRequests(t *testing.T) {
	p := &pacer{interval: 30 * time.Millisecond}
	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, p.wait(context.Background()))
	}
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestOpenAIClient_CanceledCallsDoNotQueueOnPacing(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := NewOpenAIClient(ClientConfig{APIKey: "k", BaseURL: srv.URL})
	c.pace.interval = time.Hour
	c.pace.next = time.Now().Add(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.GenerateStructured(ctx, "p", answerSchema)
		}(i)
	}
	wg.Wait()

	assert.Less(t, time.Since(start), 2*time.Second)
	for _, err := range errs {
		assert.True(t, errors.Is(err, context.DeadlineExceeded), "%v", err)
	}
	assert.Zero(t, hits.Load())
}

func TestVLLMClient_Defaults(t *testing.T) {
	c := NewVLLMClient(ClientConfig{})
	assert.Equal(t, DefaultVLLMBaseURL, c.baseURL)
	assert.Equal(t, "EMPTY", c.apiKey)
	assert.Equal(t, 60*time.Second, c.httpClient.Timeout)
	assert.Equal(t, DefaultVLLMModel, c.GetModel())
}

func TestOllamaClient_PassesSchemaAsFormat(t *testing.T) {
	var got OllamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(OllamaResponse{Model: got.Model, Response: `{"answer":"D"}`, Done: true})
	}))
	defer srv.Close()

	c := NewOllamaClient(ClientConfig{BaseURL: srv.URL, Model: "llama3.1"})
	reply, err := c.GenerateStructured(context.Background(), "prompt", answerSchema)
	require.NoError(t, err)
	assert.Equal(t, `{"answer":"D"}`, reply)

	assert.False(t, got.Stream)
	assert.Equal(t, "prompt", got.Prompt)
	assert.Equal(t, float64(0), got.Options.Temperature)
	assert.Equal(t, "object", got.Format["type"])
}

func TestOllamaClient_ReportsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(OllamaResponse{Error: "model not found"})
	}))
	defer srv.Close()

	_, err := NewOllamaClient(ClientConfig{BaseURL: srv.URL}).GenerateStructured(context.Background(), "p", answerSchema)
	assert.EqualError(t, err, "API error: model not found")
}

func TestGeminiClient_RequiresKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), ClientConfig{})
	assert.Error(t, err)
}

func TestToGenAISchema(t *testing.T) {
	s := toGenAISchema(map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"quantifier": map[string]interface{}{"type": "string", "enum": []string{"ForAll", "ThereExists"}},
			"variable":   map[string]interface{}{"type": "string"},
			"parties": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "string"},
			},
		},
		"required":             []interface{}{"quantifier", "variable"},
		"additionalProperties": false,
	})

	assert.Equal(t, genai.TypeObject, s.Type)
	assert.Equal(t, []string{"quantifier", "variable"}, s.Required)
	assert.Equal(t, []string{"quantifier", "variable", "parties"}, s.PropertyOrdering)
	assert.Equal(t, []string{"ForAll", "ThereExists"}, s.Properties["quantifier"].Enum)
	assert.Equal(t, genai.TypeArray, s.Properties["parties"].Type)
	assert.Equal(t, genai.TypeString, s.Properties["parties"].Items.Type)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple", `{"a": "b"}`, `{"a": "b"}`},
		{"preamble", `Here you go: {"a": "b"} thanks`, `{"a": "b"}`},
		{"nested", `{"a": {"b": 1}}`, `{"a": {"b": 1}}`},
		{"brace in string", `{"a": "x } y"}`, `{"a": "x } y"}`},
		{"escaped quote", `{"a": "say \"}\""}`, `{"a": "say \"}\""}`},
		{"unterminated", `{"a": "b"`, ``},
		{"none", `no json here`, ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSON(tt.input))
		})
	}

	assert.Equal(t, `{"a":1}`, cleanStructuredReply("```json\n{\"a\":1}\n```"))
	assert.Equal(t, "plain", cleanStructuredReply("  plain  "))
}

func TestParseProvider(t *testing.T) {
	p, err := ParseProvider(" Ollama ")
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, p)

	_, err = ParseProvider("anthropic")
	assert.Error(t, err)
}

func TestNewClient_SelectsProvider(t *testing.T) {
	ctx := context.Background()

	c, err := NewClient(ctx, ClientConfig{Provider: ProviderVLLM})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	c, err = NewClient(ctx, ClientConfig{Provider: ProviderOllama})
	require.NoError(t, err)
	assert.IsType(t, &OllamaClient{}, c)

	_, err = NewClient(ctx, ClientConfig{Provider: "bogus"})
	assert.Error(t, err)
}

func TestNewClientFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LLM.Provider = "ollama"
	cfg.LLM.Model = "qwen2.5"
	cfg.LLM.Timeout = "30s"

	c, err := NewClientFromConfig(context.Background(), cfg)
	require.NoError(t, err)
	oc, ok := c.(*OllamaClient)
	require.True(t, ok)
	assert.Equal(t, "qwen2.5", oc.GetModel())
	assert.Equal(t, 30*time.Second, oc.httpClient.Timeout)

	cfg.LLM.Provider = "claude"
	_, err = NewClientFromConfig(context.Background(), cfg)
	assert.Error(t, err)
}

type memoryTraceStore struct {
	mu     sync.Mutex
	traces []*CallTrace
}

func (m *memoryTraceStore) StoreCallTrace(t *CallTrace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.traces = append(m.traces, t)
	return nil
}

type stubClient struct {
	reply string
	err   error
}

func (s stubClient) GenerateStructured(ctx context.Context, prompt string, schema ResponseSchema) (string, error) {
	return s.reply, s.err
}

func (s stubClient) GetModel() string { return "stub-model" }

func TestTracingClient_RecordsAndRedacts(t *testing.T) {
	store := &memoryTraceStore{}
	tc := NewTracingClient(stubClient{reply: `{"answer":"A"}`}, store, ProviderOpenAI).
		WithTemplates(map[string]string{
			"choose_parser": "Classify the sentence.\n",
			"empty":         "   ",
		})
	tc.SetRunID("run-7")

	reply, err := tc.GenerateStructured(context.Background(), "Classify the sentence.\n\nSentence: 'Alice sings'", answerSchema)
	require.NoError(t, err)
	assert.Equal(t, `{"answer":"A"}`, reply)

	require.Len(t, store.traces, 1)
	tr := store.traces[0]
	assert.NotEmpty(t, tr.ID)
	assert.Equal(t, "run-7", tr.RunID)
	assert.Equal(t, "openai", tr.Provider)
	assert.Equal(t, "stub-model", tr.Model)
	assert.Equal(t, "choose_parser", tr.Schema)
	assert.Equal(t, "[CHOOSE_PARSER]\n\nSentence: 'Alice sings'", tr.Prompt)
	assert.True(t, tr.Success)
}

func TestTracingClient_RecordsFailures(t *testing.T) {
	store := &memoryTraceStore{}
	tc := NewTracingClient(stubClient{err: errors.New("connection refused")}, store, ProviderOllama)

	_, err := tc.GenerateStructured(context.Background(), "p", answerSchema)
	require.Error(t, err)
	require.Len(t, store.traces, 1)
	assert.False(t, store.traces[0].Success)
	assert.Equal(t, "connection refused", store.traces[0].ErrorMessage)
}
