package oracle

import (
	"context"
	"encoding/json"

	"relogic/internal/perception"
)

// LLMOracle answers questions with a structured-output LLM client.
type LLMOracle struct {
	client perception.StructuredClient
}

// NewLLMOracle wraps client.
func NewLLMOracle(client perception.StructuredClient) *LLMOracle {
	return &LLMOracle{client: client}
}

// Classify renders the template around input and asks the model for a reply
// constrained to schema. Validation is left to the caller.
func (o *LLMOracle) Classify(ctx context.Context, template Template, input string, schema Schema) (json.RawMessage, error) {
	reply, err := o.client.GenerateStructured(ctx, template.Render(input), perception.ResponseSchema{
		Name:   string(schema),
		Schema: schema.JSONSchema(),
	})
	if err != nil {
		return nil, &CallError{Schema: schema, Input: input, Err: err}
	}
	return json.RawMessage(reply), nil
}
