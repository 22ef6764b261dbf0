package contract

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"relogic/internal/logging"
	"relogic/internal/perception"
)

//go:embed prompts/extract_contract.txt
var extractionPrompt string

// ErrEmptyExtraction is returned when the model answers with an empty object.
var ErrEmptyExtraction = errors.New("empty contract extraction")

// SchemaName labels extraction calls in traces.
const SchemaName = "contract"

// Extractor turns raw contract prose into a Contract with a structured-output model.
type Extractor struct {
	client perception.StructuredClient
	prompt string
}

// NewExtractor returns an Extractor over client.
func NewExtractor(client perception.StructuredClient) *Extractor {
	return &Extractor{client: client, prompt: extractionPrompt}
}

// Prompt returns the instruction body sent before the contract text.
func (e *Extractor) Prompt() string { return e.prompt }

// Extract asks the model for the contract's penalty rules.
func (e *Extractor) Extract(ctx context.Context, text string) (*Contract, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: contract text is empty", ErrInvalidContract)
	}

	start := time.Now()
	prompt := strings.TrimSpace(e.prompt) + "\n\nContract text:\n" + strings.TrimSpace(text) + "\n"
	reply, err := e.client.GenerateStructured(ctx, prompt, perception.ResponseSchema{
		Name:   SchemaName,
		Schema: JSONSchema(),
	})
	if err != nil {
		logging.ContractError("Contract extraction failed after %v: %v", time.Since(start), err)
		return nil, fmt.Errorf("contract extraction: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(reply), &fields); err != nil {
		return nil, fmt.Errorf("%w: reply is not valid JSON: %v", ErrInvalidContract, err)
	}
	if len(fields) == 0 {
		return nil, ErrEmptyExtraction
	}

	c, err := Parse([]byte(reply))
	if err != nil {
		return nil, err
	}
	logging.Contract("Extracted contract %q: %d parties, %d rules in %v",
		c.ContractName, len(c.InvolvedParties), len(c.PenaltyRules), time.Since(start))
	return c, nil
}

// JSONSchema describes Contract for structured-output models.
func JSONSchema() map[string]interface{} {
	str := map[string]interface{}{"type": "string"}
	closed := func(props map[string]interface{}, required ...string) map[string]interface{} {
		return map[string]interface{}{
			"type":                 "object",
			"properties":           props,
			"required":             required,
			"additionalProperties": false,
		}
	}

	action := closed(map[string]interface{}{
		"description": str,
		"triggerCond": str,
		"note":        str,
	}, "description", "triggerCond", "note")

	rule := closed(map[string]interface{}{
		"representor": str,
		"deonticType": map[string]interface{}{"type": "string", "enum": []string{string(FailingWhich), string(LCTC)}},
		"action":      action,
	}, "representor", "deonticType", "action")

	party := closed(map[string]interface{}{"name": str}, "name")

	return closed(map[string]interface{}{
		"contractName":    str,
		"involvedParties": map[string]interface{}{"type": "array", "items": party},
		"penaltyRules":    map[string]interface{}{"type": "array", "items": rule},
	}, "contractName", "involvedParties", "penaltyRules")
}
