// Package oracle defines the decision boundary between the decomposition engine
// and whatever answers its questions (usually an LLM).
//
// The engine never inspects how an oracle decides. It sends a prompt template, the
// text under consideration and the expected response shape, then validates the
// structured reply against that shape. A reply outside the shape is a contract
// violation; a transport failure is a call failure. Neither is retried here.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Oracle answers one classification or extraction question per call.
type Oracle interface {
	Classify(ctx context.Context, template Template, input string, schema Schema) (json.RawMessage, error)
}

// Func adapts a function to the Oracle interface.
type Func func(ctx context.Context, template Template, input string, schema Schema) (json.RawMessage, error)

// Classify calls f.
func (f Func) Classify(ctx context.Context, template Template, input string, schema Schema) (json.RawMessage, error) {
	return f(ctx, template, input, schema)
}

var (
	// ErrCallFailure marks transport, timeout and backend errors.
	ErrCallFailure = errors.New("oracle call failed")

	// ErrContractViolation marks replies that do not fit the expected response shape.
	ErrContractViolation = errors.New("oracle contract violation")
)

// CallError wraps a failed oracle call.
type CallError struct {
	Schema Schema
	Input  string
	Err    error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("oracle call failed (%s on %q): %v", e.Schema, e.Input, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrCallFailure) true.
func (e *CallError) Is(target error) bool { return target == ErrCallFailure }

// ContractError reports a reply that is not a member of the expected shape.
type ContractError struct {
	Schema Schema
	Field  string
	Value  string
	Reason string
}

func (e *ContractError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("oracle contract violation (%s): %s", e.Schema, e.Reason)
	}
	return fmt.Sprintf("oracle contract violation (%s.%s=%q): %s", e.Schema, e.Field, e.Value, e.Reason)
}

// Is makes errors.Is(err, ErrContractViolation) true.
func (e *ContractError) Is(target error) bool { return target == ErrContractViolation }
