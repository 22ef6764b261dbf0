// Package contract models penalty clauses extracted from commercial contracts
// and compiles each clause's trigger condition into logic.
package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// DeonticType labels a step in a penalty sequence.
type DeonticType string

const (
	// FailingWhich is an intermediate compensation step.
	FailingWhich DeonticType = "Failing Which"
	// LCTC (last chance to compensate) is the terminal step.
	LCTC DeonticType = "LCTC"
)

// ErrInvalidContract marks a contract that fails validation.
var ErrInvalidContract = errors.New("invalid contract")

// Party is a party named in the contract.
type Party struct {
	Name string `json:"name"`
}

// Action describes what a rule requires and when it applies.
type Action struct {
	Description string `json:"description"`
	TriggerCond string `json:"triggerCond"`
	Note        string `json:"note"`
}

// PenaltyRule is one step of the penalty sequence. Slice order is execution order.
type PenaltyRule struct {
	Representor string      `json:"representor"`
	DeonticType DeonticType `json:"deonticType"`
	Action      Action      `json:"action"`
}

// Contract is the structured form of a contract's penalty clauses.
type Contract struct {
	ContractName    string        `json:"contractName"`
	InvolvedParties []Party       `json:"involvedParties"`
	PenaltyRules    []PenaltyRule `json:"penaltyRules"`
}

// Parse decodes and validates a contract document.
func Parse(data []byte) (*Contract, error) {
	var c Contract
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContract, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads a contract JSON file.
func Load(path string) (*Contract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read contract: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Validate checks the fields the compiler relies on.
func (c *Contract) Validate() error {
	if strings.TrimSpace(c.ContractName) == "" {
		return fmt.Errorf("%w: contractName is empty", ErrInvalidContract)
	}
	for i, r := range c.PenaltyRules {
		switch r.DeonticType {
		case FailingWhich, LCTC:
		default:
			return fmt.Errorf("%w: penaltyRules[%d].deonticType %q is not %q or %q",
				ErrInvalidContract, i, r.DeonticType, FailingWhich, LCTC)
		}
	}
	return nil
}

// DirName is the contract name with spaces replaced by underscores.
func (c *Contract) DirName() string {
	return strings.ReplaceAll(c.ContractName, " ", "_")
}

// TriggerConditions returns every rule's trigger condition in rule order.
func (c *Contract) TriggerConditions() []string {
	out := make([]string, len(c.PenaltyRules))
	for i, r := range c.PenaltyRules {
		out[i] = r.Action.TriggerCond
	}
	return out
}
