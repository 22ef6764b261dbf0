package logic

import "fmt"

// Node is anything that can appear in a sentence tree: a Term or a Sentence.
type Node interface {
	fmt.Stringer
	// Children returns the direct children in a fixed order.
	Children() []Node
	// ToDocument projects the node into a tagged key-value document.
	ToDocument() Document
}

// Term is either a Constant or a Variable. Terms are leaf values.
type Term interface {
	Node
	// Identifier returns the case-preserving name of the term.
	Identifier() string
	term()
}

// Constant names a specific individual.
type Constant struct {
	Name string
}

// Variable names a placeholder bound by a QuantifiedSentence. Binding is nominal:
// a Variable matches occurrences of a Constant with the same identifier.
type Variable struct {
	Name string
}

// NewConstant returns a Constant, rejecting empty identifiers.
func NewConstant(name string) (Constant, error) {
	if name == "" {
		return Constant{}, fmt.Errorf("%w: constant name is empty", ErrInvalidTerm)
	}
	return Constant{Name: name}, nil
}

// NewVariable returns a Variable, rejecting empty identifiers.
func NewVariable(name string) (Variable, error) {
	if name == "" {
		return Variable{}, fmt.Errorf("%w: variable name is empty", ErrInvalidTerm)
	}
	return Variable{Name: name}, nil
}

func (c Constant) term()              {}
func (c Constant) Identifier() string { return c.Name }
func (c Constant) String() string     { return c.Name }
func (c Constant) Children() []Node   { return nil }

func (c Constant) ToDocument() Document {
	return Document{
		KeyNodeType: TypeConstant,
		"name":      c.Name,
	}
}

func (v Variable) term()              {}
func (v Variable) Identifier() string { return v.Name }
func (v Variable) String() string     { return v.Name }
func (v Variable) Children() []Node   { return nil }

func (v Variable) ToDocument() Document {
	return Document{
		KeyNodeType: TypeVariable,
		"name":      v.Name,
	}
}
