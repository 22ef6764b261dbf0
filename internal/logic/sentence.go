package logic

import "fmt"

// Sentence is a first-order-logic formula. The set of implementations is closed:
// relation nodes (Adjective, IntransitiveVerb, TransitiveVerb, DitransitiveVerb),
// connectives (BinaryOperator, UnaryOperator) and the binder QuantifiedSentence.
// Passes over a tree implement Visitor, so a new variant fails to compile until
// every pass handles it.
type Sentence interface {
	Node
	sentence()
}

// Operator is a binary connective tag.
type Operator string

const (
	And         Operator = "And"
	Or          Operator = "Or"
	If          Operator = "If"
	OnlyIf      Operator = "OnlyIf"
	IfAndOnlyIf Operator = "IfAndOnlyIf"
)

// Symbol returns the infix symbol used by the text rendering.
func (o Operator) Symbol() string {
	switch o {
	case And:
		return "∧"
	case Or:
		return "∨"
	case If:
		return "→"
	case OnlyIf:
		return "←"
	case IfAndOnlyIf:
		return "↔"
	}
	return string(o)
}

// Valid reports whether o is one of the enumerated connectives.
func (o Operator) Valid() bool {
	switch o {
	case And, Or, If, OnlyIf, IfAndOnlyIf:
		return true
	}
	return false
}

// ParseOperator validates a connective tag.
func ParseOperator(s string) (Operator, error) {
	op := Operator(s)
	if !op.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidOperator, s)
	}
	return op, nil
}

// UnaryOp is a unary connective tag. Not is the only member.
type UnaryOp string

const Not UnaryOp = "Not"

// ParseUnaryOp validates a unary connective tag.
func ParseUnaryOp(s string) (UnaryOp, error) {
	if UnaryOp(s) != Not {
		return "", fmt.Errorf("%w: %q", ErrInvalidOperator, s)
	}
	return Not, nil
}

// Quantifier is a binder tag.
type Quantifier string

const (
	ForAll      Quantifier = "ForAll"
	ThereExists Quantifier = "ThereExists"
)

// Symbol returns ∀ or ∃.
func (q Quantifier) Symbol() string {
	if q == ThereExists {
		return "∃"
	}
	return "∀"
}

// ParseQuantifier validates a quantifier tag.
func ParseQuantifier(s string) (Quantifier, error) {
	switch Quantifier(s) {
	case ForAll, ThereExists:
		return Quantifier(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidQuantifier, s)
}

// =============================================================================
// RELATIONS
// =============================================================================

// Adjective is the unary relation adjective(operand).
type Adjective struct {
	Adjective string
	Operand   Term
}

// IntransitiveVerb is the unary relation verb(subject).
type IntransitiveVerb struct {
	Verb    string
	Subject Term
}

// TransitiveVerb is the binary relation verb(subject, object).
type TransitiveVerb struct {
	Verb    string
	Subject Term
	Object  Term
}

// DitransitiveVerb is the ternary relation verb(subject, indirectObject, directObject).
type DitransitiveVerb struct {
	Verb           string
	Subject        Term
	DirectObject   Term
	IndirectObject Term
}

// Relation is implemented by the four relation variants.
type Relation interface {
	Sentence
	// Predicate returns the adjective or verb naming the relation.
	Predicate() string
	// Arguments returns the terms in rendering order.
	Arguments() []Term
}

func (*Adjective) sentence()        {}
func (*IntransitiveVerb) sentence() {}
func (*TransitiveVerb) sentence()   {}
func (*DitransitiveVerb) sentence() {}

func (a *Adjective) Predicate() string        { return a.Adjective }
func (i *IntransitiveVerb) Predicate() string { return i.Verb }
func (t *TransitiveVerb) Predicate() string   { return t.Verb }
func (d *DitransitiveVerb) Predicate() string { return d.Verb }

func (a *Adjective) Arguments() []Term        { return []Term{a.Operand} }
func (i *IntransitiveVerb) Arguments() []Term { return []Term{i.Subject} }
func (t *TransitiveVerb) Arguments() []Term   { return []Term{t.Subject, t.Object} }
func (d *DitransitiveVerb) Arguments() []Term {
	return []Term{d.Subject, d.IndirectObject, d.DirectObject}
}

func (a *Adjective) Children() []Node        { return []Node{a.Operand} }
func (i *IntransitiveVerb) Children() []Node { return []Node{i.Subject} }
func (t *TransitiveVerb) Children() []Node   { return []Node{t.Subject, t.Object} }
func (d *DitransitiveVerb) Children() []Node {
	return []Node{d.Subject, d.IndirectObject, d.DirectObject}
}

// =============================================================================
// CONNECTIVES AND BINDERS
// =============================================================================

// BinaryOperator joins two sentences with a connective.
type BinaryOperator struct {
	Operator Operator
	Left     Sentence
	Right    Sentence
}

// UnaryOperator negates a sentence.
type UnaryOperator struct {
	Operator UnaryOp
	Inner    Sentence
}

// QuantifiedSentence binds Variable in Body.
type QuantifiedSentence struct {
	Quantifier Quantifier
	Variable   Variable
	Body       Sentence
}

// NewBinary builds a BinaryOperator, rejecting unknown connectives.
func NewBinary(op Operator, left, right Sentence) (*BinaryOperator, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOperator, string(op))
	}
	return &BinaryOperator{Operator: op, Left: left, Right: right}, nil
}

// NewUnary builds a UnaryOperator, rejecting anything but Not.
func NewUnary(op UnaryOp, inner Sentence) (*UnaryOperator, error) {
	if op != Not {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOperator, string(op))
	}
	return &UnaryOperator{Operator: op, Inner: inner}, nil
}

// NewQuantified builds a QuantifiedSentence, rejecting unknown quantifiers.
func NewQuantified(q Quantifier, v Variable, body Sentence) (*QuantifiedSentence, error) {
	if _, err := ParseQuantifier(string(q)); err != nil {
		return nil, err
	}
	if v.Name == "" {
		return nil, fmt.Errorf("%w: bound variable name is empty", ErrInvalidTerm)
	}
	return &QuantifiedSentence{Quantifier: q, Variable: v, Body: body}, nil
}

func (*BinaryOperator) sentence()     {}
func (*UnaryOperator) sentence()      {}
func (*QuantifiedSentence) sentence() {}

func (b *BinaryOperator) Children() []Node     { return []Node{b.Left, b.Right} }
func (u *UnaryOperator) Children() []Node      { return []Node{u.Inner} }
func (q *QuantifiedSentence) Children() []Node { return []Node{q.Variable, q.Body} }
