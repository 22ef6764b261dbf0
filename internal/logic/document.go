package logic

import (
	"fmt"
)

// Document is the tagged key-value projection of a node. Every document carries
// a node_type discriminator plus every field of its variant.
type Document map[string]any

// KeyNodeType is the discriminator key shared by all documents.
const KeyNodeType = "node_type"

// Node type discriminators.
const (
	TypeConstant         = "Constant"
	TypeVariable         = "Variable"
	TypeAdjective        = "RelationAdjective"
	TypeIntransitiveVerb = "RelationIntransitiveVerb"
	TypeTransitiveVerb   = "RelationTransitiveVerb"
	TypeDitransitiveVerb = "RelationDitransitiveVerb"
	TypeBinaryOperator   = "BinaryOperator"
	TypeUnaryOperator    = "UnaryOperator"
	TypeQuantified       = "QuantifiedSentence"
	TypeRelationalLogic  = "RelationalLogic"
)

// NodeType returns the discriminator, or "" when missing.
func (d Document) NodeType() string {
	s, _ := d[KeyNodeType].(string)
	return s
}

type documentPass struct{}

func (documentPass) VisitAdjective(a *Adjective) Document {
	return Document{
		KeyNodeType: TypeAdjective,
		"adjective": a.Adjective,
		"obj":       a.Operand.ToDocument(),
	}
}

func (documentPass) VisitIntransitive(i *IntransitiveVerb) Document {
	return Document{
		KeyNodeType: TypeIntransitiveVerb,
		"verb":      i.Verb,
		"subject":   i.Subject.ToDocument(),
	}
}

func (documentPass) VisitTransitive(t *TransitiveVerb) Document {
	return Document{
		KeyNodeType: TypeTransitiveVerb,
		"verb":      t.Verb,
		"subject":   t.Subject.ToDocument(),
		"obj":       t.Object.ToDocument(),
	}
}

func (documentPass) VisitDitransitive(d *DitransitiveVerb) Document {
	return Document{
		KeyNodeType:    TypeDitransitiveVerb,
		"verb":         d.Verb,
		"subject":      d.Subject.ToDocument(),
		"direct_obj":   d.DirectObject.ToDocument(),
		"indirect_obj": d.IndirectObject.ToDocument(),
	}
}

func (p documentPass) VisitBinary(b *BinaryOperator) Document {
	return Document{
		KeyNodeType: TypeBinaryOperator,
		"operator":  string(b.Operator),
		"left":      Walk[Document](b.Left, p),
		"right":     Walk[Document](b.Right, p),
	}
}

func (p documentPass) VisitUnary(u *UnaryOperator) Document {
	return Document{
		KeyNodeType: TypeUnaryOperator,
		"operator":  string(u.Operator),
		"sentence":  Walk[Document](u.Inner, p),
	}
}

func (p documentPass) VisitQuantified(q *QuantifiedSentence) Document {
	return Document{
		KeyNodeType:  TypeQuantified,
		"quantifier": string(q.Quantifier),
		"variable":   q.Variable.ToDocument(),
		"sentence":   Walk[Document](q.Body, p),
	}
}

func (a *Adjective) ToDocument() Document          { return Walk[Document](a, documentPass{}) }
func (i *IntransitiveVerb) ToDocument() Document   { return Walk[Document](i, documentPass{}) }
func (t *TransitiveVerb) ToDocument() Document     { return Walk[Document](t, documentPass{}) }
func (d *DitransitiveVerb) ToDocument() Document   { return Walk[Document](d, documentPass{}) }
func (b *BinaryOperator) ToDocument() Document     { return Walk[Document](b, documentPass{}) }
func (u *UnaryOperator) ToDocument() Document      { return Walk[Document](u, documentPass{}) }
func (q *QuantifiedSentence) ToDocument() Document { return Walk[Document](q, documentPass{}) }

// =============================================================================
// DECODING
// =============================================================================

// SentenceFromDocument rebuilds a sentence tree from its document. It accepts
// both Document values and the map[string]any shape produced by encoding/json.
func SentenceFromDocument(v any) (Sentence, error) {
	d, err := asDocument(v)
	if err != nil {
		return nil, err
	}

	switch d.NodeType() {
	case TypeAdjective:
		adj, err := d.str("adjective")
		if err != nil {
			return nil, err
		}
		obj, err := d.term("obj")
		if err != nil {
			return nil, err
		}
		return &Adjective{Adjective: adj, Operand: obj}, nil

	case TypeIntransitiveVerb:
		verb, err := d.str("verb")
		if err != nil {
			return nil, err
		}
		subj, err := d.term("subject")
		if err != nil {
			return nil, err
		}
		return &IntransitiveVerb{Verb: verb, Subject: subj}, nil

	case TypeTransitiveVerb:
		verb, err := d.str("verb")
		if err != nil {
			return nil, err
		}
		subj, err := d.term("subject")
		if err != nil {
			return nil, err
		}
		obj, err := d.term("obj")
		if err != nil {
			return nil, err
		}
		return &TransitiveVerb{Verb: verb, Subject: subj, Object: obj}, nil

	case TypeDitransitiveVerb:
		verb, err := d.str("verb")
		if err != nil {
			return nil, err
		}
		subj, err := d.term("subject")
		if err != nil {
			return nil, err
		}
		direct, err := d.term("direct_obj")
		if err != nil {
			return nil, err
		}
		indirect, err := d.term("indirect_obj")
		if err != nil {
			return nil, err
		}
		return &DitransitiveVerb{Verb: verb, Subject: subj, DirectObject: direct, IndirectObject: indirect}, nil

	case TypeBinaryOperator:
		op, err := d.str("operator")
		if err != nil {
			return nil, err
		}
		left, err := SentenceFromDocument(d["left"])
		if err != nil {
			return nil, fmt.Errorf("left: %w", err)
		}
		right, err := SentenceFromDocument(d["right"])
		if err != nil {
			return nil, fmt.Errorf("right: %w", err)
		}
		return NewBinary(Operator(op), left, right)

	case TypeUnaryOperator:
		op, err := d.str("operator")
		if err != nil {
			return nil, err
		}
		inner, err := SentenceFromDocument(d["sentence"])
		if err != nil {
			return nil, fmt.Errorf("sentence: %w", err)
		}
		return NewUnary(UnaryOp(op), inner)

	case TypeQuantified:
		q, err := d.str("quantifier")
		if err != nil {
			return nil, err
		}
		t, err := d.term("variable")
		if err != nil {
			return nil, err
		}
		v, ok := t.(Variable)
		if !ok {
			return nil, fmt.Errorf("%w: quantifier binds %s, want Variable", ErrInvalidDocument, t.ToDocument().NodeType())
		}
		body, err := SentenceFromDocument(d["sentence"])
		if err != nil {
			return nil, fmt.Errorf("sentence: %w", err)
		}
		return NewQuantified(Quantifier(q), v, body)
	}

	return nil, fmt.Errorf("%w: unknown sentence node_type %q", ErrInvalidDocument, d.NodeType())
}

// TermFromDocument rebuilds a Constant or Variable.
func TermFromDocument(v any) (Term, error) {
	d, err := asDocument(v)
	if err != nil {
		return nil, err
	}
	name, err := d.str("name")
	if err != nil {
		return nil, err
	}
	switch d.NodeType() {
	case TypeConstant:
		return NewConstant(name)
	case TypeVariable:
		return NewVariable(name)
	}
	return nil, fmt.Errorf("%w: unknown term node_type %q", ErrInvalidDocument, d.NodeType())
}

func asDocument(v any) (Document, error) {
	switch d := v.(type) {
	case Document:
		return d, nil
	case map[string]any:
		return Document(d), nil
	case nil:
		return nil, fmt.Errorf("%w: missing node", ErrInvalidDocument)
	}
	return nil, fmt.Errorf("%w: expected object, got %T", ErrInvalidDocument, v)
}

func (d Document) str(key string) (string, error) {
	s, ok := d[key].(string)
	if !ok {
		return "", fmt.Errorf("%w: %s.%s is not a string", ErrInvalidDocument, d.NodeType(), key)
	}
	return s, nil
}

func (d Document) term(key string) (Term, error) {
	t, err := TermFromDocument(d[key])
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", d.NodeType(), key, err)
	}
	return t, nil
}
