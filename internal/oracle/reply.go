package oracle

import (
	"encoding/json"
	"fmt"

	"relogic/internal/logic"
)

// SentenceKind is the top-level classification of a sentence.
type SentenceKind string

const (
	KindAtomic     SentenceKind = "Atomic"
	KindQuantified SentenceKind = "Quantified"
	KindCompound   SentenceKind = "Compound"
	KindNegated    SentenceKind = "Negated"
)

// RelationKind is the arity class of an atomic sentence.
type RelationKind string

const (
	RelationAdjective    RelationKind = "Adjective"
	RelationIntransitive RelationKind = "Intransitive"
	RelationTransitive   RelationKind = "Transitive"
	RelationDitransitive RelationKind = "Ditransitive"
)

// The classification schemas answer with a letter; these tables map it to a kind.
var (
	sentenceKinds = map[string]SentenceKind{
		"A": KindAtomic,
		"B": KindQuantified,
		"C": KindCompound,
		"D": KindNegated,
	}
	relationKinds = map[string]RelationKind{
		"A": RelationAdjective,
		"B": RelationIntransitive,
		"C": RelationTransitive,
		"D": RelationDitransitive,
	}
)

// QuantifierReply is the quantifier-extraction answer.
type QuantifierReply struct {
	Quantifier logic.Quantifier
	Variable   string
	Residual   string
}

// BinaryReply is the binary-connective extraction answer.
type BinaryReply struct {
	Operator logic.Operator
	Left     string
	Right    string
}

// UnaryReply is the negation extraction answer.
type UnaryReply struct {
	Operator logic.UnaryOp
	Operand  string
}

// AdjectiveReply extracts adjective(obj).
type AdjectiveReply struct {
	Adjective string
	Object    string
}

// IntransitiveReply extracts verb(subject).
type IntransitiveReply struct {
	Verb    string
	Subject string
}

// TransitiveReply extracts verb(subject, obj).
type TransitiveReply struct {
	Subject string
	Verb    string
	Object  string
}

// DitransitiveReply extracts verb(subject, indirect_obj, direct_obj).
type DitransitiveReply struct {
	Subject        string
	Verb           string
	IndirectObject string
	DirectObject   string
}

// fields decodes a reply object and returns the requested string fields. Unknown
// fields are ignored. A missing or non-string field violates the contract.
func fields(schema Schema, raw json.RawMessage, names ...string) (map[string]string, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, &ContractError{Schema: schema, Reason: fmt.Sprintf("reply is not a JSON object: %s", truncate(string(raw), 120))}
	}

	out := make(map[string]string, len(names))
	for _, name := range names {
		v, ok := obj[name]
		if !ok {
			return nil, &ContractError{Schema: schema, Field: name, Reason: "field missing"}
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return nil, &ContractError{Schema: schema, Field: name, Value: string(v), Reason: "field is not a string"}
		}
		out[name] = s
	}
	return out, nil
}

// nonEmpty rejects blank extraction fields. Relation arguments become Constant
// names, which must not be empty.
func nonEmpty(schema Schema, f map[string]string, names ...string) error {
	for _, name := range names {
		if f[name] == "" {
			return &ContractError{Schema: schema, Field: name, Reason: "field is empty"}
		}
	}
	return nil
}

func parseSentenceKind(raw json.RawMessage) (SentenceKind, error) {
	f, err := fields(SchemaSentenceKind, raw, "answer")
	if err != nil {
		return "", err
	}
	kind, ok := sentenceKinds[f["answer"]]
	if !ok {
		return "", &ContractError{Schema: SchemaSentenceKind, Field: "answer", Value: f["answer"], Reason: "not one of A, B, C, D"}
	}
	return kind, nil
}

func parseRelationKind(raw json.RawMessage) (RelationKind, error) {
	f, err := fields(SchemaRelationKind, raw, "answer")
	if err != nil {
		return "", err
	}
	kind, ok := relationKinds[f["answer"]]
	if !ok {
		return "", &ContractError{Schema: SchemaRelationKind, Field: "answer", Value: f["answer"], Reason: "not one of A, B, C, D"}
	}
	return kind, nil
}

func parseQuantifier(raw json.RawMessage) (QuantifierReply, error) {
	f, err := fields(SchemaQuantified, raw, "quantifier", "variable", "sentence_without_quantifier")
	if err != nil {
		return QuantifierReply{}, err
	}
	q, err := logic.ParseQuantifier(f["quantifier"])
	if err != nil {
		return QuantifierReply{}, &ContractError{Schema: SchemaQuantified, Field: "quantifier", Value: f["quantifier"], Reason: err.Error()}
	}
	return QuantifierReply{Quantifier: q, Variable: f["variable"], Residual: f["sentence_without_quantifier"]}, nil
}

func parseBinary(raw json.RawMessage) (BinaryReply, error) {
	f, err := fields(SchemaBinary, raw, "operator", "left_operand", "right_operand")
	if err != nil {
		return BinaryReply{}, err
	}
	op, err := logic.ParseOperator(f["operator"])
	if err != nil {
		return BinaryReply{}, &ContractError{Schema: SchemaBinary, Field: "operator", Value: f["operator"], Reason: err.Error()}
	}
	return BinaryReply{Operator: op, Left: f["left_operand"], Right: f["right_operand"]}, nil
}

func parseUnary(raw json.RawMessage) (UnaryReply, error) {
	f, err := fields(SchemaUnary, raw, "operator", "operand")
	if err != nil {
		return UnaryReply{}, err
	}
	op, err := logic.ParseUnaryOp(f["operator"])
	if err != nil {
		return UnaryReply{}, &ContractError{Schema: SchemaUnary, Field: "operator", Value: f["operator"], Reason: err.Error()}
	}
	return UnaryReply{Operator: op, Operand: f["operand"]}, nil
}

func parseAdjective(raw json.RawMessage) (AdjectiveReply, error) {
	f, err := fields(SchemaAdjective, raw, "adjective", "obj")
	if err == nil {
		err = nonEmpty(SchemaAdjective, f, "adjective", "obj")
	}
	if err != nil {
		return AdjectiveReply{}, err
	}
	return AdjectiveReply{Adjective: f["adjective"], Object: f["obj"]}, nil
}

func parseIntransitive(raw json.RawMessage) (IntransitiveReply, error) {
	f, err := fields(SchemaIntransitive, raw, "verb", "subject")
	if err == nil {
		err = nonEmpty(SchemaIntransitive, f, "verb", "subject")
	}
	if err != nil {
		return IntransitiveReply{}, err
	}
	return IntransitiveReply{Verb: f["verb"], Subject: f["subject"]}, nil
}

func parseTransitive(raw json.RawMessage) (TransitiveReply, error) {
	f, err := fields(SchemaTransitive, raw, "subject", "verb", "obj")
	if err == nil {
		err = nonEmpty(SchemaTransitive, f, "subject", "verb", "obj")
	}
	if err != nil {
		return TransitiveReply{}, err
	}
	return TransitiveReply{Subject: f["subject"], Verb: f["verb"], Object: f["obj"]}, nil
}

func parseDitransitive(raw json.RawMessage) (DitransitiveReply, error) {
	f, err := fields(SchemaDitransitive, raw, "subject", "verb", "indirect_obj", "direct_obj")
	if err == nil {
		err = nonEmpty(SchemaDitransitive, f, "subject", "verb", "indirect_obj", "direct_obj")
	}
	if err != nil {
		return DitransitiveReply{}, err
	}
	return DitransitiveReply{
		Subject:        f["subject"],
		Verb:           f["verb"],
		IndirectObject: f["indirect_obj"],
		DirectObject:   f["direct_obj"],
	}, nil
}

func parseRewrite(raw json.RawMessage) (string, error) {
	f, err := fields(SchemaRewrite, raw, "rephrased")
	if err != nil {
		return "", err
	}
	return f["rephrased"], nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
