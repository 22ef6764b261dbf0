package oracle

import "fmt"

// Schema names one response shape. Prompt templates are keyed by the same names.
type Schema string

const (
	SchemaRewrite      Schema = "rephrase"
	SchemaSentenceKind Schema = "choose_parser"
	SchemaQuantified   Schema = "quantified"
	SchemaBinary       Schema = "binary_logical"
	SchemaUnary        Schema = "unary_logical"
	SchemaRelationKind Schema = "choose_relation"
	SchemaAdjective    Schema = "adjective"
	SchemaIntransitive Schema = "intransitive"
	SchemaTransitive   Schema = "transitive"
	SchemaDitransitive Schema = "ditransitive"
)

// AllSchemas lists every response shape in decision order.
var AllSchemas = []Schema{
	SchemaRewrite,
	SchemaSentenceKind,
	SchemaQuantified,
	SchemaBinary,
	SchemaUnary,
	SchemaRelationKind,
	SchemaAdjective,
	SchemaIntransitive,
	SchemaTransitive,
	SchemaDitransitive,
}

// ParseSchema validates a schema name.
func ParseSchema(s string) (Schema, error) {
	for _, known := range AllSchemas {
		if string(known) == s {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown oracle schema %q", s)
}

// JSONSchema returns the JSON schema describing the reply. Every object is closed
// and every field required so that strict structured-output modes accept it.
func (s Schema) JSONSchema() map[string]interface{} {
	switch s {
	case SchemaRewrite:
		return object("rephrased")
	case SchemaSentenceKind, SchemaRelationKind:
		return object("answer", enumField("answer", "A", "B", "C", "D"))
	case SchemaQuantified:
		return object("quantifier", enumField("quantifier", "ForAll", "ThereExists"), "variable", "sentence_without_quantifier")
	case SchemaBinary:
		return object("operator", enumField("operator", "And", "Or", "If", "OnlyIf", "IfAndOnlyIf"), "left_operand", "right_operand")
	case SchemaUnary:
		return object("operator", enumField("operator", "Not"), "operand")
	case SchemaAdjective:
		return object("adjective", "obj")
	case SchemaIntransitive:
		return object("verb", "subject")
	case SchemaTransitive:
		return object("subject", "verb", "obj")
	case SchemaDitransitive:
		return object("subject", "verb", "indirect_obj", "direct_obj")
	}
	return map[string]interface{}{"type": "object"}
}

type enumSpec struct {
	name   string
	values []string
}

func enumField(name string, values ...string) enumSpec {
	return enumSpec{name: name, values: values}
}

// object builds a closed object schema. Arguments are field names, optionally
// followed by an enumSpec that constrains the preceding field.
func object(fields ...interface{}) map[string]interface{} {
	props := make(map[string]interface{})
	var required []string
	for _, f := range fields {
		switch v := f.(type) {
		case string:
			props[v] = map[string]interface{}{"type": "string"}
			required = append(required, v)
		case enumSpec:
			props[v.name] = map[string]interface{}{"type": "string", "enum": v.values}
		}
	}
	return map[string]interface{}{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}
