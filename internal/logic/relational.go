package logic

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RelationalLogic is the compilation unit: the source text plus the top-level
// sentences parsed from it, in parse order. Order determines assertion order in
// generated solver scripts.
type RelationalLogic struct {
	OriginalSentence string
	Sentences        []Sentence
}

// NewRelationalLogic returns an empty unit for the given source text.
func NewRelationalLogic(original string) *RelationalLogic {
	return &RelationalLogic{OriginalSentence: original}
}

// Append adds a top-level sentence.
func (r *RelationalLogic) Append(s Sentence) {
	r.Sentences = append(r.Sentences, s)
}

// Len returns the number of top-level sentences.
func (r *RelationalLogic) Len() int {
	return len(r.Sentences)
}

// Children returns the top-level sentences.
func (r *RelationalLogic) Children() []Node {
	nodes := make([]Node, len(r.Sentences))
	for i, s := range r.Sentences {
		nodes[i] = s
	}
	return nodes
}

// String renders each sentence on its own line, each followed by a newline.
func (r *RelationalLogic) String() string {
	var sb strings.Builder
	for _, s := range r.Sentences {
		sb.WriteString(Text(s))
		sb.WriteString("\n")
	}
	return sb.String()
}

// ToDocument projects the unit, including the rendered text.
func (r *RelationalLogic) ToDocument() Document {
	sentences := make([]any, len(r.Sentences))
	for i, s := range r.Sentences {
		sentences[i] = s.ToDocument()
	}
	return Document{
		KeyNodeType:         TypeRelationalLogic,
		"original_sentence": r.OriginalSentence,
		"sentences":         sentences,
		"text":              r.String(),
	}
}

// RelationalLogicFromDocument rebuilds a unit. The "text" field is derived and ignored.
func RelationalLogicFromDocument(v any) (*RelationalLogic, error) {
	d, err := asDocument(v)
	if err != nil {
		return nil, err
	}
	if d.NodeType() != TypeRelationalLogic {
		return nil, fmt.Errorf("%w: expected %s, got %q", ErrInvalidDocument, TypeRelationalLogic, d.NodeType())
	}
	original, err := d.str("original_sentence")
	if err != nil {
		return nil, err
	}

	r := NewRelationalLogic(original)
	var items []any
	switch s := d["sentences"].(type) {
	case []any:
		items = s
	case []Document:
		for _, doc := range s {
			items = append(items, doc)
		}
	case nil:
	default:
		return nil, fmt.Errorf("%w: sentences must be a list, got %T", ErrInvalidDocument, s)
	}

	for i, item := range items {
		s, err := SentenceFromDocument(item)
		if err != nil {
			return nil, fmt.Errorf("sentence %d: %w", i, err)
		}
		r.Append(s)
	}
	return r, nil
}

// MarshalJSON encodes the unit as its document.
func (r *RelationalLogic) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ToDocument())
}

// UnmarshalJSON decodes a document produced by MarshalJSON.
func (r *RelationalLogic) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	decoded, err := RelationalLogicFromDocument(raw)
	if err != nil {
		return err
	}
	*r = *decoded
	return nil
}
