package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"relogic/internal/logging"
)

// Decider asks typed questions of an Oracle. It renders the matching template,
// calls the oracle once and validates the reply against the schema.
type Decider struct {
	oracle  Oracle
	prompts PromptSet
}

// NewDecider returns a Decider. A nil prompt set selects DefaultPrompts.
func NewDecider(o Oracle, prompts PromptSet) *Decider {
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	return &Decider{oracle: o, prompts: prompts}
}

// Prompts returns the templates in use.
func (d *Decider) Prompts() PromptSet { return d.prompts }

func (d *Decider) ask(ctx context.Context, schema Schema, input string) (json.RawMessage, error) {
	start := time.Now()
	raw, err := d.oracle.Classify(ctx, d.prompts.Template(schema), input, schema)
	elapsed := time.Since(start)

	if err != nil {
		var ce *CallError
		var ve *ContractError
		if !errors.As(err, &ce) && !errors.As(err, &ve) {
			err = &CallError{Schema: schema, Input: input, Err: err}
		}
		logging.OracleError("%s failed after %v: %v", schema, elapsed, err)
		logging.Audit().OracleCall(string(schema), input, elapsed, err)
		return nil, err
	}

	logging.OracleDebug("%s(%q) -> %s (%v)", schema, input, truncate(string(raw), 200), elapsed)
	logging.Audit().OracleCall(string(schema), input, elapsed, nil)
	return raw, nil
}

// contract logs and passes through validation failures.
func contract[T any](v T, err error) (T, error) {
	if err != nil {
		logging.OracleWarn("%v", err)
	}
	return v, err
}

// Rewrite normalizes quantifier phrasing. The oracle may return the text unchanged.
func (d *Decider) Rewrite(ctx context.Context, text string) (string, error) {
	raw, err := d.ask(ctx, SchemaRewrite, text)
	if err != nil {
		return "", err
	}
	return contract(parseRewrite(raw))
}

// SentenceKind classifies text as atomic, quantified, compound or negated.
func (d *Decider) SentenceKind(ctx context.Context, text string) (SentenceKind, error) {
	raw, err := d.ask(ctx, SchemaSentenceKind, text)
	if err != nil {
		return "", err
	}
	return contract(parseSentenceKind(raw))
}

// Quantifier extracts the quantifier, bound variable and residual sentence.
func (d *Decider) Quantifier(ctx context.Context, text string) (QuantifierReply, error) {
	raw, err := d.ask(ctx, SchemaQuantified, text)
	if err != nil {
		return QuantifierReply{}, err
	}
	return contract(parseQuantifier(raw))
}

// Binary splits text around its main binary connective.
func (d *Decider) Binary(ctx context.Context, text string) (BinaryReply, error) {
	raw, err := d.ask(ctx, SchemaBinary, text)
	if err != nil {
		return BinaryReply{}, err
	}
	return contract(parseBinary(raw))
}

// Unary strips the negation from text.
func (d *Decider) Unary(ctx context.Context, text string) (UnaryReply, error) {
	raw, err := d.ask(ctx, SchemaUnary, text)
	if err != nil {
		return UnaryReply{}, err
	}
	return contract(parseUnary(raw))
}

// RelationKind classifies an atomic sentence by arity.
func (d *Decider) RelationKind(ctx context.Context, text string) (RelationKind, error) {
	raw, err := d.ask(ctx, SchemaRelationKind, text)
	if err != nil {
		return "", err
	}
	return contract(parseRelationKind(raw))
}

func (d *Decider) Adjective(ctx context.Context, text string) (AdjectiveReply, error) {
	raw, err := d.ask(ctx, SchemaAdjective, text)
	if err != nil {
		return AdjectiveReply{}, err
	}
	return contract(parseAdjective(raw))
}

func (d *Decider) Intransitive(ctx context.Context, text string) (IntransitiveReply, error) {
	raw, err := d.ask(ctx, SchemaIntransitive, text)
	if err != nil {
		return IntransitiveReply{}, err
	}
	return contract(parseIntransitive(raw))
}

func (d *Decider) Transitive(ctx context.Context, text string) (TransitiveReply, error) {
	raw, err := d.ask(ctx, SchemaTransitive, text)
	if err != nil {
		return TransitiveReply{}, err
	}
	return contract(parseTransitive(raw))
}

func (d *Decider) Ditransitive(ctx context.Context, text string) (DitransitiveReply, error) {
	raw, err := d.ask(ctx, SchemaDitransitive, text)
	if err != nil {
		return DitransitiveReply{}, err
	}
	return contract(parseDitransitive(raw))
}
