package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relogic/internal/logic"
	"relogic/internal/perception"
)

// replyWith returns an oracle that answers every question with reply.
func replyWith(reply string) Oracle {
	return Func(func(context.Context, Template, string, Schema) (json.RawMessage, error) {
		return json.RawMessage(reply), nil
	})
}

func TestTemplate_RenderFrames(t *testing.T) {
	prompts := DefaultPrompts()

	got := prompts.Template(SchemaSentenceKind).Render("Alice sings")
	assert.True(t, strings.HasSuffix(got, "\n\nNow, classify this\n\nSentence: 'Alice sings'\nAnswer: "), got)

	got = prompts.Template(SchemaRewrite).Render("Every dog barks")
	assert.True(t, strings.HasSuffix(got, "\n\nNow, it is your turn\n\nInput: \"Every dog barks\"\nRephrased: "), got)

	for _, s := range []Schema{SchemaQuantified, SchemaBinary, SchemaUnary, SchemaRelationKind, SchemaAdjective, SchemaIntransitive, SchemaTransitive, SchemaDitransitive} {
		got := prompts.Template(s).Render("Bob runs")
		assert.True(t, strings.HasSuffix(got, "Input: \"Bob runs\"\nOutput: "), "%s: %s", s, got)
	}
}

func TestTemplate_InputIsInsertedOnce(t *testing.T) {
	tpl := Template{Body: "body", Frame: frameOutput}
	assert.Equal(t, "body\n\nNow, it is your turn\n\nInput: \"say {input}\"\nOutput: ", tpl.Render("say {input}"))
}

func TestDefaultPrompts_CoverEverySchema(t *testing.T) {
	prompts := DefaultPrompts()
	require.Len(t, prompts, len(AllSchemas))
	for _, s := range AllSchemas {
		assert.NotEmpty(t, strings.TrimSpace(prompts[s].Body), s)
		assert.Equal(t, string(s), prompts[s].Name)
	}
	assert.Len(t, prompts.Bodies(), len(AllSchemas))
}

func TestLoadPrompts_Overrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "adjective.txt"), []byte("Custom adjective prompt."), 0644))

	prompts, err := LoadPrompts(dir)
	require.NoError(t, err)
	assert.Equal(t, "Custom adjective prompt.", prompts[SchemaAdjective].Body)
	assert.Equal(t, DefaultPrompts()[SchemaTransitive].Body, prompts[SchemaTransitive].Body)

	defaults, err := LoadPrompts("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPrompts(), defaults)
}

func TestLoadPrompts_Errors(t *testing.T) {
	_, err := LoadPrompts(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "transitive.txt"), []byte("  \n"), 0644))
	_, err = LoadPrompts(dir)
	assert.Error(t, err)

	file := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	_, err = LoadPrompts(file)
	assert.Error(t, err)
}

func TestSchema_JSONSchemaIsClosed(t *testing.T) {
	for _, s := range AllSchemas {
		js := s.JSONSchema()
		assert.Equal(t, "object", js["type"], s)
		assert.Equal(t, false, js["additionalProperties"], s)
		props, ok := js["properties"].(map[string]interface{})
		require.True(t, ok, s)
		required, ok := js["required"].([]string)
		require.True(t, ok, s)
		assert.Len(t, required, len(props), s)
	}

	_, err := ParseSchema("choose_parser")
	assert.NoError(t, err)
	_, err = ParseSchema("unknown")
	assert.Error(t, err)
}

func TestDecider_SentenceKind(t *testing.T) {
	tests := map[string]SentenceKind{"A": KindAtomic, "B": KindQuantified, "C": KindCompound, "D": KindNegated}
	for letter, want := range tests {
		d := NewDecider(replyWith(`{"answer":"`+letter+`"}`), nil)
		got, err := d.SentenceKind(context.Background(), "text")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestDecider_RelationKind(t *testing.T) {
	d := NewDecider(replyWith(`{"answer":"D"}`), nil)
	got, err := d.RelationKind(context.Background(), "John gave Mary a book")
	require.NoError(t, err)
	assert.Equal(t, RelationDitransitive, got)
}

func TestDecider_Extractions(t *testing.T) {
	ctx := context.Background()

	q, err := NewDecider(replyWith(`{"quantifier":"ThereExists","variable":"","sentence_without_quantifier":"x is a dog"}`), nil).Quantifier(ctx, "Some dog")
	require.NoError(t, err)
	assert.Equal(t, QuantifierReply{Quantifier: logic.ThereExists, Variable: "", Residual: "x is a dog"}, q)

	b, err := NewDecider(replyWith(`{"operator":"OnlyIf","left_operand":"a","right_operand":"b"}`), nil).Binary(ctx, "a only if b")
	require.NoError(t, err)
	assert.Equal(t, BinaryReply{Operator: logic.OnlyIf, Left: "a", Right: "b"}, b)

	u, err := NewDecider(replyWith(`{"operator":"Not","operand":"Bob runs"}`), nil).Unary(ctx, "Bob does not run")
	require.NoError(t, err)
	assert.Equal(t, UnaryReply{Operator: logic.Not, Operand: "Bob runs"}, u)

	a, err := NewDecider(replyWith(`{"adjective":"tall","obj":"Alice"}`), nil).Adjective(ctx, "Alice is tall")
	require.NoError(t, err)
	assert.Equal(t, AdjectiveReply{Adjective: "tall", Object: "Alice"}, a)

	i, err := NewDecider(replyWith(`{"verb":"sing","subject":"Alice","extra":1}`), nil).Intransitive(ctx, "Alice sings")
	require.NoError(t, err)
	assert.Equal(t, IntransitiveReply{Verb: "sing", Subject: "Alice"}, i)

	tr, err := NewDecider(replyWith(`{"subject":"Alice","verb":"love","obj":"Bob"}`), nil).Transitive(ctx, "Alice loves Bob")
	require.NoError(t, err)
	assert.Equal(t, TransitiveReply{Subject: "Alice", Verb: "love", Object: "Bob"}, tr)

	di, err := NewDecider(replyWith(`{"subject":"John","verb":"give","indirect_obj":"Mary","direct_obj":"a book"}`), nil).Ditransitive(ctx, "John gave Mary a book")
	require.NoError(t, err)
	assert.Equal(t, DitransitiveReply{Subject: "John", Verb: "give", IndirectObject: "Mary", DirectObject: "a book"}, di)

	r, err := NewDecider(replyWith(`{"rephrased":"For all x, if x is a dog then x barks"}`), nil).Rewrite(ctx, "Every dog barks")
	require.NoError(t, err)
	assert.Equal(t, "For all x, if x is a dog then x barks", r)
}

func TestDecider_ContractViolations(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		reply string
		call  func(*Decider) error
		field string
	}{
		{"out of enumeration", `{"answer":"E"}`, func(d *Decider) error { _, err := d.SentenceKind(ctx, "t"); return err }, "answer"},
		{"lowercase letter", `{"answer":"a"}`, func(d *Decider) error { _, err := d.RelationKind(ctx, "t"); return err }, "answer"},
		{"not json", `A`, func(d *Decider) error { _, err := d.SentenceKind(ctx, "t"); return err }, ""},
		{"array", `["A"]`, func(d *Decider) error { _, err := d.SentenceKind(ctx, "t"); return err }, ""},
		{"missing field", `{"operator":"And","left_operand":"a"}`, func(d *Decider) error { _, err := d.Binary(ctx, "t"); return err }, "right_operand"},
		{"bad operator", `{"operator":"Xor","left_operand":"a","right_operand":"b"}`, func(d *Decider) error { _, err := d.Binary(ctx, "t"); return err }, "operator"},
		{"bad quantifier", `{"quantifier":"Most","variable":"x","sentence_without_quantifier":"s"}`, func(d *Decider) error { _, err := d.Quantifier(ctx, "t"); return err }, "quantifier"},
		{"bad unary", `{"operator":"Never","operand":"s"}`, func(d *Decider) error { _, err := d.Unary(ctx, "t"); return err }, "operator"},
		{"non-string field", `{"verb":3,"subject":"Alice"}`, func(d *Decider) error { _, err := d.Intransitive(ctx, "t"); return err }, "verb"},
		{"empty argument", `{"subject":"Alice","verb":"love","obj":""}`, func(d *Decider) error { _, err := d.Transitive(ctx, "t"); return err }, "obj"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call(NewDecider(replyWith(tt.reply), nil))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrContractViolation), err)
			assert.False(t, errors.Is(err, ErrCallFailure))

			var ce *ContractError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestDecider_WrapsCallFailures(t *testing.T) {
	boom := errors.New("connection reset")
	d := NewDecider(Func(func(context.Context, Template, string, Schema) (json.RawMessage, error) {
		return nil, boom
	}), nil)

	_, err := d.SentenceKind(context.Background(), "Alice sings")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCallFailure))
	assert.True(t, errors.Is(err, boom))

	var ce *CallError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, SchemaSentenceKind, ce.Schema)
	assert.Equal(t, "Alice sings", ce.Input)
}

func TestDecider_PassesTemplateAndSchema(t *testing.T) {
	var gotTemplate Template
	var gotSchema Schema
	var gotInput string
	d := NewDecider(Func(func(_ context.Context, tpl Template, input string, s Schema) (json.RawMessage, error) {
		gotTemplate, gotInput, gotSchema = tpl, input, s
		return json.RawMessage(`{"verb":"sing","subject":"Alice"}`), nil
	}), nil)

	_, err := d.Intransitive(context.Background(), "Alice sings")
	require.NoError(t, err)
	assert.Equal(t, SchemaIntransitive, gotSchema)
	assert.Equal(t, "Alice sings", gotInput)
	assert.Equal(t, d.Prompts()[SchemaIntransitive], gotTemplate)
}

type fakeClient struct {
	prompt string
	schema perception.ResponseSchema
	reply  string
	err    error
}

func (f *fakeClient) GenerateStructured(_ context.Context, prompt string, schema perception.ResponseSchema) (string, error) {
	f.prompt = prompt
	f.schema = schema
	return f.reply, f.err
}

func TestLLMOracle_Classify(t *testing.T) {
	client := &fakeClient{reply: `{"answer":"C"}`}
	d := NewDecider(NewLLMOracle(client), nil)

	kind, err := d.SentenceKind(context.Background(), "Alice sings and Bob dances")
	require.NoError(t, err)
	assert.Equal(t, KindCompound, kind)
	assert.Equal(t, "choose_parser", client.schema.Name)
	assert.Equal(t, SchemaSentenceKind.JSONSchema(), client.schema.Schema)
	assert.Contains(t, client.prompt, "Sentence: 'Alice sings and Bob dances'")
}

func TestLLMOracle_ClientError(t *testing.T) {
	client := &fakeClient{err: errors.New("503 from upstream")}
	_, err := NewLLMOracle(client).Classify(context.Background(), DefaultPrompts().Template(SchemaAdjective), "Alice is tall", SchemaAdjective)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCallFailure))
}
