package decompose

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relogic/internal/logic"
	"relogic/internal/oracle"
)

type call struct {
	schema oracle.Schema
	input  string
}

// scripted answers by (schema, input) and records the order of questions.
type scripted struct {
	replies map[call]string
	calls   []call
}

func newScripted() *scripted {
	return &scripted{replies: make(map[call]string)}
}

func (s *scripted) Classify(_ context.Context, _ oracle.Template, input string, schema oracle.Schema) (json.RawMessage, error) {
	c := call{schema: schema, input: input}
	s.calls = append(s.calls, c)
	reply, ok := s.replies[c]
	if !ok {
		return nil, fmt.Errorf("unscripted question %s(%q)", schema, input)
	}
	return json.RawMessage(reply), nil
}

func (s *scripted) on(schema oracle.Schema, input, reply string) *scripted {
	s.replies[call{schema: schema, input: input}] = reply
	return s
}

func (s *scripted) kind(input, letter string) *scripted {
	return s.on(oracle.SchemaSentenceKind, input, `{"answer":"`+letter+`"}`)
}

func (s *scripted) intransitive(input, verb, subject string) *scripted {
	s.on(oracle.SchemaRelationKind, input, `{"answer":"B"}`)
	return s.on(oracle.SchemaIntransitive, input, fmt.Sprintf(`{"verb":%q,"subject":%q}`, verb, subject))
}

func (s *scripted) schemas() []oracle.Schema {
	out := make([]oracle.Schema, len(s.calls))
	for i, c := range s.calls {
		out[i] = c.schema
	}
	return out
}

func engine(s *scripted, opts ...Option) *Engine {
	return New(oracle.NewDecider(s, nil), opts...)
}

func TestDecompose_AtomicDoesNotRecurse(t *testing.T) {
	s := newScripted().
		kind("Alice is tall", "A").
		on(oracle.SchemaRelationKind, "Alice is tall", `{"answer":"A"}`).
		on(oracle.SchemaAdjective, "Alice is tall", `{"adjective":"tall","obj":"Alice"}`)

	got, err := engine(s).Decompose(context.Background(), "Alice is tall")
	require.NoError(t, err)
	assert.Equal(t, &logic.Adjective{Adjective: "tall", Operand: logic.Constant{Name: "Alice"}}, got)
	assert.Equal(t, []oracle.Schema{oracle.SchemaSentenceKind, oracle.SchemaRelationKind, oracle.SchemaAdjective}, s.schemas())
}

func TestDecompose_CompoundEndToEnd(t *testing.T) {
	s := newScripted().
		kind("Alice sings and Bob dances", "C").
		on(oracle.SchemaBinary, "Alice sings and Bob dances", `{"operator":"And","left_operand":"Alice sings","right_operand":"Bob dances"}`).
		kind("Alice sings", "A").
		intransitive("Alice sings", "sing", "Alice").
		kind("Bob dances", "A").
		intransitive("Bob dances", "dance", "Bob")

	got, err := engine(s).Decompose(context.Background(), "Alice sings and Bob dances")
	require.NoError(t, err)
	assert.Equal(t, "(sing(Alice)) ∧ (dance(Bob))", got.String())

	// The left operand is fully resolved before the right one is classified.
	var inputs []string
	for _, c := range s.calls {
		inputs = append(inputs, c.input)
	}
	assert.Equal(t, []string{
		"Alice sings and Bob dances", "Alice sings and Bob dances",
		"Alice sings", "Alice sings", "Alice sings",
		"Bob dances", "Bob dances", "Bob dances",
	}, inputs)
}

func TestDecompose_DitransitiveEndToEnd(t *testing.T) {
	s := newScripted().
		kind("John gave Mary a book", "A").
		on(oracle.SchemaRelationKind, "John gave Mary a book", `{"answer":"D"}`).
		on(oracle.SchemaDitransitive, "John gave Mary a book", `{"subject":"John","verb":"give","indirect_obj":"Mary","direct_obj":"a book"}`)

	got, err := engine(s).Decompose(context.Background(), "John gave Mary a book")
	require.NoError(t, err)
	assert.Equal(t, "give(John,Mary,a book)", got.String())
}

func TestDecompose_TransitiveRelation(t *testing.T) {
	s := newScripted().
		kind("Alice loves Bob", "A").
		on(oracle.SchemaRelationKind, "Alice loves Bob", `{"answer":"C"}`).
		on(oracle.SchemaTransitive, "Alice loves Bob", `{"subject":"Alice","verb":"love","obj":"Bob"}`)

	got, err := engine(s).Decompose(context.Background(), "Alice loves Bob")
	require.NoError(t, err)
	assert.Equal(t, "love(Alice,Bob)", got.String())
}

func TestDecompose_Quantified(t *testing.T) {
	text := "Every student studies"
	s := newScripted().
		kind(text, "B").
		on(oracle.SchemaQuantified, text, `{"quantifier":"ForAll","variable":"y","sentence_without_quantifier":"if y is a student then y studies"}`).
		kind("if y is a student then y studies", "C").
		on(oracle.SchemaBinary, "if y is a student then y studies", `{"operator":"If","left_operand":"y is a student","right_operand":"y studies"}`).
		kind("y is a student", "A").
		on(oracle.SchemaRelationKind, "y is a student", `{"answer":"A"}`).
		on(oracle.SchemaAdjective, "y is a student", `{"adjective":"student","obj":"y"}`).
		kind("y studies", "A").
		intransitive("y studies", "study", "y")

	got, err := engine(s).Decompose(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, "∀y. ((student(y)) → (study(y)))", got.String())
}

func TestDecompose_DefaultBoundVariable(t *testing.T) {
	s := newScripted().
		kind("Someone sings", "B").
		on(oracle.SchemaQuantified, "Someone sings", `{"quantifier":"ThereExists","variable":"","sentence_without_quantifier":"x sings"}`).
		kind("x sings", "A").
		intransitive("x sings", "sing", "x")

	got, err := engine(s).Decompose(context.Background(), "Someone sings")
	require.NoError(t, err)
	q, ok := got.(*logic.QuantifiedSentence)
	require.True(t, ok)
	assert.Equal(t, logic.Variable{Name: "x"}, q.Variable)
	assert.Equal(t, "∃x. (sing(x))", got.String())
}

func TestDecompose_QuantifierGuard(t *testing.T) {
	for name, residual := range map[string]string{"identical ignoring case": "ALL BIRDS FLY", "empty": ""} {
		t.Run(name, func(t *testing.T) {
			s := newScripted().
				kind("All birds fly", "B").
				on(oracle.SchemaQuantified, "All birds fly", fmt.Sprintf(`{"quantifier":"ForAll","variable":"x","sentence_without_quantifier":%q}`, residual)).
				intransitive("All birds fly", "fly", "birds")

			got, err := engine(s).Decompose(context.Background(), "All birds fly")
			require.NoError(t, err)
			assert.Equal(t, "fly(birds)", got.String())
			assert.Equal(t, 1, countSchema(s, oracle.SchemaSentenceKind), "must not recurse")
		})
	}
}

func TestDecompose_BinaryGuard(t *testing.T) {
	tests := map[string]string{
		"left equals text":  `{"operator":"And","left_operand":"alice sings and dances","right_operand":"Alice dances"}`,
		"right equals text": `{"operator":"Or","left_operand":"Alice sings","right_operand":"Alice sings and dances"}`,
		"empty right":       `{"operator":"And","left_operand":"Alice sings","right_operand":""}`,
		"empty left":        `{"operator":"And","left_operand":"","right_operand":"Alice dances"}`,
	}
	for name, reply := range tests {
		t.Run(name, func(t *testing.T) {
			text := "Alice sings and dances"
			s := newScripted().
				kind(text, "C").
				on(oracle.SchemaBinary, text, reply).
				intransitive(text, "sing_and_dance", "Alice")

			got, err := engine(s).Decompose(context.Background(), text)
			require.NoError(t, err)
			_, ok := got.(*logic.IntransitiveVerb)
			assert.True(t, ok, "expected relation fallback, got %s", got)
			assert.Equal(t, 1, countSchema(s, oracle.SchemaSentenceKind))
		})
	}
}

func TestDecompose_Negation(t *testing.T) {
	text := "Bob does not run"
	s := newScripted().
		kind(text, "D").
		on(oracle.SchemaUnary, text, `{"operator":"Not","operand":"Bob runs"}`).
		kind("Bob runs", "A").
		intransitive("Bob runs", "run", "Bob")

	got, err := engine(s).Decompose(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, "¬(run(Bob))", got.String())
}

func TestDecompose_HallucinatedNegation(t *testing.T) {
	text := "Bob runs"
	s := newScripted().
		kind(text, "D").
		on(oracle.SchemaUnary, text, `{"operator":"Not","operand":"Bob does not run"}`).
		intransitive(text, "run", "Bob")

	got, err := engine(s).Decompose(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, "run(Bob)", got.String())
	assert.Equal(t, 1, countSchema(s, oracle.SchemaSentenceKind))
}

func TestDecompose_NegationGuard(t *testing.T) {
	for name, operand := range map[string]string{"identical": "it is NOT raining", "empty": ""} {
		t.Run(name, func(t *testing.T) {
			text := "It is not raining"
			s := newScripted().
				kind(text, "D").
				on(oracle.SchemaUnary, text, fmt.Sprintf(`{"operator":"Not","operand":%q}`, operand)).
				on(oracle.SchemaRelationKind, text, `{"answer":"A"}`).
				on(oracle.SchemaAdjective, text, `{"adjective":"not_raining","obj":"it"}`)

			got, err := engine(s).Decompose(context.Background(), text)
			require.NoError(t, err)
			assert.Equal(t, "not_raining(it)", got.String())
		})
	}
}

func TestInventedNegation(t *testing.T) {
	cue, ok := inventedNegation("Bob runs", "Bob doesn't run")
	assert.True(t, ok)
	assert.Equal(t, "doesn't", cue)

	_, ok = inventedNegation("Bob does not run", "Bob does not walk")
	assert.False(t, ok)

	// "not" is matched as a substring, so "nothing" in the source counts as a cue.
	_, ok = inventedNegation("Nothing happens", "not happens")
	assert.False(t, ok)
}

func TestDecompose_DepthCeiling(t *testing.T) {
	// An oracle that keeps splitting into longer, different text never converges.
	diverging := oracle.Func(func(_ context.Context, _ oracle.Template, input string, schema oracle.Schema) (json.RawMessage, error) {
		switch schema {
		case oracle.SchemaSentenceKind:
			return json.RawMessage(`{"answer":"C"}`), nil
		case oracle.SchemaBinary:
			return json.Marshal(map[string]string{
				"operator":      "And",
				"left_operand":  input + " a",
				"right_operand": input + " b",
			})
		}
		return nil, fmt.Errorf("unexpected %s", schema)
	})

	e := New(oracle.NewDecider(diverging, nil), WithMaxDepth(4))
	assert.Equal(t, 4, e.MaxDepth())

	_, err := e.Decompose(context.Background(), "p")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDepthExceeded))
}

func TestDecompose_DefaultDepth(t *testing.T) {
	assert.Equal(t, DefaultMaxDepth, New(nil).MaxDepth())
	assert.Equal(t, DefaultMaxDepth, New(nil, WithMaxDepth(0)).MaxDepth())
}

func TestDecompose_ErrorsAbortTheTree(t *testing.T) {
	text := "Alice sings and Bob dances"
	s := newScripted().
		kind(text, "C").
		on(oracle.SchemaBinary, text, `{"operator":"And","left_operand":"Alice sings","right_operand":"Bob dances"}`).
		kind("Alice sings", "A").
		intransitive("Alice sings", "sing", "Alice").
		kind("Bob dances", "Z")

	got, err := engine(s).Decompose(context.Background(), text)
	assert.Nil(t, got)
	require.Error(t, err)
	assert.True(t, errors.Is(err, oracle.ErrContractViolation))

	// Unscripted questions surface as call failures.
	_, err = engine(newScripted()).Decompose(context.Background(), "anything")
	require.Error(t, err)
	assert.True(t, errors.Is(err, oracle.ErrCallFailure))
}

func TestDecompose_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newScripted()
	_, err := engine(s).Decompose(ctx, "Alice sings")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, s.calls)
}

func TestRephraseAndDecompose(t *testing.T) {
	s := newScripted().
		on(oracle.SchemaRewrite, "Alice sang", `{"rephrased":"Alice sings"}`).
		kind("Alice sings", "A").
		intransitive("Alice sings", "sing", "Alice")

	rl := logic.NewRelationalLogic("Alice sang")
	got, err := engine(s).RephraseAndDecompose(context.Background(), "Alice sang", rl)
	require.NoError(t, err)
	assert.Equal(t, "sing(Alice)", got.String())
	require.Equal(t, 1, rl.Len())
	assert.Same(t, got, rl.Sentences[0])
	assert.Equal(t, oracle.SchemaRewrite, s.calls[0].schema)
}

func TestRephraseAndDecompose_EmptyRewriteKeepsText(t *testing.T) {
	s := newScripted().
		on(oracle.SchemaRewrite, "Alice sings", `{"rephrased":"  "}`).
		kind("Alice sings", "A").
		intransitive("Alice sings", "sing", "Alice")

	got, err := engine(s).RephraseAndDecompose(context.Background(), "Alice sings", nil)
	require.NoError(t, err)
	assert.Equal(t, "sing(Alice)", got.String())
}

func TestRephraseAndDecompose_Disabled(t *testing.T) {
	s := newScripted().
		kind("Alice sings", "A").
		intransitive("Alice sings", "sing", "Alice")

	rl := logic.NewRelationalLogic("Alice sings")
	_, err := engine(s, WithRephrase(false)).RephraseAndDecompose(context.Background(), "Alice sings", rl)
	require.NoError(t, err)
	assert.Zero(t, countSchema(s, oracle.SchemaRewrite))
	assert.Equal(t, 1, rl.Len())
}

func TestRephraseAndDecompose_FailureLeavesUnitUntouched(t *testing.T) {
	s := newScripted().on(oracle.SchemaRewrite, "Alice sings", `{"rephrased":"Alice sings"}`)

	rl := logic.NewRelationalLogic("Alice sings")
	_, err := engine(s).RephraseAndDecompose(context.Background(), "Alice sings", rl)
	require.Error(t, err)
	assert.Zero(t, rl.Len())
}

func TestTrace_TreeShape(t *testing.T) {
	s := newScripted().
		kind("Alice sings and Bob dances", "C").
		on(oracle.SchemaBinary, "Alice sings and Bob dances", `{"operator":"And","left_operand":"Alice sings","right_operand":"Bob dances"}`).
		kind("Alice sings", "A").
		intransitive("Alice sings", "sing", "Alice").
		kind("Bob dances", "A").
		intransitive("Bob dances", "dance", "Bob")

	var buf bytes.Buffer
	_, err := engine(s, WithTrace(&buf)).Decompose(context.Background(), "Alice sings and Bob dances")
	require.NoError(t, err)

	want := strings.Join([]string{
		"└────Parsing 'Alice sings and Bob dances'",
		"     Answer: Compound",
		"     Binary operator parser. Operator: And",
		"     ├────Parsing 'Alice sings'",
		"     │    Answer: Atomic",
		"     │    Intransitive parser. Verb: sing, Subject: Alice",
		"     └────Parsing 'Bob dances'",
		"          Answer: Atomic",
		"          Intransitive parser. Verb: dance, Subject: Bob",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

// lockedScripted serializes access to a scripted oracle.
type lockedScripted struct {
	mu sync.Mutex
	s  *scripted
}

func (l *lockedScripted) Classify(ctx context.Context, tmpl oracle.Template, input string, schema oracle.Schema) (json.RawMessage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s.Classify(ctx, tmpl, input, schema)
}

// chunks records each Write separately.
type chunks struct {
	mu     sync.Mutex
	writes []string
}

func (c *chunks) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, string(p))
	return len(p), nil
}

func TestTrace_ConcurrentRunsWriteWholeTrees(t *testing.T) {
	s := newScripted()
	inputs := []string{"Alice sings", "Bob dances", "Carol hums", "Dave runs"}
	verbs := []string{"sing", "dance", "hum", "run"}
	for i, in := range inputs {
		subject := strings.Fields(in)[0]
		s.kind(in, "A").intransitive(in, verbs[i], subject)
	}

	var out chunks
	e := New(oracle.NewDecider(&lockedScripted{s: s}, nil), WithTrace(&out))

	var wg sync.WaitGroup
	for _, in := range inputs {
		wg.Add(1)
		go func(in string) {
			defer wg.Done()
			_, err := e.Decompose(context.Background(), in)
			assert.NoError(t, err)
		}(in)
	}
	wg.Wait()

	require.Len(t, out.writes, len(inputs))
	for _, w := range out.writes {
		lines := strings.Split(strings.TrimSuffix(w, "\n"), "\n")
		require.Len(t, lines, 3, w)
		assert.True(t, strings.HasPrefix(lines[0], "└────Parsing '"), w)
		in := strings.TrimSuffix(strings.TrimPrefix(lines[0], "└────Parsing '"), "'")
		assert.Equal(t, "     Answer: Atomic", lines[1])
		assert.Contains(t, lines[2], "Subject: "+strings.Fields(in)[0])
	}
}

func countSchema(s *scripted, schema oracle.Schema) int {
	n := 0
	for _, c := range s.calls {
		if c.schema == schema {
			n++
		}
	}
	return n
}
