// Package decompose builds logic sentences from natural-language text by asking
// an oracle, one decision at a time, how to split it.
//
// Every recursive step is gated on the oracle having changed the text. When it
// has not (an empty or identical residual, or an invented negation), the engine
// falls back to relation extraction, which never recurses. A depth ceiling
// bounds oracles that keep changing text without converging.
package decompose

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"relogic/internal/logging"
	"relogic/internal/logic"
	"relogic/internal/oracle"
)

// DefaultMaxDepth bounds nested decomposition steps.
const DefaultMaxDepth = 32

// DefaultVariable names the bound variable when the oracle leaves it empty.
const DefaultVariable = "x"

// ErrDepthExceeded is returned when decomposition nests deeper than the ceiling.
var ErrDepthExceeded = errors.New("decomposition depth exceeded")

// negationCues are matched against lowercased text by substring.
var negationCues = []string{"not", "do not", "dont", "don't", "does not", "doesn't"}

// Engine decomposes text into sentences. It is safe for concurrent use when the
// underlying oracle is.
type Engine struct {
	decider  *oracle.Decider
	maxDepth int
	rephrase bool

	traceMu sync.Mutex
	trace   io.Writer
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxDepth sets the depth ceiling. Values below 1 keep the default.
func WithMaxDepth(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxDepth = n
		}
	}
}

// WithTrace mirrors the decomposition tree to w.
func WithTrace(w io.Writer) Option {
	return func(e *Engine) { e.trace = w }
}

// WithRephrase toggles the rewrite call in RephraseAndDecompose.
func WithRephrase(enabled bool) Option {
	return func(e *Engine) { e.rephrase = enabled }
}

// New returns an Engine that asks d.
func New(d *oracle.Decider, opts ...Option) *Engine {
	e := &Engine{decider: d, maxDepth: DefaultMaxDepth, rephrase: true}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxDepth returns the depth ceiling.
func (e *Engine) MaxDepth() int { return e.maxDepth }

// Decompose builds one sentence tree from text. Oracle failures and contract
// violations abort the whole tree.
func (e *Engine) Decompose(ctx context.Context, text string) (logic.Sentence, error) {
	r := e.newRun()
	defer r.flush()
	return r.decompose(ctx, text)
}

// RephraseAndDecompose normalizes text with the rewrite oracle, decomposes the
// result and appends it to rl when rl is non-nil.
func (e *Engine) RephraseAndDecompose(ctx context.Context, text string, rl *logic.RelationalLogic) (logic.Sentence, error) {
	r := e.newRun()
	defer r.flush()

	if e.rephrase {
		rewritten, err := e.decider.Rewrite(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("rephrase %q: %w", text, err)
		}
		if strings.TrimSpace(rewritten) == "" {
			logging.DecomposeWarn("Rewrite of %q returned empty text, keeping original", text)
		} else {
			r.tracef("Rephrased '%s' to '%s'", text, rewritten)
			text = rewritten
		}
	}

	s, err := r.decompose(ctx, text)
	if err != nil {
		return nil, err
	}
	if rl != nil {
		rl.Append(s)
	}
	return s, nil
}

// run is one top-level decomposition. Its trace lines are buffered and written
// to the engine's trace writer in one piece when the run ends.
type run struct {
	*Engine
	buf bytes.Buffer
}

func (e *Engine) newRun() *run {
	return &run{Engine: e}
}

func (r *run) decompose(ctx context.Context, text string) (logic.Sentence, error) {
	start := time.Now()
	s, err := r.parse(ctx, text, 0, true, "")
	elapsed := time.Since(start)

	logging.Audit().Decomposed(text, elapsed, err)
	if err != nil {
		logging.DecomposeWarn("Decomposition of %q failed after %v: %v", text, elapsed, err)
		return nil, err
	}
	logging.Decompose("Decomposed %q in %v: %s", text, elapsed, s)
	return s, nil
}

func (r *run) tracef(format string, args ...interface{}) {
	logging.DecomposeDebug(format, args...)
	if r.trace != nil {
		fmt.Fprintf(&r.buf, format+"\n", args...)
	}
}

func (r *run) flush() {
	if r.trace == nil || r.buf.Len() == 0 {
		return
	}
	r.traceMu.Lock()
	defer r.traceMu.Unlock()
	if _, err := r.trace.Write(r.buf.Bytes()); err != nil {
		logging.DecomposeWarn("Failed to write trace: %v", err)
	}
	r.buf.Reset()
}

func (r *run) parse(ctx context.Context, text string, depth int, last bool, prefix string) (logic.Sentence, error) {
	if depth >= r.maxDepth {
		return nil, fmt.Errorf("%w: %d levels reached at %q", ErrDepthExceeded, r.maxDepth, text)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	branch, indent := "├────", "│    "
	if last {
		branch, indent = "└────", "     "
	}
	r.tracef("%s%sParsing '%s'", prefix, branch, text)

	kind, err := r.decider.SentenceKind(ctx, text)
	if err != nil {
		return nil, err
	}
	prefix += indent
	r.tracef("%sAnswer: %s", prefix, kind)

	switch kind {
	case oracle.KindQuantified:
		return r.parseQuantified(ctx, text, depth, prefix)
	case oracle.KindCompound:
		return r.parseBinary(ctx, text, depth, prefix)
	case oracle.KindNegated:
		return r.parseUnary(ctx, text, depth, prefix)
	}
	return r.parseRelation(ctx, text, prefix)
}

func (r *run) parseQuantified(ctx context.Context, text string, depth int, prefix string) (logic.Sentence, error) {
	q, err := r.decider.Quantifier(ctx, text)
	if err != nil {
		return nil, err
	}
	r.tracef("%sQuantified parser. Quantifier: %s, Variable: %s", prefix, q.Quantifier, q.Variable)

	if unchanged(q.Residual, text) {
		return r.fallback(ctx, "quantifier_not_stripped", text, prefix)
	}

	body, err := r.parse(ctx, q.Residual, depth+1, true, prefix)
	if err != nil {
		return nil, err
	}
	name := q.Variable
	if name == "" {
		name = DefaultVariable
	}
	return logic.NewQuantified(q.Quantifier, logic.Variable{Name: name}, body)
}

func (r *run) parseBinary(ctx context.Context, text string, depth int, prefix string) (logic.Sentence, error) {
	b, err := r.decider.Binary(ctx, text)
	if err != nil {
		return nil, err
	}
	r.tracef("%sBinary operator parser. Operator: %s", prefix, b.Operator)

	if unchanged(b.Left, text) || unchanged(b.Right, text) {
		return r.fallback(ctx, "connective_not_split", text, prefix)
	}

	left, err := r.parse(ctx, b.Left, depth+1, false, prefix)
	if err != nil {
		return nil, err
	}
	right, err := r.parse(ctx, b.Right, depth+1, true, prefix)
	if err != nil {
		return nil, err
	}
	return logic.NewBinary(b.Operator, left, right)
}

func (r *run) parseUnary(ctx context.Context, text string, depth int, prefix string) (logic.Sentence, error) {
	u, err := r.decider.Unary(ctx, text)
	if err != nil {
		return nil, err
	}
	r.tracef("%sUnary operator parser. Operator: %s", prefix, u.Operator)

	if cue, ok := inventedNegation(text, u.Operand); ok {
		logging.DecomposeDebug("Oracle added negation cue %q to %q", cue, u.Operand)
		return r.fallback(ctx, "invented_negation", text, prefix)
	}
	if unchanged(u.Operand, text) {
		return r.fallback(ctx, "negation_not_stripped", text, prefix)
	}

	inner, err := r.parse(ctx, u.Operand, depth+1, true, prefix)
	if err != nil {
		return nil, err
	}
	return logic.NewUnary(u.Operator, inner)
}

func (r *run) fallback(ctx context.Context, reason, text, prefix string) (logic.Sentence, error) {
	logging.DecomposeDebug("Falling back to relation extraction (%s): %q", reason, text)
	logging.Audit().Fallback(reason, text)
	return r.parseRelation(ctx, text, prefix)
}

// parseRelation is the terminating base case: classify the relation's arity,
// then extract its predicate and arguments as constants.
func (r *run) parseRelation(ctx context.Context, text, prefix string) (logic.Sentence, error) {
	kind, err := r.decider.RelationKind(ctx, text)
	if err != nil {
		return nil, err
	}

	switch kind {
	case oracle.RelationAdjective:
		p, err := r.decider.Adjective(ctx, text)
		if err != nil {
			return nil, err
		}
		r.tracef("%sAdjective parser. Adjective: %s, Object: %s", prefix, p.Adjective, p.Object)
		return &logic.Adjective{Adjective: p.Adjective, Operand: logic.Constant{Name: p.Object}}, nil

	case oracle.RelationIntransitive:
		p, err := r.decider.Intransitive(ctx, text)
		if err != nil {
			return nil, err
		}
		r.tracef("%sIntransitive parser. Verb: %s, Subject: %s", prefix, p.Verb, p.Subject)
		return &logic.IntransitiveVerb{Verb: p.Verb, Subject: logic.Constant{Name: p.Subject}}, nil

	case oracle.RelationTransitive:
		p, err := r.decider.Transitive(ctx, text)
		if err != nil {
			return nil, err
		}
		r.tracef("%sTransitive parser. Verb: %s, Subject: %s, Object: %s", prefix, p.Verb, p.Subject, p.Object)
		return &logic.TransitiveVerb{
			Verb:    p.Verb,
			Subject: logic.Constant{Name: p.Subject},
			Object:  logic.Constant{Name: p.Object},
		}, nil
	}

	p, err := r.decider.Ditransitive(ctx, text)
	if err != nil {
		return nil, err
	}
	r.tracef("%sDitransitive parser. Verb: %s, Subject: %s, Indirect Object: %s, Direct Object: %s",
		prefix, p.Verb, p.Subject, p.IndirectObject, p.DirectObject)
	return &logic.DitransitiveVerb{
		Verb:           p.Verb,
		Subject:        logic.Constant{Name: p.Subject},
		IndirectObject: logic.Constant{Name: p.IndirectObject},
		DirectObject:   logic.Constant{Name: p.DirectObject},
	}, nil
}

// unchanged reports whether the oracle failed to change text.
func unchanged(got, text string) bool {
	return got == "" || strings.EqualFold(got, text)
}

// inventedNegation reports a negation cue present in operand but absent from text.
func inventedNegation(text, operand string) (string, bool) {
	lt, lo := strings.ToLower(text), strings.ToLower(operand)
	for _, cue := range negationCues {
		if !strings.Contains(lt, cue) && strings.Contains(lo, cue) {
			return cue, true
		}
	}
	return "", false
}
