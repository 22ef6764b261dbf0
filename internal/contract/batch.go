package contract

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"relogic/internal/logging"
	"relogic/internal/logic"
)

// DefaultConcurrency bounds parallel rule compilation.
const DefaultConcurrency = 4

// ErrEmptyTrigger is recorded for rules without a trigger condition.
var ErrEmptyTrigger = errors.New("empty trigger condition")

// Compiler turns one trigger condition into a sentence.
type Compiler interface {
	RephraseAndDecompose(ctx context.Context, text string, rl *logic.RelationalLogic) (logic.Sentence, error)
}

// RuleResult is the outcome for one penalty rule.
type RuleResult struct {
	Index    int
	Rule     PenaltyRule
	Sentence logic.Sentence
	Err      error
	Duration time.Duration
}

// BatchResult collects the outcome of compiling a contract.
type BatchResult struct {
	RunID    string
	Contract *Contract
	Rules    []RuleResult
	// Logic holds the compiled sentences in rule order.
	Logic *logic.RelationalLogic
}

// Compiled returns the number of rules that produced a sentence.
func (r *BatchResult) Compiled() int {
	return r.Logic.Len()
}

// Failed returns the rules that were skipped.
func (r *BatchResult) Failed() []RuleResult {
	var out []RuleResult
	for _, rr := range r.Rules {
		if rr.Err != nil {
			out = append(out, rr)
		}
	}
	return out
}

// Text renders one line per compiled rule, in rule order.
func (r *BatchResult) Text() string {
	return r.Logic.String()
}

// Batch compiles every penalty rule of a contract. Rules run in parallel, each
// decomposition on its own goroutine; a failing rule is recorded and skipped.
type Batch struct {
	compiler    Compiler
	concurrency int
	onStart     func(runID string)
	onRule      func(RuleResult)
}

// BatchOption configures a Batch.
type BatchOption func(*Batch)

// WithConcurrency bounds the number of rules compiled at once.
func WithConcurrency(n int) BatchOption {
	return func(b *Batch) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithRunListener is called with the run ID before any rule is compiled.
func WithRunListener(fn func(runID string)) BatchOption {
	return func(b *Batch) { b.onStart = fn }
}

// WithRuleListener is called as each rule finishes. Calls may be concurrent.
func WithRuleListener(fn func(RuleResult)) BatchOption {
	return func(b *Batch) { b.onRule = fn }
}

// NewBatch returns a Batch over compiler.
func NewBatch(compiler Compiler, opts ...BatchOption) *Batch {
	b := &Batch{compiler: compiler, concurrency: DefaultConcurrency}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run compiles c. It returns an error only when ctx ends before every rule is done.
func (b *Batch) Run(ctx context.Context, c *Contract) (*BatchResult, error) {
	runID := uuid.New().String()
	if b.onStart != nil {
		b.onStart(runID)
	}

	audit := logging.AuditWithRequest(runID, logging.CategoryContract)
	log := logging.WithRequestID(logging.CategoryContract, runID).WithField("contract", c.ContractName)
	log.Info("Compiling %d rules (concurrency %d)", len(c.PenaltyRules), b.concurrency)

	results := make([]RuleResult, len(c.PenaltyRules))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, rule := range c.PenaltyRules {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = RuleResult{Index: i, Rule: rule, Err: err}
				return err
			}
			rr := b.compile(gctx, log, i, rule)
			results[i] = rr
			audit.ContractRule(c.ContractName, rule.Action.TriggerCond, rr.Err)
			if b.onRule != nil {
				b.onRule(rr)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &BatchResult{
		RunID:    runID,
		Contract: c,
		Rules:    results,
		Logic:    logic.NewRelationalLogic(strings.Join(c.TriggerConditions(), "\n")),
	}
	for _, rr := range results {
		if rr.Err == nil {
			res.Logic.Append(rr.Sentence)
		}
	}

	log.Info("%d/%d rules compiled", res.Compiled(), len(results))
	return res, nil
}

func (b *Batch) compile(ctx context.Context, log *logging.RequestLogger, i int, rule PenaltyRule) RuleResult {
	rr := RuleResult{Index: i, Rule: rule}
	trigger := strings.TrimSpace(rule.Action.TriggerCond)
	if trigger == "" {
		rr.Err = ErrEmptyTrigger
		log.Warn("Rule %d skipped: %v", i, rr.Err)
		return rr
	}

	log.Debug("Rule %d: compiling %q", i, trigger)
	start := time.Now()
	rr.Sentence, rr.Err = b.compiler.RephraseAndDecompose(ctx, trigger, nil)
	rr.Duration = time.Since(start)

	if rr.Err != nil {
		log.Warn("Rule %d skipped after %v: %v", i, rr.Duration, rr.Err)
	} else {
		log.Debug("Rule %d: %s", i, rr.Sentence)
	}
	return rr
}
