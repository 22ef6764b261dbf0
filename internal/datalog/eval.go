package datalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	"github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"

	"relogic/internal/logging"
)

// Fact is one derived or asserted atom.
type Fact struct {
	Predicate string
	Args      []string
}

func (f Fact) String() string {
	return fmt.Sprintf("%s(%s)", f.Predicate, strings.Join(f.Args, ", "))
}

// Result holds every fact in the store after evaluation, sorted by predicate
// then arguments.
type Result struct {
	Facts []Fact
}

// ByPredicate returns the facts of one predicate.
func (r *Result) ByPredicate(name string) []Fact {
	var out []Fact
	for _, f := range r.Facts {
		if f.Predicate == name {
			out = append(out, f)
		}
	}
	return out
}

// Check parses and analyzes the rendered program.
func (p *Program) Check() (*analysis.ProgramInfo, error) {
	unit, err := parse.Unit(strings.NewReader(p.Source()))
	if err != nil {
		return nil, fmt.Errorf("mangle parse failed: %w", err)
	}
	info, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return nil, fmt.Errorf("mangle analysis failed: %w", err)
	}
	return info, nil
}

// Evaluate runs the program to fixpoint.
func (p *Program) Evaluate() (*Result, error) {
	timer := logging.StartTimer(logging.CategoryCodegen, "datalog.Evaluate")
	defer timer.Stop()

	info, err := p.Check()
	if err != nil {
		return nil, err
	}

	store := factstore.NewSimpleInMemoryStore()
	stats, err := engine.EvalProgramWithStats(info, store)
	if err != nil {
		return nil, fmt.Errorf("mangle evaluation failed: %w", err)
	}
	logging.CodegenDebug("Mangle evaluation stats: %+v", stats)

	res := &Result{}
	for _, sym := range store.ListPredicates() {
		err := store.GetFacts(ast.NewQuery(sym), func(a ast.Atom) error {
			args := make([]string, len(a.Args))
			for i, arg := range a.Args {
				args[i] = termString(arg)
			}
			res.Facts = append(res.Facts, Fact{Predicate: sym.Symbol, Args: args})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(res.Facts, func(i, j int) bool {
		a, b := res.Facts[i], res.Facts[j]
		if a.Predicate != b.Predicate {
			return a.Predicate < b.Predicate
		}
		return strings.Join(a.Args, "\x00") < strings.Join(b.Args, "\x00")
	})
	return res, nil
}

func termString(t ast.BaseTerm) string {
	if c, ok := t.(ast.Constant); ok && c.Type == ast.StringType {
		return c.Symbol
	}
	return t.String()
}
