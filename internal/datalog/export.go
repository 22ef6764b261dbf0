// Package datalog exports the Horn-clause fragment of a RelationalLogic unit to
// a Mangle program and evaluates it.
//
// Ground relations become facts. Implications whose antecedent and consequent
// are conjunctions of relations become rules, with universally bound names
// turned into Mangle variables. Everything else (negation, disjunction,
// existentials) lies outside the fragment and is reported as skipped.
package datalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/google/mangle/ast"

	"relogic/internal/logging"
	"relogic/internal/logic"
)

var errOutsideFragment = errors.New("outside the Horn fragment")

// Skipped records a top-level sentence that could not be exported.
type Skipped struct {
	Index    int
	Sentence string
	Reason   string
}

// Program is an exported Mangle program.
type Program struct {
	Decls   []ast.Atom
	Clauses []ast.Clause
	Skipped []Skipped
}

// Export translates every exportable top-level sentence of rl, in order.
func Export(rl *logic.RelationalLogic) *Program {
	p := &Program{}
	arities := make(map[ast.PredicateSym]bool)

	for i, s := range rl.Sentences {
		clauses, err := sentenceClauses(s)
		if err != nil {
			logging.CodegenDebug("Datalog export skipped sentence %d (%s): %v", i, s, err)
			p.Skipped = append(p.Skipped, Skipped{Index: i, Sentence: s.String(), Reason: err.Error()})
			continue
		}
		for _, c := range clauses {
			arities[c.Head.Predicate] = true
			for _, prem := range c.Premises {
				if a, ok := prem.(ast.Atom); ok {
					arities[a.Predicate] = true
				}
			}
		}
		p.Clauses = append(p.Clauses, clauses...)
	}

	syms := make([]ast.PredicateSym, 0, len(arities))
	for sym := range arities {
		syms = append(syms, sym)
	}
	sort.Slice(syms, func(i, j int) bool {
		if syms[i].Symbol != syms[j].Symbol {
			return syms[i].Symbol < syms[j].Symbol
		}
		return syms[i].Arity < syms[j].Arity
	})
	for _, sym := range syms {
		args := make([]ast.BaseTerm, sym.Arity)
		for k := range args {
			args[k] = ast.Variable{Symbol: fmt.Sprintf("X%d", k)}
		}
		p.Decls = append(p.Decls, ast.Atom{Predicate: sym, Args: args})
	}

	logging.Codegen("Datalog export: %d clauses, %d skipped", len(p.Clauses), len(p.Skipped))
	return p
}

// Source renders the program as Mangle source text.
func (p *Program) Source() string {
	var sb strings.Builder
	for _, d := range p.Decls {
		sb.WriteString("Decl ")
		sb.WriteString(d.String())
		sb.WriteString(".\n")
	}
	for _, c := range p.Clauses {
		sb.WriteString(c.String())
		if !strings.HasSuffix(c.String(), ".") {
			sb.WriteString(".")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// sentenceClauses handles one top-level sentence. Leading ForAll binders are
// collected, then the body must be a conjunction of relations or an implication
// between two such conjunctions.
func sentenceClauses(s logic.Sentence) ([]ast.Clause, error) {
	bound := make(map[string]string)
	for {
		q, ok := s.(*logic.QuantifiedSentence)
		if !ok {
			break
		}
		if q.Quantifier != logic.ForAll {
			return nil, fmt.Errorf("%w: existential quantifier", errOutsideFragment)
		}
		bound[q.Variable.Name] = VariableName(q.Variable.Name)
		s = q.Body
	}

	if b, ok := s.(*logic.BinaryOperator); ok {
		switch b.Operator {
		case logic.If:
			return rules(b.Left, b.Right, bound)
		case logic.OnlyIf:
			return rules(b.Right, b.Left, bound)
		case logic.IfAndOnlyIf:
			forward, err := rules(b.Left, b.Right, bound)
			if err != nil {
				return nil, err
			}
			backward, err := rules(b.Right, b.Left, bound)
			if err != nil {
				return nil, err
			}
			return append(forward, backward...), nil
		}
	}

	atoms, err := conjunction(s, bound)
	if err != nil {
		return nil, err
	}
	clauses := make([]ast.Clause, 0, len(atoms))
	for _, a := range atoms {
		if hasVariables(a) {
			return nil, fmt.Errorf("%w: universally bound fact %s is not range restricted", errOutsideFragment, a)
		}
		clauses = append(clauses, ast.Clause{Head: a})
	}
	return clauses, nil
}

// rules builds one rule per consequent conjunct.
func rules(antecedent, consequent logic.Sentence, bound map[string]string) ([]ast.Clause, error) {
	body, err := conjunction(antecedent, bound)
	if err != nil {
		return nil, err
	}
	heads, err := conjunction(consequent, bound)
	if err != nil {
		return nil, err
	}

	bodyVars := make(map[string]bool)
	premises := make([]ast.Term, len(body))
	for i, a := range body {
		premises[i] = a
		for _, arg := range a.Args {
			if v, ok := arg.(ast.Variable); ok {
				bodyVars[v.Symbol] = true
			}
		}
	}

	clauses := make([]ast.Clause, 0, len(heads))
	for _, h := range heads {
		for _, arg := range h.Args {
			if v, ok := arg.(ast.Variable); ok && !bodyVars[v.Symbol] {
				return nil, fmt.Errorf("%w: head variable %s does not occur in the body", errOutsideFragment, v.Symbol)
			}
		}
		clauses = append(clauses, ast.Clause{Head: h, Premises: premises})
	}
	return clauses, nil
}

// conjunction flattens nested And nodes over relations into atoms.
func conjunction(s logic.Sentence, bound map[string]string) ([]ast.Atom, error) {
	switch n := s.(type) {
	case logic.Relation:
		return []ast.Atom{relationAtom(n, bound)}, nil
	case *logic.BinaryOperator:
		if n.Operator != logic.And {
			return nil, fmt.Errorf("%w: %s inside a clause", errOutsideFragment, n.Operator)
		}
		left, err := conjunction(n.Left, bound)
		if err != nil {
			return nil, err
		}
		right, err := conjunction(n.Right, bound)
		if err != nil {
			return nil, err
		}
		return append(left, right...), nil
	case *logic.UnaryOperator:
		return nil, fmt.Errorf("%w: negation", errOutsideFragment)
	case *logic.QuantifiedSentence:
		return nil, fmt.Errorf("%w: nested quantifier", errOutsideFragment)
	}
	return nil, fmt.Errorf("%w: unsupported node %T", errOutsideFragment, s)
}

func relationAtom(r logic.Relation, bound map[string]string) ast.Atom {
	terms := r.Arguments()
	args := make([]ast.BaseTerm, len(terms))
	for i, t := range terms {
		if v, ok := bound[t.Identifier()]; ok {
			args[i] = ast.Variable{Symbol: v}
		} else {
			args[i] = ast.String(t.Identifier())
		}
	}
	return ast.NewAtom(PredicateName(r.Predicate()), args...)
}

func hasVariables(a ast.Atom) bool {
	for _, arg := range a.Args {
		if _, ok := arg.(ast.Variable); ok {
			return true
		}
	}
	return false
}

var reserved = map[string]bool{
	"bound": true, "decl": true, "descr": true, "do": true, "fn": true,
	"inclusion": true, "let": true, "package": true, "use": true,
}

// PredicateName maps an adjective or verb to a Mangle predicate identifier:
// lowercase letters, digits and underscores, starting with a letter.
func PredicateName(s string) string {
	name := strings.ToLower(sanitize(s))
	if name == "" {
		return "rel"
	}
	if !unicode.IsLetter([]rune(name)[0]) {
		name = "rel_" + name
	}
	if reserved[name] {
		name += "_"
	}
	return name
}

// VariableName maps a bound variable to a Mangle variable identifier.
func VariableName(s string) string {
	name := sanitize(s)
	if name == "" {
		return "V"
	}
	first := []rune(name)[0]
	if !unicode.IsLetter(first) {
		return "V" + name
	}
	return string(unicode.ToUpper(first)) + name[len(string(first)):]
}

func sanitize(s string) string {
	var sb strings.Builder
	lastUnderscore := false
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			sb.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore && sb.Len() > 0:
			sb.WriteRune('_')
			lastUnderscore = true
		}
	}
	return strings.TrimSuffix(sb.String(), "_")
}
