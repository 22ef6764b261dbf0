package smt

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"relogic/internal/logic"
)

var simpleSymbol = regexp.MustCompile(`^[A-Za-z~!@$%^&*_+=<>.?/\-][0-9A-Za-z~!@$%^&*_+=<>.?/\-]*$`)

var reservedWords = map[string]bool{
	"and": true, "or": true, "not": true, "xor": true, "true": true, "false": true,
	"forall": true, "exists": true, "let": true, "ite": true, "assert": true,
	"par": true, "as": true, "match": true, "Bool": true, "Entity": true,
}

// Symbol renders an identifier as an SMT-LIB symbol. '|' and '\' cannot appear
// in quoted symbols and are replaced by '_'. The result is quoted only when it
// is not a simple symbol, so a name has exactly one spelling.
func Symbol(name string) string {
	name = strings.NewReplacer("|", "_", `\`, "_").Replace(name)
	if simpleSymbol.MatchString(name) && !reservedWords[name] {
		return name
	}
	return "|" + name + "|"
}

type relationKey struct {
	symbol string
	arity  int
}

// symbolTable maps a relation symbol and arity to its declared function name.
// Relations without an entry keep Symbol(name).
type symbolTable map[relationKey]string

func (st symbolTable) function(name string, arity int) string {
	sym := Symbol(name)
	if f, ok := st[relationKey{sym, arity}]; ok {
		return f
	}
	return sym
}

// newSymbolTable gives every symbol that is used with more than one arity
// (constants count as arity 0) one function per relation arity, named
// <symbol>_<arity>. Constants keep their name.
func newSymbolTable(rl *logic.RelationalLogic) symbolTable {
	arities := make(map[string]map[int]bool)
	note := func(sym string, arity int) {
		if arities[sym] == nil {
			arities[sym] = make(map[int]bool)
		}
		arities[sym][arity] = true
	}
	var visit func(n logic.Node)
	visit = func(n logic.Node) {
		switch v := n.(type) {
		case logic.Relation:
			note(Symbol(v.Predicate()), len(v.Arguments()))
		case logic.Constant:
			note(Symbol(v.Name), 0)
		}
		for _, c := range n.Children() {
			visit(c)
		}
	}
	for _, s := range rl.Sentences {
		visit(s)
	}

	syms := make([]string, 0, len(arities))
	for sym := range arities {
		syms = append(syms, sym)
	}
	sort.Strings(syms)

	st := make(symbolTable)
	for _, sym := range syms {
		if len(arities[sym]) < 2 {
			continue
		}
		ns := make([]int, 0, len(arities[sym]))
		for n := range arities[sym] {
			if n > 0 {
				ns = append(ns, n)
			}
		}
		sort.Ints(ns)
		base := strings.TrimSuffix(strings.TrimPrefix(sym, "|"), "|")
		for _, n := range ns {
			name := Symbol(fmt.Sprintf("%s_%d", base, n))
			for arities[name] != nil {
				name = Symbol(strings.TrimSuffix(strings.TrimPrefix(name, "|"), "|") + "_")
			}
			arities[name] = map[int]bool{n: true}
			st[relationKey{sym, n}] = name
		}
	}
	return st
}

type smtlibDeclarations struct {
	names symbolTable
}

func smtlibConstDecl(t logic.Term) string {
	if _, bound := t.(logic.Variable); bound {
		return ""
	}
	return "(declare-const " + Symbol(t.Identifier()) + " Entity)\n"
}

func (p smtlibDeclarations) relation(name string, args ...logic.Term) string {
	var sb strings.Builder
	for _, a := range args {
		sb.WriteString(smtlibConstDecl(a))
	}
	sb.WriteString("(declare-fun " + p.names.function(name, len(args)) + " (" + strings.TrimSpace(strings.Repeat("Entity ", len(args))) + ") Bool)\n")
	return sb.String()
}

func (p smtlibDeclarations) VisitAdjective(a *logic.Adjective) string {
	return p.relation(a.Adjective, a.Operand)
}

func (p smtlibDeclarations) VisitIntransitive(i *logic.IntransitiveVerb) string {
	return p.relation(i.Verb, i.Subject)
}

func (p smtlibDeclarations) VisitTransitive(t *logic.TransitiveVerb) string {
	return p.relation(t.Verb, t.Subject, t.Object)
}

func (p smtlibDeclarations) VisitDitransitive(d *logic.DitransitiveVerb) string {
	return p.relation(d.Verb, d.Subject, d.IndirectObject, d.DirectObject)
}

func (p smtlibDeclarations) VisitBinary(b *logic.BinaryOperator) string {
	return logic.Walk[string](b.Left, p) + logic.Walk[string](b.Right, p)
}

func (p smtlibDeclarations) VisitUnary(u *logic.UnaryOperator) string {
	return logic.Walk[string](u.Inner, p)
}

// Bound variables are introduced by the binder itself, not declared globally.
func (p smtlibDeclarations) VisitQuantified(q *logic.QuantifiedSentence) string {
	return logic.Walk[string](q.Body, p)
}

// SMTLIBDeclarations returns the SMT-LIB declaration block of one sentence.
func SMTLIBDeclarations(s logic.Sentence) string {
	return logic.Walk[string](s, smtlibDeclarations{})
}

// declaredSymbol returns the symbol introduced by a declare-const or
// declare-fun line.
func declaredSymbol(line string) string {
	rest := line[strings.IndexByte(line, ' ')+1:]
	if strings.HasPrefix(rest, "|") {
		return rest[:strings.IndexByte(rest[1:], '|')+2]
	}
	return rest[:strings.IndexByte(rest, ' ')]
}

type smtlibExpressions struct {
	names symbolTable
}

func (p smtlibExpressions) apply(name string, args ...logic.Term) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, p.names.function(name, len(args)))
	for _, a := range args {
		parts = append(parts, Symbol(a.Identifier()))
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func (p smtlibExpressions) VisitAdjective(a *logic.Adjective) string {
	return p.apply(a.Adjective, a.Operand)
}

func (p smtlibExpressions) VisitIntransitive(i *logic.IntransitiveVerb) string {
	return p.apply(i.Verb, i.Subject)
}

func (p smtlibExpressions) VisitTransitive(t *logic.TransitiveVerb) string {
	return p.apply(t.Verb, t.Subject, t.Object)
}

func (p smtlibExpressions) VisitDitransitive(d *logic.DitransitiveVerb) string {
	return p.apply(d.Verb, d.Subject, d.IndirectObject, d.DirectObject)
}

func (p smtlibExpressions) VisitBinary(b *logic.BinaryOperator) string {
	left := logic.Walk[string](b.Left, p)
	right := logic.Walk[string](b.Right, p)
	switch b.Operator {
	case logic.And:
		return "(and " + left + " " + right + ")"
	case logic.Or:
		return "(or " + left + " " + right + ")"
	case logic.If:
		return "(=> " + left + " " + right + ")"
	case logic.OnlyIf:
		return "(=> " + right + " " + left + ")"
	default:
		return "(= " + left + " " + right + ")"
	}
}

func (p smtlibExpressions) VisitUnary(u *logic.UnaryOperator) string {
	return "(not " + logic.Walk[string](u.Inner, p) + ")"
}

func (p smtlibExpressions) VisitQuantified(q *logic.QuantifiedSentence) string {
	binder := "forall"
	if q.Quantifier == logic.ThereExists {
		binder = "exists"
	}
	return "(" + binder + " ((" + Symbol(q.Variable.Name) + " Entity)) " + logic.Walk[string](q.Body, p) + ")"
}

// SMTLIBExpression returns the SMT-LIB term of one sentence.
func SMTLIBExpression(s logic.Sentence) string {
	return logic.Walk[string](s, smtlibExpressions{})
}

// SMTLIB assembles an SMT-LIB2 script. Blocks are sorted exactly like the z3
// dialect. Each symbol is declared once: later declarations of the same symbol
// are dropped, and a predicate used with several arities is split into one
// function per arity.
func SMTLIB(rl *logic.RelationalLogic) string {
	names := newSymbolTable(rl)
	decls := smtlibDeclarations{names: names}
	exprs := smtlibExpressions{names: names}

	var sb strings.Builder
	sb.WriteString("; Auto-generated SMT-LIB2 script\n\n")
	sb.WriteString("(declare-sort Entity 0)\n\n")
	sb.WriteString("; --- Declarations ---\n\n")

	seen := make(map[string]bool)
	blocks := SortedBlocks(rl, func(s logic.Sentence) string { return logic.Walk[string](s, decls) })
	for _, block := range blocks {
		for _, line := range strings.SplitAfter(block, "\n") {
			if line == "" {
				continue
			}
			sym := declaredSymbol(line)
			if seen[sym] {
				continue
			}
			seen[sym] = true
			sb.WriteString(line)
		}
	}

	sb.WriteString("\n; --- Assertions ---\n\n")
	for _, s := range rl.Sentences {
		sb.WriteString("(assert ")
		sb.WriteString(logic.Walk[string](s, exprs))
		sb.WriteString(")\n")
	}
	sb.WriteString("\n(check-sat)\n")
	return sb.String()
}
