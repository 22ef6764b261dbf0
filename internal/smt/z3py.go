// Package smt compiles relational-logic trees into satisfiability-solver scripts.
//
// Two passes run over every top-level sentence: a declaration pass that emits one
// declaration per term and per relation (bottom-up, in child order), and an
// expression pass that emits one solver expression per node. The default dialect
// is a z3 Python script; SMTLIB emits an SMT-LIB2 script instead.
package smt

import (
	"sort"
	"strings"

	"relogic/internal/logic"
)

const (
	z3Header   = "# Auto-generated Z3 code\n\n"
	z3Import   = "from z3 import *\n\n"
	z3Sort     = "Entity = DeclareSort('Entity')\n\n"
	z3Solver   = "s = Solver()\n\n"
	z3DeclMark = "# --- Declarations ---\n\n"
	z3ExprMark = "# --- Expressions ---\n\n"
	z3Epilogue = "print(f'Checking satisfiability...')\n" +
		"result = s.check()\n" +
		"print(f'Result: {result}')\n"
)

// =============================================================================
// DECLARATION PASS
// =============================================================================

type z3Declarations struct{}

func z3TermDecl(t logic.Term) string {
	name := t.Identifier()
	return name + " = Const('" + name + "', Entity)\n"
}

func z3FunctionDecl(name string, arity int) string {
	return name + " = Function('" + name + "', " + strings.Repeat("Entity, ", arity) + "BoolSort())\n"
}

func z3RelationDecl(name string, args ...logic.Term) string {
	var sb strings.Builder
	for _, a := range args {
		sb.WriteString(z3TermDecl(a))
	}
	sb.WriteString(z3FunctionDecl(name, len(args)))
	return sb.String()
}

func (z3Declarations) VisitAdjective(a *logic.Adjective) string {
	return z3RelationDecl(a.Adjective, a.Operand)
}

func (z3Declarations) VisitIntransitive(i *logic.IntransitiveVerb) string {
	return z3RelationDecl(i.Verb, i.Subject)
}

func (z3Declarations) VisitTransitive(t *logic.TransitiveVerb) string {
	return z3RelationDecl(t.Verb, t.Subject, t.Object)
}

func (z3Declarations) VisitDitransitive(d *logic.DitransitiveVerb) string {
	return z3RelationDecl(d.Verb, d.Subject, d.IndirectObject, d.DirectObject)
}

func (p z3Declarations) VisitBinary(b *logic.BinaryOperator) string {
	return logic.Walk[string](b.Left, p) + logic.Walk[string](b.Right, p)
}

func (p z3Declarations) VisitUnary(u *logic.UnaryOperator) string {
	return logic.Walk[string](u.Inner, p)
}

func (p z3Declarations) VisitQuantified(q *logic.QuantifiedSentence) string {
	return z3TermDecl(q.Variable) + logic.Walk[string](q.Body, p)
}

// Declarations returns the z3 declaration block of one sentence.
func Declarations(s logic.Sentence) string {
	return logic.Walk[string](s, z3Declarations{})
}

// =============================================================================
// EXPRESSION PASS
// =============================================================================

type z3Expressions struct{}

func z3Apply(name string, args ...logic.Term) string {
	ids := make([]string, len(args))
	for i, a := range args {
		ids[i] = a.Identifier()
	}
	return name + "(" + strings.Join(ids, ",") + ")"
}

func (z3Expressions) VisitAdjective(a *logic.Adjective) string {
	return z3Apply(a.Adjective, a.Operand)
}

func (z3Expressions) VisitIntransitive(i *logic.IntransitiveVerb) string {
	return z3Apply(i.Verb, i.Subject)
}

func (z3Expressions) VisitTransitive(t *logic.TransitiveVerb) string {
	return z3Apply(t.Verb, t.Subject, t.Object)
}

func (z3Expressions) VisitDitransitive(d *logic.DitransitiveVerb) string {
	return z3Apply(d.Verb, d.Subject, d.IndirectObject, d.DirectObject)
}

func (p z3Expressions) VisitBinary(b *logic.BinaryOperator) string {
	left := logic.Walk[string](b.Left, p)
	right := logic.Walk[string](b.Right, p)
	switch b.Operator {
	case logic.And:
		return "And(" + left + ", " + right + ")"
	case logic.Or:
		return "Or(" + left + ", " + right + ")"
	case logic.If:
		return "Implies(" + left + ", " + right + ")"
	case logic.OnlyIf:
		return "Implies(" + right + ", " + left + ")"
	default: // IfAndOnlyIf; constructors reject anything else
		return left + " == " + right
	}
}

func (p z3Expressions) VisitUnary(u *logic.UnaryOperator) string {
	return "Not(" + logic.Walk[string](u.Inner, p) + ")"
}

func (p z3Expressions) VisitQuantified(q *logic.QuantifiedSentence) string {
	binder := "ForAll"
	if q.Quantifier == logic.ThereExists {
		binder = "Exists"
	}
	return binder + "([" + q.Variable.Name + "], " + logic.Walk[string](q.Body, p) + ")"
}

// Expression returns the z3 expression of one sentence.
func Expression(s logic.Sentence) string {
	return logic.Walk[string](s, z3Expressions{})
}

// =============================================================================
// SCRIPT ASSEMBLY
// =============================================================================

// SortedBlocks runs pass over every sentence and sorts the resulting blocks as
// opaque strings. Whole sentences move relative to each other; lines inside a
// block keep their traversal order.
func SortedBlocks(rl *logic.RelationalLogic, pass func(logic.Sentence) string) []string {
	blocks := make([]string, len(rl.Sentences))
	for i, s := range rl.Sentences {
		blocks[i] = pass(s)
	}
	sort.Strings(blocks)
	return blocks
}

// DeclarationSection returns the sort declaration followed by every sentence's
// declaration block in lexicographic block order.
func DeclarationSection(rl *logic.RelationalLogic) string {
	return z3Sort + strings.Join(SortedBlocks(rl, Declarations), "") + "\n\n"
}

// AssertionSection returns one s.add(...) per sentence in insertion order.
func AssertionSection(rl *logic.RelationalLogic) string {
	var sb strings.Builder
	for _, s := range rl.Sentences {
		sb.WriteString("s.add(")
		sb.WriteString(Expression(s))
		sb.WriteString(")\n")
	}
	return sb.String()
}

// Z3Py assembles the complete z3 Python script.
func Z3Py(rl *logic.RelationalLogic) string {
	var sb strings.Builder
	sb.WriteString(z3Header)
	sb.WriteString(z3Import)
	sb.WriteString(z3Sort)
	sb.WriteString(z3Solver)
	sb.WriteString(z3DeclMark)
	sb.WriteString(DeclarationSection(rl))
	sb.WriteString(z3ExprMark)
	sb.WriteString(AssertionSection(rl))
	sb.WriteString(z3Epilogue)
	return sb.String()
}
