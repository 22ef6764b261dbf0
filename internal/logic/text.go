package logic

import "strings"

// textPass renders the infix human-readable form.
type textPass struct{}

func (textPass) VisitAdjective(a *Adjective) string {
	return relationText(a.Adjective, a.Operand)
}

func (textPass) VisitIntransitive(i *IntransitiveVerb) string {
	return relationText(i.Verb, i.Subject)
}

func (textPass) VisitTransitive(t *TransitiveVerb) string {
	return relationText(t.Verb, t.Subject, t.Object)
}

func (textPass) VisitDitransitive(d *DitransitiveVerb) string {
	return relationText(d.Verb, d.Subject, d.IndirectObject, d.DirectObject)
}

func (p textPass) VisitBinary(b *BinaryOperator) string {
	return "(" + Walk[string](b.Left, p) + ") " + b.Operator.Symbol() + " (" + Walk[string](b.Right, p) + ")"
}

func (p textPass) VisitUnary(u *UnaryOperator) string {
	return "¬(" + Walk[string](u.Inner, p) + ")"
}

func (p textPass) VisitQuantified(q *QuantifiedSentence) string {
	return q.Quantifier.Symbol() + q.Variable.Name + ". (" + Walk[string](q.Body, p) + ")"
}

func relationText(predicate string, args ...Term) string {
	names := make([]string, len(args))
	for i, a := range args {
		names[i] = a.Identifier()
	}
	return predicate + "(" + strings.Join(names, ",") + ")"
}

// Text renders any sentence in infix notation.
func Text(s Sentence) string {
	return Walk[string](s, textPass{})
}

func (a *Adjective) String() string          { return Text(a) }
func (i *IntransitiveVerb) String() string   { return Text(i) }
func (t *TransitiveVerb) String() string     { return Text(t) }
func (d *DitransitiveVerb) String() string   { return Text(d) }
func (b *BinaryOperator) String() string     { return Text(b) }
func (u *UnaryOperator) String() string      { return Text(u) }
func (q *QuantifiedSentence) String() string { return Text(q) }
