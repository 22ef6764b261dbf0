package logic

import "fmt"

// Visitor is one pass over a sentence tree. Each method handles one variant and
// is responsible for recursing into children (usually through Walk).
type Visitor[R any] interface {
	VisitAdjective(*Adjective) R
	VisitIntransitive(*IntransitiveVerb) R
	VisitTransitive(*TransitiveVerb) R
	VisitDitransitive(*DitransitiveVerb) R
	VisitBinary(*BinaryOperator) R
	VisitUnary(*UnaryOperator) R
	VisitQuantified(*QuantifiedSentence) R
}

// Walk dispatches s to the matching Visitor method.
func Walk[R any](s Sentence, v Visitor[R]) R {
	switch n := s.(type) {
	case *Adjective:
		return v.VisitAdjective(n)
	case *IntransitiveVerb:
		return v.VisitIntransitive(n)
	case *TransitiveVerb:
		return v.VisitTransitive(n)
	case *DitransitiveVerb:
		return v.VisitDitransitive(n)
	case *BinaryOperator:
		return v.VisitBinary(n)
	case *UnaryOperator:
		return v.VisitUnary(n)
	case *QuantifiedSentence:
		return v.VisitQuantified(n)
	}
	// Sentence is sealed; reaching this means a nil or foreign value.
	panic(fmt.Sprintf("logic: unknown sentence type %T", s))
}
