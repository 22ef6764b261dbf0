package logic

import "errors"

var (
	// ErrInvalidOperator is returned when a connective tag is outside the supported set.
	ErrInvalidOperator = errors.New("invalid operator")

	// ErrInvalidQuantifier is returned when a quantifier tag is outside the supported set.
	ErrInvalidQuantifier = errors.New("invalid quantifier")

	// ErrInvalidTerm is returned when a term identifier is empty.
	ErrInvalidTerm = errors.New("invalid term")

	// ErrInvalidDocument is returned when a structured document cannot be decoded into a tree.
	ErrInvalidDocument = errors.New("invalid document")
)
