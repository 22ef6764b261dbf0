package smt

import (
	"fmt"

	"relogic/internal/logic"
)

// Dialect selects the generated script language.
type Dialect string

const (
	DialectZ3Py   Dialect = "z3"
	DialectSMTLIB Dialect = "smtlib"
)

// ParseDialect validates a dialect name.
func ParseDialect(s string) (Dialect, error) {
	switch Dialect(s) {
	case DialectZ3Py, DialectSMTLIB:
		return Dialect(s), nil
	case "":
		return DialectZ3Py, nil
	}
	return "", fmt.Errorf("unknown SMT dialect %q (valid: z3, smtlib)", s)
}

// Generate renders rl in the requested dialect.
func Generate(rl *logic.RelationalLogic, d Dialect) (string, error) {
	switch d {
	case DialectZ3Py, "":
		return Z3Py(rl), nil
	case DialectSMTLIB:
		return SMTLIB(rl), nil
	}
	return "", fmt.Errorf("unknown SMT dialect %q", d)
}
