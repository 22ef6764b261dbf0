package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"relogic/internal/datalog"
	"relogic/internal/logic"
	"relogic/internal/smt"
)

// Output formats accepted by --format.
const (
	formatText    = "text"
	formatJSON    = "json"
	formatZ3      = "z3"
	formatSMTLIB  = "smtlib"
	formatDatalog = "datalog"
)

var formats = []string{formatText, formatJSON, formatZ3, formatSMTLIB, formatDatalog}

// renderLogic renders rl in one of the output formats.
func renderLogic(rl *logic.RelationalLogic, format string) (string, error) {
	switch strings.ToLower(format) {
	case "", formatText:
		return rl.String(), nil
	case formatJSON:
		data, err := json.MarshalIndent(rl, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data) + "\n", nil
	case formatZ3:
		return smt.Generate(rl, smt.DialectZ3Py)
	case formatSMTLIB:
		return smt.Generate(rl, smt.DialectSMTLIB)
	case formatDatalog:
		return renderDatalog(rl)
	}
	return "", fmt.Errorf("unknown format %q (valid: %s)", format, strings.Join(formats, ", "))
}

// renderDatalog prints the exported program, skipped sentences and every fact
// after evaluation.
func renderDatalog(rl *logic.RelationalLogic) (string, error) {
	p := datalog.Export(rl)
	res, err := p.Evaluate()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("# Program\n")
	sb.WriteString(p.Source())
	if len(p.Skipped) > 0 {
		sb.WriteString("\n# Skipped\n")
		for _, s := range p.Skipped {
			fmt.Fprintf(&sb, "# [%d] %s: %s\n", s.Index, s.Sentence, s.Reason)
		}
	}
	sb.WriteString("\n# Facts\n")
	for _, f := range res.Facts {
		sb.WriteString(f.String())
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// loadDocument reads a RelationalLogic document from a JSON file.
func loadDocument(path string) (*logic.RelationalLogic, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	var rl logic.RelationalLogic
	if err := json.Unmarshal(data, &rl); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &rl, nil
}
