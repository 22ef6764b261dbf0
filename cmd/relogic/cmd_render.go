package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var renderFormat string

// renderCmd renders a saved document without calling the oracle
var renderCmd = &cobra.Command{
	Use:   "render [document.json]",
	Short: "Render a compiled document in another format",
	Long: `Reads a document produced by "relogic parse --format json" and renders it.
No oracle calls are made.

Example:
  relogic render unit.json --format smtlib`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

// datalogCmd evaluates a document as Datalog
var datalogCmd = &cobra.Command{
	Use:   "datalog [document.json | id]",
	Short: "Evaluate the Horn-clause fragment of a document with Mangle",
	Long: `Exports ground relations as facts and universally quantified implications
between conjunctions as rules, then prints every fact after evaluation.
The argument is a document file or the ID of a stored document.`,
	Args: cobra.ExactArgs(1),
	RunE: runDatalog,
}

func init() {
	renderCmd.Flags().StringVarP(&renderFormat, "format", "f", formatZ3, "Output format: "+strings.Join(formats, ", "))
}

func runRender(cmd *cobra.Command, args []string) error {
	rl, err := loadDocument(args[0])
	if err != nil {
		return err
	}
	out, err := renderLogic(rl, renderFormat)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

func runDatalog(cmd *cobra.Command, args []string) error {
	rl, err := loadDocument(args[0])
	if err != nil {
		s, serr := getStore()
		if serr != nil || s == nil {
			return err
		}
		stored, lerr := s.GetDocumentStore().LoadDocument(args[0])
		if lerr != nil {
			return fmt.Errorf("%v; %w", err, lerr)
		}
		rl = stored
	}
	out, err := renderDatalog(rl)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}
