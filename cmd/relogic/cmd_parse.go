package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"relogic/internal/logic"
)

var (
	parseFormat     string
	parseNoRephrase bool
	parseTrace      bool
	parseSave       bool
)

// parseCmd compiles sentences through the oracle
var parseCmd = &cobra.Command{
	Use:   "parse [sentence...]",
	Short: "Compile sentences into first-order logic",
	Long: `Each argument is one sentence. Sentences are rephrased, decomposed and
collected into one unit, then printed in the requested format.

Examples:
  relogic parse "Alice sings and Bob dances"
  relogic parse --format z3 "Every student studies" "John is a student"
  relogic parse --trace --no-rephrase "Bob does not run"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runParse,
}

func init() {
	parseCmd.Flags().StringVarP(&parseFormat, "format", "f", formatText, "Output format: "+strings.Join(formats, ", "))
	parseCmd.Flags().BoolVar(&parseNoRephrase, "no-rephrase", false, "Skip the rewrite step")
	parseCmd.Flags().BoolVar(&parseTrace, "trace", false, "Print the decomposition tree to stderr")
	parseCmd.Flags().BoolVar(&parseSave, "save", true, "Save the compiled document to the store")
}

func runParse(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	var trace io.Writer
	if parseTrace {
		trace = cmd.ErrOrStderr()
	}
	p, err := newPipeline(ctx, trace, !parseNoRephrase)
	if err != nil {
		return err
	}

	if p.tracer != nil {
		runID := uuid.NewString()
		p.tracer.SetRunID(runID)
		logger.Debug("Parse run", zap.String("run_id", runID))
	}

	rl := logic.NewRelationalLogic(strings.Join(args, "\n"))
	for _, sentence := range args {
		logger.Info("Compiling sentence", zap.String("text", sentence))
		if _, err := p.engine.RephraseAndDecompose(ctx, sentence, rl); err != nil {
			return fmt.Errorf("%q: %w", sentence, err)
		}
	}

	out, err := renderLogic(rl, parseFormat)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)

	if parseSave {
		s, err := getStore()
		if err != nil {
			return err
		}
		if s != nil {
			id, err := s.GetDocumentStore().SaveDocument(rl, "cli")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), dimStyle.Render("saved as "+id))
		}
	}
	return nil
}
