package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"relogic/internal/config"
	"relogic/internal/contract"
)

var (
	contractOutDir      string
	contractConcurrency int
	extractCompile      bool
)

// contractCmd compiles every penalty rule of a structured contract
var contractCmd = &cobra.Command{
	Use:   "contract [contract.json]",
	Short: "Compile a contract's penalty rules into first-order logic",
	Long: `Reads a contract JSON (contractName, involvedParties, penaltyRules) and
compiles each rule's trigger condition. Rules that fail are reported and
skipped. Results are written to <out>/<name>/<name>.txt and .json.`,
	Args: cobra.ExactArgs(1),
	RunE: runContract,
}

// extractCmd turns contract prose into the structured form
var extractCmd = &cobra.Command{
	Use:   "extract [contract.txt]",
	Short: "Extract a structured contract from prose",
	Long: `Asks the extraction model for the contract's parties and penalty rules and
writes <out>/<name>/<name>.json, then compiles the rules (--compile=false to skip).`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	for _, c := range []*cobra.Command{contractCmd, extractCmd} {
		c.Flags().StringVarP(&contractOutDir, "out", "o", "", "Output directory (default: contract.output_dir)")
		c.Flags().IntVar(&contractConcurrency, "concurrency", 0, "Rules compiled at once (default: contract.concurrency)")
	}
	extractCmd.Flags().BoolVar(&extractCompile, "compile", true, "Compile the extracted rules")
}

func outputDir() string {
	dir := contractOutDir
	if dir == "" {
		dir = cfg.Contract.OutputDir
	}
	return config.ResolvePath(workspace, dir)
}

func runContract(cmd *cobra.Command, args []string) error {
	c, err := contract.Load(args[0])
	if err != nil {
		return err
	}
	return compileContract(cmd, c)
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read contract text: %w", err)
	}

	client, _, err := newClient(ctx, cfg.Contract.ExtractionModel, nil)
	if err != nil {
		return err
	}
	c, err := contract.NewExtractor(client).Extract(ctx, string(data))
	if err != nil {
		return err
	}

	path, err := contract.SaveContract(outputDir(), c)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d parties, %d penalty rules\n",
		okStyle.Render("✓"), c.ContractName, len(c.InvolvedParties), len(c.PenaltyRules))
	fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render(path))

	if !extractCompile {
		return nil
	}
	return compileContract(cmd, c)
}

func compileContract(cmd *cobra.Command, c *contract.Contract) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	p, err := newPipeline(ctx, nil, true)
	if err != nil {
		return err
	}

	concurrency := contractConcurrency
	if concurrency <= 0 {
		concurrency = cfg.GetConcurrency()
	}
	opts := []contract.BatchOption{
		contract.WithConcurrency(concurrency),
		contract.WithRuleListener(func(r contract.RuleResult) {
			if r.Err != nil {
				logger.Warn("Rule skipped", zap.Int("rule", r.Index), zap.Error(r.Err))
				return
			}
			logger.Debug("Rule compiled", zap.Int("rule", r.Index), zap.Duration("took", r.Duration))
		}),
	}
	if p.tracer != nil {
		opts = append(opts, contract.WithRunListener(p.tracer.SetRunID))
	}

	res, err := contract.NewBatch(p.engine, opts...).Run(ctx, c)
	if err != nil {
		return err
	}

	txt, _, err := contract.SaveResult(outputDir(), res)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render(c.ContractName))
	fmt.Fprint(out, res.Text())
	for _, f := range res.Failed() {
		fmt.Fprintf(out, "%s rule %d (%s): %v\n", failStyle.Render("✗"), f.Index, truncateText(f.Rule.Action.TriggerCond, 60), f.Err)
	}
	fmt.Fprintf(out, "%d/%d rules compiled, run %s\n", res.Compiled(), len(res.Rules), res.RunID)
	fmt.Fprintln(out, dimStyle.Render(txt))

	s, err := getStore()
	if err != nil {
		return err
	}
	if s != nil {
		if _, err := s.GetDocumentStore().SaveDocument(res.Logic, c.ContractName); err != nil {
			return err
		}
	}
	return nil
}

func truncateText(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
