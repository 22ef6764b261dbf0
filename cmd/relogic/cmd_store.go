package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"relogic/internal/perception"
)

var (
	showFormat  string
	showList    int
	tracesLimit int
	tracesRun   string
	tracesStats bool
	tracesJSON  bool
)

// showCmd prints a stored document
var showCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a stored document, or list recent ones",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runShow,
}

// tracesCmd inspects recorded oracle calls
var tracesCmd = &cobra.Command{
	Use:   "traces",
	Short: "Inspect recorded oracle calls",
	Long: `Lists recent oracle calls, the calls of one run (--run), or aggregate
statistics (--stats). Calls are recorded when store.enabled is true.`,
	Args: cobra.NoArgs,
	RunE: runTraces,
}

func init() {
	showCmd.Flags().StringVarP(&showFormat, "format", "f", formatText, "Output format: "+strings.Join(formats, ", "))
	showCmd.Flags().IntVarP(&showList, "limit", "n", 20, "Documents listed when no ID is given")

	tracesCmd.Flags().IntVarP(&tracesLimit, "limit", "n", 20, "Maximum traces listed")
	tracesCmd.Flags().StringVar(&tracesRun, "run", "", "Show the calls of one contract run")
	tracesCmd.Flags().BoolVar(&tracesStats, "stats", false, "Show aggregate statistics")
	tracesCmd.Flags().BoolVar(&tracesJSON, "json", false, "Print traces as JSON")
}

func runShow(cmd *cobra.Command, args []string) error {
	s, err := requireStore()
	if err != nil {
		return err
	}
	docs := s.GetDocumentStore()
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		list, err := docs.ListDocuments(showList)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Fprintln(out, dimStyle.Render("no documents"))
			return nil
		}
		for _, d := range list {
			fmt.Fprintf(out, "%s  %s  %-20s %d  %s\n",
				d.ID, d.CreatedAt.Local().Format("2006-01-02 15:04"),
				truncateText(d.Source, 20), d.SentenceCount, truncateText(d.OriginalSentence, 50))
		}
		return nil
	}

	rl, err := docs.LoadDocument(args[0])
	if err != nil {
		return err
	}
	text, err := renderLogic(rl, showFormat)
	if err != nil {
		return err
	}
	fmt.Fprint(out, text)
	return nil
}

func runTraces(cmd *cobra.Command, args []string) error {
	s, err := requireStore()
	if err != nil {
		return err
	}
	ts := s.GetTraceStore()
	out := cmd.OutOrStdout()

	if tracesStats {
		st, err := ts.Stats()
		if err != nil {
			return err
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "%s\n", titleStyle.Render("Oracle calls"))
		fmt.Fprintf(&sb, "total:    %d\n", st.Total)
		fmt.Fprintf(&sb, "failed:   %d\n", st.Failed)
		fmt.Fprintf(&sb, "avg (ms): %.1f\n", st.AvgDurationMs)
		schemas := make([]string, 0, len(st.BySchema))
		for k := range st.BySchema {
			schemas = append(schemas, k)
		}
		sort.Strings(schemas)
		for _, k := range schemas {
			fmt.Fprintf(&sb, "  %-14s %d\n", k, st.BySchema[k])
		}
		fmt.Fprintln(out, boxStyle.Render(strings.TrimRight(sb.String(), "\n")))
		return nil
	}

	var list []*perception.CallTrace
	if tracesRun != "" {
		list, err = ts.GetRunTraces(tracesRun)
	} else {
		list, err = ts.ListTraces(tracesLimit)
	}
	if err != nil {
		return err
	}

	if tracesJSON {
		data, err := json.MarshalIndent(list, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	for _, t := range list {
		mark := okStyle.Render("✓")
		if !t.Success {
			mark = failStyle.Render("✗")
		}
		fmt.Fprintf(out, "%s %s %-14s %5dms  %s\n", mark,
			t.Timestamp.Local().Format("15:04:05"), t.Schema, t.DurationMs, truncateText(t.Response, 60))
		if t.ErrorMessage != "" {
			fmt.Fprintln(out, dimStyle.Render("    "+t.ErrorMessage))
		}
	}
	return nil
}
