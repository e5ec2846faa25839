package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mselser95/basket-slippage/internal/simulation"
	"github.com/mselser95/basket-slippage/internal/storage"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var reportCmd = &cobra.Command{
	Use:   "report <slippage.jsonl>",
	Short: "Summarize an exported run",
	Long: `Reads cycle records written by the jsonl sink and prints the number
of cycles, how many stayed within tolerance, the slippage range and the
block range covered.

The sink appends, so a file can hold several runs. Only one run is
summarized: the last one in the file unless --run names another.

Examples:
  go run . report results/slippage.jsonl
  go run . report results/slippage.jsonl --cycles
  go run . report results/slippage.jsonl --run 3f1c...`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().Bool("cycles", false, "Also print every cycle")
	reportCmd.Flags().String("run", "", "Run ID to summarize (default: last run in the file)")
}

func runReport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open results: %w", err)
	}
	defer f.Close()

	records, err := storage.ReadJSONL(f)
	if err != nil {
		return fmt.Errorf("read results: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("no cycle records in %s", args[0])
	}

	runID, _ := cmd.Flags().GetString("run")
	ids := runIDs(records)
	records, err = selectRun(records, ids, runID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(ids) > 1 {
		fmt.Fprintf(out, "File holds %d runs\n", len(ids))
	}
	showCycles, _ := cmd.Flags().GetBool("cycles")
	if showCycles {
		printCycles(out, records)
	}
	printSummary(out, simulation.Summarize(records))

	return nil
}

// runIDs lists run IDs in order of first appearance.
func runIDs(records []simulation.CycleRecord) []string {
	seen := make(map[string]bool)
	var ids []string
	for i := range records {
		id := records[i].RunID
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// selectRun keeps the records of runID, or of the last run when runID is empty.
func selectRun(records []simulation.CycleRecord, ids []string, runID string) ([]simulation.CycleRecord, error) {
	if runID == "" {
		runID = ids[len(ids)-1]
	}

	var out []simulation.CycleRecord
	for i := range records {
		if records[i].RunID == runID {
			out = append(out, records[i])
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("run %q not found (file holds %d runs)", runID, len(ids))
	}
	return out, nil
}

func printCycles(out io.Writer, records []simulation.CycleRecord) {
	fmt.Fprintf(out, "%-6s %-10s %-20s %-24s %-24s %-12s %s\n",
		"CYCLE", "BLOCK", "TIME", "INPUT VALUE", "OUTPUT VALUE", "SLIPPAGE", "OK")
	for i := range records {
		rec := &records[i]
		fmt.Fprintf(out, "%-6d %-10d %-20s %-24s %-24s %-12s %t\n",
			rec.Cycle,
			rec.Block,
			rec.Timestamp.UTC().Format(time.DateTime),
			rec.InputValue,
			rec.OutputValue,
			rec.Slippage,
			rec.WithinTolerance)
	}
	fmt.Fprintln(out)
}

func printSummary(out io.Writer, s simulation.Summary) {
	fmt.Fprintln(out, "=== Slippage Summary ===")
	if s.RunID != "" {
		fmt.Fprintf(out, "Run:       %s\n", s.RunID)
	}
	if s.Status != "" {
		fmt.Fprintf(out, "Status:    %s\n", s.Status)
	}
	fmt.Fprintf(out, "Cycles:    %d\n", s.Cycles)
	fmt.Fprintf(out, "Passed:    %d\n", s.Passed)
	fmt.Fprintf(out, "Failed:    %d\n", s.Failed)
	if s.MinSlippage != nil && s.MaxSlippage != nil {
		fmt.Fprintf(out, "Slippage:  %s .. %s\n", s.MinSlippage, s.MaxSlippage)
	}
	if s.Cycles > 0 {
		fmt.Fprintf(out, "Blocks:    %d .. %d\n", s.FirstBlock, s.LastBlock)
	}
	if s.Error != "" {
		fmt.Fprintf(out, "Error:     %s\n", s.Error)
	}
}
