package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"triad-console/internal/interp"
	"triad-console/internal/proof"
)

var (
	proofRuns int
	proofJSON bool
)

var proofCmd = &cobra.Command{
	Use:   "proof",
	Short: "Measure WASM instantiation against interpreter cold start",
	RunE: func(cmd *cobra.Command, args []string) error {
		if proofRuns <= 0 {
			return fmt.Errorf("runs must be positive, got %d", proofRuns)
		}
		cfg, err := loadConfig(configPath, schemaPath)
		if err != nil {
			return err
		}
		log, closeLog, err := newLogger(cfg, os.Stderr)
		if err != nil {
			return err
		}
		defer closeLog()
		ctx, stop := signalContext(log)
		defer stop()

		runner := proof.NewRunner(&interp.Probe{})
		results := make([]proof.Result, 0, proofRuns)
		for i := 0; i < proofRuns; i++ {
			res, err := runner.Run(ctx)
			if err != nil {
				return err
			}
			results = append(results, res)
		}

		out := cmd.OutOrStdout()
		if proofJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN\tWASM INSTANTIATE\tINTERPRETER COLD START\tFACTOR")
		for _, r := range results {
			fmt.Fprintf(tw, "%d\t%.3fms\t%s\t%.0fx faster\n", r.Run, float64(r.Instantiate)/float64(time.Millisecond), interp.FormatMS(r.ColdStart), r.StartupFactor)
		}
		return tw.Flush()
	},
}

func init() {
	proofCmd.Flags().IntVar(&proofRuns, "runs", 1, "Number of measurement runs")
	proofCmd.Flags().BoolVar(&proofJSON, "json", false, "Print results as JSON")
}
