package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	schemaPath string
	logFile    string
	printOnly  bool
)

var rootCmd = &cobra.Command{
	Use:   "triad-console",
	Short: "Reliability Triad demo console",
	Long:  "triad-console compares a WASM sandbox with an interpreted runtime under attack, across restarts and over the air.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "config/console.yaml", "Path to console configuration YAML")
	pf.StringVar(&schemaPath, "schema", "schemas/console.cue", "Path to CUE schema file")
	pf.StringVar(&logFile, "log-file", "", "Path to export demo events and state (JSONL)")
	pf.BoolVar(&printOnly, "print-only", false, "Do not write to GreptimeDB even when GREPTIMEDB_ENDPOINT is set")

	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(attackCmd)
	rootCmd.AddCommand(sensorCmd)
	rootCmd.AddCommand(otaCmd)
	rootCmd.AddCommand(proofCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(dashboardCmd)
}
