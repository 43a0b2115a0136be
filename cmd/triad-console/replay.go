package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"triad-console/internal/demo"
)

var (
	replayInput string
	replaySpeed float64
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay an exported event log",
	Long:  "replay feeds event rows from a JSONL export back into GreptimeDB or STDOUT, honouring the original timing.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayInput == "" {
			return fmt.Errorf("input file required")
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
		writer, _, cleanup, err := newWriters(cfg, printOnly, "", log, nil)
		if err != nil {
			return err
		}
		defer cleanup()
		return demo.ReplayLogFile(replayInput, writer, replaySpeed)
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to event log file")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier")
	replayCmd.MarkFlagRequired("input")
}
