package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"triad-console/internal/attacks"
	"triad-console/internal/demo"
)

var (
	attackAll      bool
	attackFast     bool
	attackWIT      bool
	attackStates   bool
	attackScenario string
)

var attackCmd = &cobra.Command{
	Use:   "attack [id]",
	Short: "Fire one attack, or the run-all scenario, without the UI",
	Long: "attack drives the demo engine headless and prints both terminals. " +
		"Known attacks: " + strings.Join(attacks.Known(), ", ") + ".",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if attackWIT {
			_, err := fmt.Fprint(out, attacks.WITExcerpt)
			return err
		}
		var id string
		switch {
		case len(args) == 1 && attackAll:
			return fmt.Errorf("attack id and --all are mutually exclusive")
		case len(args) == 1:
			id = args[0]
			if !attacks.IsKnown(id) {
				return fmt.Errorf("unknown attack %q (known: %s)", id, strings.Join(attacks.Known(), ", "))
			}
		case !attackAll:
			return fmt.Errorf("attack id or --all required")
		}

		return runHeadless(out, attackScenario, func(ctx context.Context, eng *demo.Engine) error {
			if attackAll {
				return eng.RunAll(ctx)
			}
			return eng.Trigger(ctx, id)
		})
	},
}

// runHeadless builds an engine printing to stdout, waits for the runtime,
// runs fire and then waits until every scheduled callback has finished.
// With --fast the schedule is replayed on a manual clock.
func runHeadless(out io.Writer, scenarioName string, fire func(context.Context, *demo.Engine) error) error {
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

	a, err := newApp(ctx, cfg, log, scenarioName, true)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	ew, sw, cleanup, err := newWriters(cfg, printOnly, logFile, log, stdoutWriter(term.IsTerminal(int(os.Stdout.Fd())), attackStates))
	if err != nil {
		return err
	}
	defer cleanup()

	var eng *demo.Engine
	if attackFast {
		clock := demo.NewManualScheduler()
		eng = a.newEngine(ew, sw, clock)
		eng.Start(ctx)
		if err := fire(ctx, eng); err != nil {
			return err
		}
		for clock.Pending() > 0 && ctx.Err() == nil {
			clock.Advance(time.Second)
		}
	} else {
		sched := demo.NewRealScheduler()
		eng = a.newEngine(ew, sw, sched)
		eng.Start(ctx)
		if err := fire(ctx, eng); err != nil {
			return err
		}
		sched.Wait()
	}
	return printSummary(out, eng.Snapshot())
}

// printSummary writes the counters and metrics of both sides.
func printSummary(out io.Writer, s demo.Snapshot) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	c := s.Counters
	m := s.Metrics
	fmt.Fprintln(tw, "\nSIDE\tPROCESSED\tFAILED\tDOWNTIME\tSTARTUP")
	fmt.Fprintf(tw, "interpreted\t%d\t%d crashed\t%dms\t%.1fms\n",
		c.InterpretedProcessed, c.InterpretedCrashed, c.InterpretedDowntimeMS, m.ColdStartMS)
	fmt.Fprintf(tw, "wasm\t%d\t%d rejected\t%dms\t%.3fms\n",
		c.SandboxProcessed, c.SandboxRejected, c.SandboxDowntimeMS, m.InstantiateMS)
	if m.SensorRan {
		fmt.Fprintf(tw, "sensor\tinterpreted %s\twasm %.3fms\t\t\n", sensorMS(m.InterpretedSensorMS), m.SandboxSensorMS)
	}
	return tw.Flush()
}

func sensorMS(v float64) string {
	if v < 0 {
		return "error"
	}
	return fmt.Sprintf("%.3fms", v)
}

func init() {
	attackCmd.Flags().BoolVar(&attackAll, "all", false, "Run the whole attack scenario")
	attackCmd.Flags().BoolVar(&attackFast, "fast", false, "Replay timers on a simulated clock instead of waiting")
	attackCmd.Flags().BoolVar(&attackWIT, "wit", false, "Print the sandbox interface excerpt and exit")
	attackCmd.Flags().BoolVar(&attackStates, "states", false, "Also print state rows on a terminal")
	attackCmd.Flags().StringVar(&attackScenario, "scenario", "", "Built-in scenario for --all (run-all, security, availability)")
}
