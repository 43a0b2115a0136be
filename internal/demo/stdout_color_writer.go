// ColorStdoutWriter prints human-friendly, colorized terminal rows to STDOUT.
package demo

import (
	"fmt"
	"io"
	"os"
	"sync"
	"text/tabwriter"
	"time"

	"triad-console/internal/attacks"
	"triad-console/internal/events"
)

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorGray    = "\x1b[90m"
)

// ColorStdoutWriter prints rows using ANSI colors. With states off only log
// rows are printed.
type ColorStdoutWriter struct {
	out    io.Writer
	states bool
	once   sync.Once
	mu     sync.Mutex
}

// NewColorStdoutWriter creates a ColorStdoutWriter writing to os.Stdout.
func NewColorStdoutWriter(states bool) *ColorStdoutWriter {
	return &ColorStdoutWriter{out: os.Stdout, states: states}
}

func (w *ColorStdoutWriter) printOverview() {
	fmt.Fprintln(w.out, "Attack table:")
	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tName\tKind\tRestart (ms)\tBlocked\n")
	for _, c := range attacks.All() {
		fmt.Fprintf(tw, "%s%s%s\t%s\t%s\t%d\t%s\n", colorCyan, c.ID, colorReset, c.Name, c.Kind, c.RestartMS, c.BlockedCapability)
	}
	tw.Flush()
	fmt.Fprintln(w.out)
}

func levelColor(level string) string {
	switch level {
	case events.LevelSuccess:
		return colorGreen
	case events.LevelWarn:
		return colorYellow
	case events.LevelError:
		return colorRed
	}
	return colorReset
}

func sideColor(side string) string {
	if side == events.SideSandbox {
		return colorMagenta
	}
	return colorBlue
}

// WriteEvent outputs a single log row in colorized format.
func (w *ColorStdoutWriter) WriteEvent(row events.LogRow) error {
	w.once.Do(w.printOverview)
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, "%s[%s]%s %s%-11s%s %s%s%s\n",
		colorGray, row.Timestamp.Format(time.RFC3339), colorReset,
		sideColor(row.Side), row.Side, colorReset,
		levelColor(row.Level), row.Message, colorReset)
	return nil
}

// WriteState prints the counters, if enabled.
func (w *ColorStdoutWriter) WriteState(row events.StateRow) error {
	if !w.states {
		return nil
	}
	w.once.Do(w.printOverview)
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, "%s[%s]%s %sSTATE%s processed=%d/%d crashed=%d rejected=%d downtime=%dms/%dms instances=%s workers=%s\n",
		colorGray, row.Timestamp.Format(time.RFC3339), colorReset,
		colorCyan, colorReset,
		row.InterpretedProcessed, row.SandboxProcessed,
		row.InterpretedCrashed, row.SandboxRejected,
		row.InterpretedDowntime, row.SandboxDowntime,
		row.Instances, row.Workers)
	return nil
}
