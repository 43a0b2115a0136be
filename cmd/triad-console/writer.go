package main

import (
	"log/slog"
	"os"

	"golang.org/x/term"

	"triad-console/internal/config"
	"triad-console/internal/demo"
)

// sink receives both engine event rows and state rows.
type sink interface {
	demo.EventWriter
	demo.StateWriter
}

// newWriters fans engine output out to primary, GreptimeDB when configured
// and a JSONL export when logFile is set. A nil primary picks a stdout
// writer. It returns the writers and a cleanup function to close any
// resources.
func newWriters(cfg *config.Config, printOnly bool, logFile string, log *slog.Logger, primary sink) (demo.EventWriter, demo.StateWriter, func(), error) {
	cleanup := func() {}
	if primary == nil {
		primary = stdoutWriter(term.IsTerminal(int(os.Stdout.Fd())), false)
	}
	sinks, err := baseWriters(cfg, printOnly, log, primary)
	if err != nil {
		return nil, nil, nil, err
	}
	if logFile != "" {
		fw, err := demo.NewFileWriter(logFile, logFile+".state")
		if err != nil {
			return nil, nil, nil, err
		}
		sinks = append(sinks, fw)
		cleanup = func() { fw.Close() }
	}
	if len(sinks) == 1 {
		return primary, primary, cleanup, nil
	}
	ews := make([]demo.EventWriter, 0, len(sinks))
	sws := make([]demo.StateWriter, 0, len(sinks))
	for _, s := range sinks {
		ews = append(ews, s)
		sws = append(sws, s)
	}
	mw := demo.NewMultiWriter(ews, sws)
	return mw, mw, cleanup, nil
}

// baseWriters adds the GreptimeDB writer unless printOnly is set or no
// endpoint is configured.
func baseWriters(cfg *config.Config, printOnly bool, log *slog.Logger, primary sink) ([]sink, error) {
	sinks := []sink{primary}
	if printOnly || cfg.Greptime.Endpoint == "" {
		return sinks, nil
	}
	gw, err := demo.NewGreptimeDBWriter(cfg.Greptime.Endpoint, cfg.Greptime.Database, log)
	if err != nil {
		return nil, err
	}
	return append(sinks, gw), nil
}

// stdoutWriter prints coloured lines on a terminal and JSON otherwise.
func stdoutWriter(tty, states bool) sink {
	if tty {
		return demo.NewColorStdoutWriter(states)
	}
	return demo.NewJSONStdoutWriter()
}
