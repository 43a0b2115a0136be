package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"triad-console/internal/config"
	"triad-console/internal/demo"
	"triad-console/internal/events"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.SessionID = "s1"
	return &cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewWritersPrintOnly(t *testing.T) {
	cfg := testConfig()
	cfg.Greptime.Endpoint = "localhost:4001"
	ew, sw, cleanup, err := newWriters(cfg, true, "", discardLogger(), demo.NewJSONStdoutWriter())
	if err != nil {
		t.Fatalf("newWriters returned error: %v", err)
	}
	cleanup()
	if _, ok := ew.(*demo.JSONStdoutWriter); !ok {
		t.Fatalf("expected *demo.JSONStdoutWriter, got %T", ew)
	}
	if _, ok := sw.(*demo.JSONStdoutWriter); !ok {
		t.Fatalf("expected state writer *demo.JSONStdoutWriter, got %T", sw)
	}
}

func TestNewWritersGreptimeFallback(t *testing.T) {
	cfg := testConfig()
	ew, _, cleanup, err := newWriters(cfg, false, "", discardLogger(), nil)
	if err != nil {
		t.Fatalf("newWriters returned error: %v", err)
	}
	cleanup()
	switch ew.(type) {
	case *demo.JSONStdoutWriter, *demo.ColorStdoutWriter:
	default:
		t.Fatalf("expected a stdout writer, got %T", ew)
	}
}

func TestNewWritersLogFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.log")
	ew, sw, cleanup, err := newWriters(testConfig(), true, path, discardLogger(), demo.NewJSONStdoutWriter())
	if err != nil {
		t.Fatalf("newWriters returned error: %v", err)
	}
	defer cleanup()
	if _, ok := ew.(*demo.MultiWriter); !ok {
		t.Fatalf("expected *demo.MultiWriter, got %T", ew)
	}
	row := events.LogRow{SessionID: "s1", RunID: "r1", Side: events.SideSandbox, Level: events.LevelWarn, Message: "[TRAP] out of bounds", Timestamp: time.Now()}
	if err := ew.WriteEvent(row); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := sw.WriteState(events.StateRow{SessionID: "s1", SandboxRejected: 1, Timestamp: time.Now()}); err != nil {
		t.Fatalf("write state failed: %v", err)
	}
	for _, p := range []string{path, path + ".state"} {
		info, err := os.Stat(p)
		if err != nil {
			t.Fatalf("stat failed: %v", err)
		}
		if info.Size() == 0 {
			t.Fatalf("expected %s to be non-empty", p)
		}
	}
}

func TestStdoutWriterSelection(t *testing.T) {
	if _, ok := stdoutWriter(true, false).(*demo.ColorStdoutWriter); !ok {
		t.Fatal("terminal should get the colour writer")
	}
	if _, ok := stdoutWriter(false, false).(*demo.JSONStdoutWriter); !ok {
		t.Fatal("pipe should get the JSON writer")
	}
}
