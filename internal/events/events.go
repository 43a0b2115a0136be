// Event rows with greptime tags
package events

import (
	"os"
	"time"
)

// Sides of the demo.
const (
	SideInterpreted = "interpreted"
	SideSandbox     = "sandbox"
)

// Log levels, mapped to terminal colours.
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarn    = "warn"
	LevelError   = "error"
)

// LogRow is one terminal line as stored in GreptimeDB.
type LogRow struct {
	SessionID string    `json:"session_id"` // TAG
	RunID     string    `json:"run_id"`     // TAG
	Side      string    `json:"side"`       // TAG
	Seq       int       `json:"seq"`        // FIELD
	Level     string    `json:"level"`      // FIELD
	Message   string    `json:"message"`    // FIELD
	Timestamp time.Time `json:"ts"`         // TIME INDEX
}

// StateRow is a snapshot of counters and pool state after a change.
type StateRow struct {
	SessionID            string    `json:"session_id"`
	InterpretedProcessed int64     `json:"interpreted_processed"`
	InterpretedCrashed   int64     `json:"interpreted_crashed"`
	InterpretedDowntime  int64     `json:"interpreted_downtime_ms"`
	SandboxProcessed     int64     `json:"sandbox_processed"`
	SandboxRejected      int64     `json:"sandbox_rejected"`
	SandboxDowntime      int64     `json:"sandbox_downtime_ms"`
	Leader               int       `json:"leader"`
	Faulty               int       `json:"faulty"` // -1 when none
	ActiveWorker         int       `json:"active_worker"`
	Instances            string    `json:"instances"` // e.g. "HFH"
	Workers              string    `json:"workers"`   // e.g. "101"
	Restarting           bool      `json:"restarting"`
	Running              bool      `json:"running"`
	Timestamp            time.Time `json:"ts"`
}

// EventTableName defaults to "demo_events", overridden by
// GREPTIMEDB_EVENT_TABLE.
var EventTableName = func() string {
	if env := os.Getenv("GREPTIMEDB_EVENT_TABLE"); env != "" {
		return env
	}
	return "demo_events"
}()

// StateTableName defaults to "demo_state", overridden by
// GREPTIMEDB_STATE_TABLE.
var StateTableName = func() string {
	if env := os.Getenv("GREPTIMEDB_STATE_TABLE"); env != "" {
		return env
	}
	return "demo_state"
}()

func (LogRow) TableName() string { return EventTableName }

func (StateRow) TableName() string { return StateTableName }
