package demo

import (
	"strings"
	"time"

	"triad-console/internal/events"
)

// InstanceState is the voting state of one sandbox instance.
type InstanceState int

const (
	Healthy InstanceState = iota
	Faulty
)

func (s InstanceState) String() string {
	if s == Faulty {
		return "faulty"
	}
	return "healthy"
}

func (s InstanceState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// LogEntry is one terminal line.
type LogEntry struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Counters are monotone between resets.
type Counters struct {
	InterpretedProcessed  uint64 `json:"interpreted_processed"`
	InterpretedCrashed    uint64 `json:"interpreted_crashed"`
	InterpretedDowntimeMS uint64 `json:"interpreted_downtime_ms"`
	SandboxProcessed      uint64 `json:"sandbox_processed"`
	SandboxRejected       uint64 `json:"sandbox_rejected"`
	// SandboxDowntimeMS is never incremented: a trapped instance is outvoted,
	// not restarted.
	SandboxDowntimeMS uint64 `json:"sandbox_downtime_ms"`
}

// Metrics are real measurements taken by the engine.
type Metrics struct {
	InstantiateMS       float64 `json:"instantiate_ms"`
	ColdStartMS         float64 `json:"cold_start_ms"`
	RuntimeReady        bool    `json:"runtime_ready"`
	SensorRan           bool    `json:"sensor_ran"`
	SandboxSensorMS     float64 `json:"sandbox_sensor_ms"`
	InterpretedSensorMS float64 `json:"interpreted_sensor_ms"` // -1 after an error
}

// Snapshot is a deep copy of the engine state.
type Snapshot struct {
	SessionID       string           `json:"session_id"`
	InterpretedLogs []LogEntry       `json:"interpreted_logs"`
	SandboxLogs     []LogEntry       `json:"sandbox_logs"`
	Instances       [3]InstanceState `json:"instances"`
	Faulty          int              `json:"faulty"`
	Leader          int              `json:"leader"`
	Workers         [3]bool          `json:"workers"`
	ActiveWorker    int              `json:"active_worker"`
	Restarting      bool             `json:"restarting"`
	Counters        Counters         `json:"counters"`
	Running         bool             `json:"running"`
	RunningAll      bool             `json:"running_all"`
	SensorRunning   bool             `json:"sensor_running"`
	Selected        string           `json:"selected"`
	Metrics         Metrics          `json:"metrics"`
}

// FaultyCount is the number of instances currently marked faulty.
func (s Snapshot) FaultyCount() int {
	n := 0
	for _, st := range s.Instances {
		if st == Faulty {
			n++
		}
	}
	return n
}

// StateRow flattens the snapshot for the state sinks.
func (s Snapshot) StateRow(ts time.Time) events.StateRow {
	var inst, workers strings.Builder
	for i := 0; i < 3; i++ {
		if s.Instances[i] == Faulty {
			inst.WriteByte('F')
		} else {
			inst.WriteByte('H')
		}
		if s.Workers[i] {
			workers.WriteByte('1')
		} else {
			workers.WriteByte('0')
		}
	}
	return events.StateRow{
		SessionID:            s.SessionID,
		InterpretedProcessed: int64(s.Counters.InterpretedProcessed),
		InterpretedCrashed:   int64(s.Counters.InterpretedCrashed),
		InterpretedDowntime:  int64(s.Counters.InterpretedDowntimeMS),
		SandboxProcessed:     int64(s.Counters.SandboxProcessed),
		SandboxRejected:      int64(s.Counters.SandboxRejected),
		SandboxDowntime:      int64(s.Counters.SandboxDowntimeMS),
		Leader:               s.Leader,
		Faulty:               s.Faulty,
		ActiveWorker:         s.ActiveWorker,
		Instances:            inst.String(),
		Workers:              workers.String(),
		Restarting:           s.Restarting,
		Running:              s.Running,
		Timestamp:            ts.UTC(),
	}
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }
