package demo

import "triad-console/internal/events"

// EventWriter handles terminal log rows.
type EventWriter interface {
	WriteEvent(events.LogRow) error
}

// Optional: writers may support batch mode for log rows.
type batchEventWriter interface {
	WriteEvents([]events.LogRow) error
}

// StateWriter handles demo state rows.
type StateWriter interface {
	WriteState(events.StateRow) error
}
