package demo

import "triad-console/internal/events"

// MultiWriter fans log and state rows out to multiple writers.
type MultiWriter struct {
	eventWriters []EventWriter
	stateWriters []StateWriter
}

// NewMultiWriter creates a new MultiWriter.
func NewMultiWriter(ews []EventWriter, sws []StateWriter) *MultiWriter {
	return &MultiWriter{eventWriters: ews, stateWriters: sws}
}

// WriteEvent sends a log row to all event writers.
func (mw *MultiWriter) WriteEvent(row events.LogRow) error {
	for _, w := range mw.eventWriters {
		if err := w.WriteEvent(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteEvents sends multiple log rows to all writers, using batch if supported.
func (mw *MultiWriter) WriteEvents(rows []events.LogRow) error {
	for _, w := range mw.eventWriters {
		if bw, ok := w.(batchEventWriter); ok {
			if err := bw.WriteEvents(rows); err != nil {
				return err
			}
			continue
		}
		for _, r := range rows {
			if err := w.WriteEvent(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteState sends a state row to all state writers.
func (mw *MultiWriter) WriteState(row events.StateRow) error {
	for _, w := range mw.stateWriters {
		if err := w.WriteState(row); err != nil {
			return err
		}
	}
	return nil
}
