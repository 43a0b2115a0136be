package demo

import (
	"encoding/json"
	"os"

	"triad-console/internal/events"
)

// FileWriter writes log and state rows to JSONL files.
type FileWriter struct {
	eventFile *os.File
	stateFile *os.File
	eventEnc  *json.Encoder
	stateEnc  *json.Encoder
}

// NewFileWriter creates a FileWriter. statePath may be empty to skip state rows.
func NewFileWriter(eventPath, statePath string) (*FileWriter, error) {
	ef, err := os.Create(eventPath)
	if err != nil {
		return nil, err
	}
	fw := &FileWriter{eventFile: ef, eventEnc: json.NewEncoder(ef)}
	if statePath != "" {
		sf, err := os.Create(statePath)
		if err != nil {
			ef.Close()
			return nil, err
		}
		fw.stateFile = sf
		fw.stateEnc = json.NewEncoder(sf)
	}
	return fw, nil
}

// WriteEvent logs a single terminal row.
func (f *FileWriter) WriteEvent(row events.LogRow) error {
	return f.eventEnc.Encode(row)
}

// WriteEvents logs multiple terminal rows.
func (f *FileWriter) WriteEvents(rows []events.LogRow) error {
	for _, r := range rows {
		if err := f.WriteEvent(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteState logs a state row, if enabled.
func (f *FileWriter) WriteState(row events.StateRow) error {
	if f.stateEnc == nil {
		return nil
	}
	return f.stateEnc.Encode(row)
}

// Close closes any underlying files.
func (f *FileWriter) Close() error {
	var err error
	if f.eventFile != nil {
		if e := f.eventFile.Close(); e != nil && err == nil {
			err = e
		}
	}
	if f.stateFile != nil {
		if e := f.stateFile.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}
