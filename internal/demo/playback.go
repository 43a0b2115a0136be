package demo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"triad-console/internal/events"
)

// maxReplayGap caps the pause between two rows so idle time between runs
// does not stall a replay.
const maxReplayGap = 5 * time.Second

// ReplayLog feeds event rows from a JSONL export to writer, keeping their
// relative timing divided by speed. A speed <= 0 replays without pauses.
func ReplayLog(r io.Reader, writer EventWriter, speed float64) error {
	dec := json.NewDecoder(r)
	var prev time.Time
	for n := 1; ; n++ {
		var row events.LogRow
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decode row %d: %w", n, err)
		}
		if speed > 0 && !prev.IsZero() {
			time.Sleep(replayGap(row.Timestamp.Sub(prev), speed))
		}
		if err := writer.WriteEvent(row); err != nil {
			return err
		}
		prev = row.Timestamp
	}
}

func replayGap(d time.Duration, speed float64) time.Duration {
	d = time.Duration(float64(d) / speed)
	switch {
	case d < 0:
		return 0
	case d > maxReplayGap:
		return maxReplayGap
	}
	return d
}

// ReplayLogFile replays the event export at path.
func ReplayLogFile(path string, writer EventWriter, speed float64) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open replay log: %w", err)
	}
	defer f.Close()
	return ReplayLog(f, writer, speed)
}
