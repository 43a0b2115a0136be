package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTableNamesDefault(t *testing.T) {
	if (LogRow{}).TableName() != EventTableName || EventTableName == "" {
		t.Fatalf("event table name = %q", EventTableName)
	}
	if (StateRow{}).TableName() != StateTableName || StateTableName == "" {
		t.Fatalf("state table name = %q", StateTableName)
	}
}

func TestLogRowJSONKeys(t *testing.T) {
	b, err := json.Marshal(LogRow{SessionID: "s", Side: SideSandbox, Level: LevelWarn, Message: "[TRAP] I1", Timestamp: time.Unix(0, 0).UTC()})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, k := range []string{"session_id", "run_id", "side", "seq", "level", "message", "ts"} {
		if _, ok := m[k]; !ok {
			t.Errorf("missing key %s in %s", k, b)
		}
	}
}
