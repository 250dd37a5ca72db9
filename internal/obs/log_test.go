package obs

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestLogWritesJSONLine(t *testing.T) {
	l := Logger()
	orig := l.Writer()
	var buf bytes.Buffer
	l.SetOutput(&buf)
	defer l.SetOutput(orig)

	Log("warn", "blob missing", map[string]any{"key": "3/v1_a.pdf"})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["level"] != "warn" || entry["msg"] != "blob missing" || entry["key"] != "3/v1_a.pdf" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry["ts"] == "" {
		t.Fatalf("missing timestamp")
	}
}
