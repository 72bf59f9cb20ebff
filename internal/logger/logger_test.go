package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestGetLevel(t *testing.T) {
	tests := map[string]string{
		"debug":   "DEBUG",
		" Info ":  "INFO",
		"warning": "WARN",
		"ERROR":   "ERROR",
		"verbose": "INFO",
		"":        "INFO",
	}
	for in, want := range tests {
		if got := GetLevel(in); got != want {
			t.Errorf("GetLevel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSetupWritesJSON(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	Setup(Config{Level: "warn", Output: &buf})

	slog.Info("dropped")
	slog.Warn("kept", "report_id", "RPT_1")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "kept" || entry["report_id"] != "RPT_1" {
		t.Errorf("unexpected entry %v", entry)
	}
	if ts, _ := entry["time"].(string); len(ts) != len("2006-01-02 15:04:05") {
		t.Errorf("unexpected time format %q", ts)
	}
}
