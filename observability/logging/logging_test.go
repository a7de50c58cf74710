package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestNewRendersServiceFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Service: " leased ", Env: "test", Level: "warn", Output: &buf})
	logger.Info("dropped")
	logger.Warn("kept", MaskField("lease", "lease1abc"), MaskField("api_token", "secret"))

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("expected a single json line, got %q: %v", buf.String(), err)
	}
	if line["message"] != "kept" || line["severity"] != "WARN" {
		t.Fatalf("unexpected record %v", line)
	}
	if line["service"] != "leased" || line["env"] != "test" {
		t.Fatalf("missing service attributes %v", line)
	}
	if line["lease"] != "lease1abc" {
		t.Fatalf("lease should not be masked: %v", line["lease"])
	}
	if line["api_token"] != RedactedValue {
		t.Fatalf("api token should be masked: %v", line["api_token"])
	}
	if _, ok := line["timestamp"]; !ok {
		t.Fatalf("timestamp key missing: %v", line)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"chatty":  slog.LevelInfo,
	}
	for raw, want := range cases {
		if got := parseLevel(raw); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestMaskValue(t *testing.T) {
	if MaskValue("  ") != "  " {
		t.Fatalf("blank values must pass through")
	}
	if MaskValue("x") != RedactedValue {
		t.Fatalf("values must be redacted")
	}
	if !IsAllowlisted(" State_To ") {
		t.Fatalf("allowlist lookup must be case insensitive")
	}
}
