package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"telegram-media-converter/internal/config"
)

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	base := newWithWriter(config.LogConfig{Level: "debug", Format: "json"}, false, &buf)

	ctx := WithJobID(WithChatID(WithTraceID(context.Background(), "tr-1"), 42), "job-9")
	With(ctx, base).Info().Msg("hello")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not json: %v (%q)", err, buf.String())
	}
	if entry["trace_id"] != "tr-1" || entry["job_id"] != "job-9" {
		t.Errorf("missing ids in %v", entry)
	}
	if entry["chat_id"] != float64(42) {
		t.Errorf("chat_id = %v", entry["chat_id"])
	}
	if TraceIDFrom(ctx) != "tr-1" {
		t.Errorf("TraceIDFrom = %q", TraceIDFrom(ctx))
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newWithWriter(config.LogConfig{Level: "warn"}, false, &buf)
	l.Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn, got %q", buf.String())
	}
	l.Warn().Msg("kept")
	if buf.Len() == 0 {
		t.Fatal("warn should be written")
	}
}

func TestRedact(t *testing.T) {
	if got := Redact("123456:ABCDEFGHIJ", false); got != "1234...IJ" {
		t.Errorf("Redact = %q", got)
	}
	if got := Redact("short", false); got != "***" {
		t.Errorf("Redact = %q", got)
	}
	if got := Redact("visible", true); got != "visible" {
		t.Errorf("Redact dev = %q", got)
	}
}
