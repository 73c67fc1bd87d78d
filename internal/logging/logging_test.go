package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rbctelevision/rbcradio/internal/logbuffer"
)

func TestNewProductionWritesJSON(t *testing.T) {
	var out bytes.Buffer
	logger := New(&out, "production", nil)
	logger.Debug().Msg("hidden")
	logger.Info().Str("component", "poller").Msg("polled")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1 (debug suppressed): %q", len(lines), out.String())
	}
	var line map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &line); err != nil {
		t.Fatalf("production output is not JSON: %v", err)
	}
	if line["service"] != "rbcradio" || line["component"] != "poller" {
		t.Fatalf("line=%v, want service and component fields", line)
	}
}

func TestNewDevelopmentIsConsoleAtDebug(t *testing.T) {
	var out bytes.Buffer
	logger := New(&out, "development", nil)
	logger.Debug().Msg("visible")

	if !strings.Contains(out.String(), "visible") {
		t.Fatalf("debug line missing: %q", out.String())
	}
	if json.Valid(bytes.TrimSpace(out.Bytes())) {
		t.Fatalf("development output should be console formatted: %q", out.String())
	}
}

func TestNewTeesIntoLogBuffer(t *testing.T) {
	buf := logbuffer.New(10)
	var out bytes.Buffer
	logger := New(&out, "staging", logbuffer.NewWriter(buf, nil))
	logger.Warn().Str("component", "discord").Msg("webhook slow")

	entries := buf.All()
	if len(entries) != 1 {
		t.Fatalf("buffered %d entries, want 1", len(entries))
	}
	if entries[0].Level != "warn" || entries[0].Message != "webhook slow" {
		t.Fatalf("entry=%+v", entries[0])
	}
}
