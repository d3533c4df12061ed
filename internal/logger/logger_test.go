package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/samvad-hq/samvad-request/internal/config"
)

func TestZapLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := initWithWriter(&config.Config{AppName: "samvad-request", Env: "test", LogLevel: "info"}, &buf)
	if err != nil {
		t.Fatalf("init: %v", err)
	}

	log.DebugObj("hidden", "k", 1)
	log.InfoObj("refresh settled", "refresh_state", map[string]any{"status": "succeeded"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line at info level, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["msg"] != "refresh settled" || entry["app"] != "samvad-request" {
		t.Fatalf("unexpected entry %#v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("missing ts field: %#v", entry)
	}
	state, _ := entry["refresh_state"].(map[string]any)
	if state["status"] != "succeeded" {
		t.Fatalf("object field not encoded: %#v", entry)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{"debug": "debug", "WARNING": "warn", "error": "error", "": "info", "bogus": "info"}
	for in, want := range cases {
		if got := parseLevel(in).String(); got != want {
			t.Fatalf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestPackageHelpersBeforeInitAreNoops(t *testing.T) {
	S = nil
	InfoObj("x", "k", 1)
	if err := Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	var _ Logger = NopLogger{}
}
