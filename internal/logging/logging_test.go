package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestInit_Verbose(t *testing.T) {
	var buf bytes.Buffer
	Init(true, &buf)

	slog.Debug("check scored", "check", "SiteAuditCheckCronLast")
	if !strings.Contains(buf.String(), "check=SiteAuditCheckCronLast") {
		t.Errorf("expected debug message in verbose mode, got %q", buf.String())
	}
}

func TestInit_Default(t *testing.T) {
	var buf bytes.Buffer
	Init(false, &buf)

	slog.Debug("should not appear")
	slog.Info("should not appear")
	if buf.Len() != 0 {
		t.Errorf("expected no output in default mode, got %q", buf.String())
	}
}

func TestInit_WarnVisible(t *testing.T) {
	var buf bytes.Buffer
	Init(false, &buf)

	slog.Warn("check timed out")
	out := buf.String()
	if !strings.Contains(out, "check timed out") || !strings.Contains(out, "tool=site-audit") {
		t.Errorf("expected tagged warn message in default mode, got %q", out)
	}
}

func TestInit_NilOutput(t *testing.T) {
	// Should not panic with nil output (defaults to stderr)
	Init(false, nil)
}

func TestSetup_TextVerbose(t *testing.T) {
	var buf bytes.Buffer
	if err := Setup(Options{Verbose: true, Output: &buf}); err != nil {
		t.Fatal(err)
	}

	slog.Debug("check scored", "check", "SiteAuditCheckCronEnabled")
	out := buf.String()
	if !strings.Contains(out, "level=DEBUG") || !strings.Contains(out, "check=SiteAuditCheckCronEnabled") {
		t.Errorf("expected a text debug record, got %q", out)
	}
}

func TestSetup_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Setup(Options{Format: "JSON", Output: &buf}); err != nil {
		t.Fatal(err)
	}

	slog.Warn("probe unavailable", "check", "SiteAuditCheckDatabaseSize")
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected a JSON record, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "probe unavailable" || rec["check"] != "SiteAuditCheckDatabaseSize" {
		t.Errorf("record = %v", rec)
	}
}

func TestSetup_UnknownFormat(t *testing.T) {
	if err := Setup(Options{Format: "xml"}); err == nil {
		t.Error("expected error for unknown log format")
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", FormatText},
		{"text", FormatText},
		{" Json ", FormatJSON},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}
