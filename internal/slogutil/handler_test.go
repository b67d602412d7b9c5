package slogutil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"testing"
)

func TestLineHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)

	logger.Info("Sandbox synchronized", "sandbox", "CY49.main.2y", "count", 42)

	line := regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2} INFO  \[CY49\.main\.2y\] Sandbox synchronized \| count=42\n$`)
	if !line.MatchString(buf.String()) {
		t.Errorf("unexpected line: %q", buf.String())
	}
}

func TestLineHandler_Scope(t *testing.T) {
	tests := []struct {
		name string
		log  func(*slog.Logger)
		want string
	}{
		{"none", func(l *slog.Logger) { l.Info("Build started") }, "INFO  Build started\n"},
		{"sandbox and target", func(l *slog.Logger) {
			l.Warn("Target failed", "sandbox", "CY49.mary.2y", "target", "masterodb", "error", errors.New("exit status 2"))
		}, `WARN  [CY49.mary.2y/masterodb] Target failed | error="exit status 2"` + "\n"},
		{"program only", func(l *slog.Logger) { l.Info("Linking", "program", "bator") }, "INFO  [bator] Linking\n"},
		{"from With", func(l *slog.Logger) {
			l.With("sandbox", "CY49.main.2y").Info("Compiled", "target", "ioassign")
		}, "INFO  [CY49.main.2y/ioassign] Compiled\n"},
		{"record overrides With", func(l *slog.Logger) {
			l.With("target", "bator").Info("Compiled", "target", "masterodb")
		}, "INFO  [masterodb] Compiled\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(NewLogger(&buf, slog.LevelDebug))
			// skip the timestamp
			got := buf.String()
			if len(got) < 20 || got[20:] != tt.want {
				t.Errorf("line = %q, want suffix %q", got, tt.want)
			}
		})
	}
}

func TestLineHandler_Levels(t *testing.T) {
	tests := []struct {
		logFunc  func(*slog.Logger)
		expected string
	}{
		{func(l *slog.Logger) { l.Debug("debug") }, " DEBUG debug"},
		{func(l *slog.Logger) { l.Info("info") }, " INFO  info"},
		{func(l *slog.Logger) { l.Warn("warn") }, " WARN  warn"},
		{func(l *slog.Logger) { l.Error("error") }, " ERROR error"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(&buf, slog.LevelDebug)
			tt.logFunc(logger)

			if !strings.Contains(buf.String(), tt.expected) {
				t.Errorf("expected %q in output, got: %s", tt.expected, buf.String())
			}
		})
	}
}

func TestLineHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")

	output := buf.String()
	if strings.Contains(output, "debug message") || strings.Contains(output, "info message") {
		t.Errorf("messages below warn should be filtered: %s", output)
	}
	if !strings.Contains(output, "warn message") {
		t.Error("warn message should be included")
	}
}

func TestLineHandler_Groups(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo).With("runId", "r1").WithGroup("build")

	// inside a group, target is an ordinary attribute
	logger.Info("Compiled", "ok", true, "target", "masterodb", slog.Group("files", "compiled", 3))

	want := " | runId=r1 build.ok=true build.target=masterodb build.files.compiled=3\n"
	if !strings.HasSuffix(buf.String(), want) {
		t.Errorf("line = %q, want suffix %q", buf.String(), want)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   slog.Value
		want string
	}{
		{slog.StringValue("src/local/arpifs"), "src/local/arpifs"},
		{slog.StringValue("git checkout main"), `"git checkout main"`},
		{slog.StringValue(""), `""`},
		{slog.StringValue("a=b"), `"a=b"`},
		{slog.IntValue(7), "7"},
		{slog.BoolValue(false), "false"},
		{slog.AnyValue(errors.New("boom")), "boom"},
	}
	for _, tt := range tests {
		if got := formatValue(tt.in); got != tt.want {
			t.Errorf("formatValue(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestNewFormatLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewFormatLogger(&buf, "json", slog.LevelInfo)
	logger.Info("hello", "k", "v")

	var rec map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if rec["msg"] != "hello" || rec["k"] != "v" {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestLevelFromString(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := LevelFromString(in); got != want {
			t.Errorf("LevelFromString(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLevelFromVerbosity(t *testing.T) {
	if got := LevelFromVerbosity(3, true, slog.LevelWarn); got != Silent {
		t.Errorf("quiet should win, got %v", got)
	}
	if got := LevelFromVerbosity(0, false, slog.LevelWarn); got != slog.LevelWarn {
		t.Errorf("verbosity 0 = %v, want fallback", got)
	}
	if got := LevelFromVerbosity(1, false, slog.LevelWarn); got != slog.LevelInfo {
		t.Errorf("verbosity 1 = %v, want info", got)
	}
	if got := LevelFromVerbosity(2, false, slog.LevelWarn); got != slog.LevelDebug {
		t.Errorf("verbosity 2 = %v, want debug", got)
	}
}

func TestTee(t *testing.T) {
	var a, b bytes.Buffer
	logger := Tee(NewLogger(&a, slog.LevelInfo), &b, slog.LevelWarn)

	logger.Info("only first")
	logger.Warn("both")

	if !strings.Contains(a.String(), "only first") || !strings.Contains(a.String(), "both") {
		t.Errorf("first sink missing records: %s", a.String())
	}
	if strings.Contains(b.String(), "only first") || !strings.Contains(b.String(), "both") {
		t.Errorf("second sink should only hold warn: %s", b.String())
	}
}

func TestDiscardLogger(t *testing.T) {
	logger := NewDiscardLogger()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("discard logger should not be enabled at error")
	}
}
