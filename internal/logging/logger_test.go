package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	diag := NewRingBuffer(10)
	logger := New(Config{
		Level:       LevelDebug,
		Output:      &buf,
		JSON:        true,
		Diagnostics: diag,
	})

	t.Run("Levels", func(t *testing.T) {
		buf.Reset()
		logger.Debug("debug msg")
		if !strings.Contains(buf.String(), "debug msg") {
			t.Error("debug logging failed")
		}

		buf.Reset()
		logger.Error("error msg")
		if !strings.Contains(buf.String(), "error msg") {
			t.Error("error logging failed")
		}
	})

	t.Run("LevelFilter", func(t *testing.T) {
		quiet := New(Config{Level: LevelError, Output: &buf, Diagnostics: NewRingBuffer(2)})

		buf.Reset()
		quiet.Info("should not appear")
		if buf.Len() > 0 {
			t.Error("Logged info message when level was Error")
		}
	})

	t.Run("WithComponent", func(t *testing.T) {
		buf.Reset()
		logger.WithComponent("test-comp").Info("msg")
		if !strings.Contains(buf.String(), "test-comp") {
			t.Error("WithComponent missing component field")
		}
	})

	t.Run("Audit", func(t *testing.T) {
		buf.Reset()
		logger.Audit("rule.delete", "rule:7", map[string]any{"service": "http"})
		logStr := buf.String()
		if !strings.Contains(logStr, "AUDIT") || !strings.Contains(logStr, "rule:7") {
			t.Errorf("Audit log incomplete: %s", logStr)
		}
	})
}

func TestConsoleHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Output: &buf, Diagnostics: NewRingBuffer(4)})

	logger.WithComponent("Sync").Info("rule added", "id", 12, "text", "a b")

	line := buf.String()
	if !strings.Contains(line, "rulegate[") || !strings.Contains(line, "[info] sync: rule added") {
		t.Errorf("unexpected console line: %q", line)
	}
	if !strings.Contains(line, "id=12") || !strings.Contains(line, `text="a b"`) {
		t.Errorf("attributes not rendered: %q", line)
	}
}

func TestDiagnosticsTee(t *testing.T) {
	var buf bytes.Buffer
	diag := NewRingBuffer(4)
	logger := New(Config{Level: LevelInfo, Output: &buf, Diagnostics: diag})

	logger.WithComponent("sync").Error("delete failed", "id", 3)
	logger.Debug("filtered out")

	entries := diag.GetAll()
	if len(entries) != 1 {
		t.Fatalf("expected 1 diagnostic entry, got %d", len(entries))
	}
	if entries[0].Source != "sync" || entries[0].Level != "error" {
		t.Errorf("unexpected entry: %+v", entries[0])
	}
	if entries[0].Extra["id"] != "3" {
		t.Errorf("expected extra id=3, got %v", entries[0].Extra)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug": LevelDebug,
		"":      LevelInfo,
		"WARN":  LevelWarn,
		"error": LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestDefaultLogger(t *testing.T) {
	prev := Default()
	defer SetDefault(prev)

	var buf bytes.Buffer
	SetDefault(New(Config{Output: &buf, Name: "Backend", Diagnostics: NewRingBuffer(8)}))

	WithComponent("comp").Info("comp msg")
	Default().Debug("hidden")

	line := buf.String()
	if !strings.HasPrefix(line[strings.Index(line, " ")+1:], "backend[") {
		t.Errorf("process name not printed: %q", line)
	}
	if !strings.Contains(line, "comp: comp msg") || strings.Contains(line, "hidden") {
		t.Errorf("unexpected default logger output: %q", line)
	}
}

func TestRingBuffer(t *testing.T) {
	rb := NewRingBuffer(3)

	for _, m := range []string{"1", "2", "3", "4"} {
		rb.Add(Entry{Message: m})
	}
	if rb.Count() != 3 {
		t.Errorf("Count should be capped at size 3, got %d", rb.Count())
	}

	all := rb.GetAll()
	if all[0].Message != "2" || all[2].Message != "4" {
		t.Errorf("GetAll wrapped incorrectly: %+v", all)
	}

	last := rb.GetLast(2)
	if len(last) != 2 || last[0].Message != "3" {
		t.Errorf("GetLast(2) wrong: %+v", last)
	}
	if len(rb.GetLast(0)) != 0 {
		t.Error("GetLast(0) should return empty")
	}

	rb.Clear()
	if rb.Count() != 0 {
		t.Error("Clear did not empty buffer")
	}
}

func TestJSONLogParsing(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Output: &buf, JSON: true, Diagnostics: NewRingBuffer(2)})

	l.Info("json test", "key", "value")

	var data map[string]any
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}
	if data["msg"] != "json test" || data["key"] != "value" || data["level"] != "INFO" {
		t.Errorf("unexpected JSON record: %v", data)
	}
}
