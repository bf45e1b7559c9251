package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(LevelWarn, FormatText, &buf)

	logger.Debugf("debug %d", 1)
	logger.Infof("info %d", 2)
	logger.Warnf("warn %d", 3)
	logger.Errorf("error %d", 4)

	out := buf.String()
	if strings.Contains(out, "debug 1") || strings.Contains(out, "info 2") {
		t.Errorf("levels below warn should be filtered, got:\n%s", out)
	}
	if !strings.Contains(out, "warn 3") || !strings.Contains(out, "error 4") {
		t.Errorf("warn and error should be logged, got:\n%s", out)
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(LevelInfo, FormatJSON, &buf).
		Component("manager").
		WithField("jobId", "job-1").
		WithError(errors.New("store unavailable"))

	logger.Error("progress flush failed")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if entry["level"] != "error" {
		t.Errorf("level = %v, want error", entry["level"])
	}
	if entry["message"] != "progress flush failed" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["component"] != "manager" {
		t.Errorf("component = %v, want manager", entry["component"])
	}
	if entry["jobId"] != "job-1" {
		t.Errorf("jobId = %v, want job-1", entry["jobId"])
	}
	if entry["error"] != "store unavailable" {
		t.Errorf("error = %v", entry["error"])
	}
}

func TestDerivedLoggerDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := New(LevelInfo, FormatJSON, &buf)
	_ = parent.WithField("jobId", "child-only")

	parent.Info("parent line")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := entry["jobId"]; ok {
		t.Error("parent logger picked up a child field")
	}
}

func TestTextOutputFieldOrder(t *testing.T) {
	var buf bytes.Buffer
	logger := New(LevelInfo, FormatText, &buf).
		Component("worker").
		WithFields(map[string]interface{}{"b": 2, "a": 1})

	logger.Info("hello")

	out := strings.TrimSpace(buf.String())
	if !strings.Contains(out, "[worker]") {
		t.Errorf("component tag missing: %s", out)
	}
	// fields are emitted sorted for stable output
	if strings.Index(out, "a=1") > strings.Index(out, "b=2") {
		t.Errorf("fields not sorted: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"bogus":   LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
