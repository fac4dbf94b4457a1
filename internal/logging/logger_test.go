package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New("info", "json", &buf)

	logger.Debug("hidden")
	logger.Info("dataset loaded", "rows", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["msg"] != "dataset loaded" {
		t.Errorf("msg = %v, want dataset loaded", entry["msg"])
	}
	if entry["rows"] != float64(3) {
		t.Errorf("rows = %v, want 3", entry["rows"])
	}
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New("debug", "text", &buf)
	logger.Debug("clean step", "step", "drop_duplicates")

	out := buf.String()
	if !strings.Contains(out, "level=DEBUG") || !strings.Contains(out, "step=drop_duplicates") {
		t.Errorf("unexpected text output: %q", out)
	}
}

func TestValidLevelAndFormat(t *testing.T) {
	if !ValidLevel("warn") || ValidLevel("loud") {
		t.Error("ValidLevel() mismatch")
	}
	if !ValidFormat("JSON") || ValidFormat("xml") {
		t.Error("ValidFormat() mismatch")
	}
}

func TestFromContext_RequestID(t *testing.T) {
	rec := NewRecorder()
	prev := slog.Default()
	slog.SetDefault(rec.Logger())
	defer slog.SetDefault(prev)

	var ctx context.Context
	h := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx = r.Context()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	FromContext(ctx).Info("cleaning upload", "file", "movies.csv")

	entries := rec.Entries()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Attrs["request_id"] == "" || entries[0].Attrs["request_id"] == nil {
		t.Error("request_id missing")
	}
	if entries[0].Attrs["file"] != "movies.csv" {
		t.Errorf("file = %v, want movies.csv", entries[0].Attrs["file"])
	}
}

func TestFromContext_NoRequestID(t *testing.T) {
	rec := NewRecorder()
	prev := slog.Default()
	slog.SetDefault(rec.Logger())
	defer slog.SetDefault(prev)

	FromContext(context.Background()).Info("no request")

	entries := rec.Entries()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if _, ok := entries[0].Attrs["request_id"]; ok {
		t.Error("request_id should be absent")
	}
}

func TestRecorder(t *testing.T) {
	rec := NewRecorder()
	logger := rec.Logger().With("run_id", "abc")

	logger.Warn("column not found, step skipped", "column", "genres")
	logger.WithGroup("report").Error("'id' column not found.", "rows", 0)

	if !rec.Has(slog.LevelWarn, "step skipped") {
		t.Error("Has(warn) = false")
	}
	if !rec.Has(slog.LevelError, "'id' column not found.") {
		t.Error("Has(error) = false")
	}
	if rec.Has(slog.LevelInfo, "column") {
		t.Error("Has(info) = true, want false")
	}

	entries := rec.Entries()
	if entries[0].Attrs["run_id"] != "abc" || entries[0].Attrs["column"] != "genres" {
		t.Errorf("attrs = %v", entries[0].Attrs)
	}
	if _, ok := entries[1].Attrs["report.rows"]; !ok {
		t.Errorf("grouped attrs = %v", entries[1].Attrs)
	}
}

func TestSetup(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	logger := Setup("warn", "json", &buf)
	if slog.Default() != logger {
		t.Fatal("Setup did not install the default logger")
	}

	slog.Info("hidden")
	slog.Warn("shown", "rows", 3)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line written at warn level: %s", out)
	}
	var line map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &line); err != nil {
		t.Fatalf("output is not one JSON line: %q", out)
	}
	if line["msg"] != "shown" || line["rows"] != float64(3) {
		t.Errorf("line = %v", line)
	}
}
