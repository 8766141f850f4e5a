package logging_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"medannotate/internal/config"
	"medannotate/internal/logging"
	"medannotate/internal/services"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("server ready")

	content, err := os.ReadFile(cfg.LogPath())
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "server ready") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerLiftsSubjectIntoHeader(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{
		Format:  "console",
		Level:   "info",
		Outputs: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithItemID(context.Background(), 12)
	ctx = services.WithTrack(ctx, "expert")
	logging.WithContext(ctx, logging.NewComponentLogger(logger, "assignment")).
		Info("item claimed", logging.String("counter", "3/10"), logging.Error(errors.New("boom")))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(content)
	for _, want := range []string{"INFO [assignment] Item #12 (expert) - item claimed", "    - counter: 3/10", "    - error: boom"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in console output, got %q", want, text)
		}
	}
	if strings.Contains(text, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", text)
	}
}

func TestJSONLoggerUsesShortKeys(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{
		Format:  "json",
		Level:   "warn",
		Outputs: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("suppressed")
	logger.Warn("claim conflict", logging.Int64(logging.FieldItemID, 4))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one log line, got %d: %q", len(lines), content)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if entry["level"] != "warn" || entry["msg"] != "claim conflict" || entry["ts"] == nil {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry[logging.FieldItemID] != float64(4) {
		t.Fatalf("unexpected item id: %v", entry[logging.FieldItemID])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{
		"debug":   "DEBUG",
		" WARN ":  "WARN",
		"warning": "WARN",
		"error":   "ERROR",
		"":        "INFO",
		"verbose": "INFO",
	}
	for input, want := range cases {
		if got := logging.ParseLevel(input).String(); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", input, got, want)
		}
	}
}
