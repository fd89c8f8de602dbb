package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Vodeneev/loterias/internal/pkg/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.expected {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestMultiHandler_FansOut(t *testing.T) {
	var text, js bytes.Buffer
	h := &MultiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&text, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&js, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}}
	logger := slog.New(h).With("game", "EURO")

	logger.Info("Window resolved", "draws", 3)
	logger.Warn("Window exhausted")

	if !strings.Contains(text.String(), "Window resolved") || !strings.Contains(text.String(), "Window exhausted") {
		t.Errorf("text handler output missing records: %s", text.String())
	}
	if strings.Contains(js.String(), "Window resolved") {
		t.Errorf("json handler should drop info records: %s", js.String())
	}
	if !strings.Contains(js.String(), `"game":"EURO"`) {
		t.Errorf("json handler should carry attrs: %s", js.String())
	}
}

func TestSetupLogger_WritesFile(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	path := filepath.Join(t.TempDir(), "logs", "run.log")
	cfg := &config.LoggingConfig{Level: "debug", File: path, MaxSizeMB: 1}

	logger, closer, err := SetupLogger(cfg, "loterias")
	if err != nil {
		t.Fatalf("SetupLogger: %v", err)
	}
	logger.Debug("Probe record")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "Probe record") || !strings.Contains(string(data), `"service":"loterias"`) {
		t.Errorf("log file content = %s", data)
	}
}
