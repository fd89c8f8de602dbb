package logging

import (
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Vodeneev/loterias/internal/pkg/config"
)

// FileHandler writes JSON log records to a size-rotated file.
type FileHandler struct {
	slog.Handler
	writer *lumberjack.Logger
}

// NewFileHandler opens a rotating log file described by cfg.
func NewFileHandler(cfg config.LoggingConfig, level slog.Level) (*FileHandler, error) {
	if dir := filepath.Dir(cfg.File); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	w := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxAge:     cfg.MaxAgeDays,
		MaxBackups: cfg.MaxBackups,
		Compress:   true,
	}

	return &FileHandler{
		Handler: slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}),
		writer:  w,
	}, nil
}

// Close flushes and closes the underlying file.
func (h *FileHandler) Close() error {
	return h.writer.Close()
}
