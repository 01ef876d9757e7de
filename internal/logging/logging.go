// Package logging builds the widget's zerolog logger. The terminal belongs
// to the UI, so log lines go to a file.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config controls where and how verbosely the widget logs.
type Config struct {
	Level string
	Path  string
}

// New opens (appending) the log file at cfg.Path and returns a logger
// writing JSON lines to it. An empty path yields a no-op logger. The
// returned closer must be closed on shutdown.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return zerolog.Nop(), io.NopCloser(nil), nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("creating log directory: %w", err)
	}

	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("opening log file %s: %w", cfg.Path, err)
	}

	return NewWriter(f, cfg.Level), f, nil
}

// NewWriter returns a logger writing JSON lines to w.
func NewWriter(w io.Writer, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.ErrorFieldName = "err"

	return zerolog.New(w).
		Level(ParseLevel(level, zerolog.InfoLevel)).
		With().
		Timestamp().
		Logger()
}

// ParseLevel maps a level name to a zerolog level, falling back to def.
func ParseLevel(s string, def zerolog.Level) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return def
	}
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return def
	}
	return lvl
}
