// Package logging builds the service's JSON slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects the log level and destination.
type Config struct {
	Level string // debug | info | warn | error (default: info)
	// File, when set, sends logs to a size-rotated file instead of stdout.
	File       string
	MaxSizeMB  int // default: 64
	MaxBackups int // default: 5
	MaxAgeDays int // default: 14
}

// New returns a JSON logger writing to stdout or the configured file, and a
// close function for the file writer. An unknown level falls back to info and
// is reported as an error alongside the usable logger.
func New(cfg Config) (*slog.Logger, func() error, error) {
	level, levelErr := ParseLevel(cfg.Level)

	var w io.Writer = os.Stdout
	closeFn := func() error { return nil }
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 64), // MB
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAgeDays, 14),
			Compress:   true,
		}
		w = lj
		closeFn = lj.Close
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	return logger, closeFn, levelErr
}

// ParseLevel maps a level name to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
