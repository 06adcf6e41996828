// Package logger builds the service's zerolog logger and the gin middleware
// that logs every request through it.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates a logger writing to stdout and, when cfg.File is set, to a
// size-rotated file.
func New(cfg Config, service string) zerolog.Logger {
	cfg.ApplyDefaults()

	var console io.Writer = os.Stdout
	if strings.ToLower(cfg.Format) == "console" {
		console = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	writers := []io.Writer{console}
	if cfg.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		})
	}

	return NewWithWriter(zerolog.MultiLevelWriter(writers...), cfg, service)
}

// NewWithWriter creates a logger writing JSON lines to w.
func NewWithWriter(w io.Writer, cfg Config, service string) zerolog.Logger {
	cfg.ApplyDefaults()

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Logger()
}
