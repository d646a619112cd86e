// Package logging provides structured logging for devserve on top of
// log/slog, with a per-component field and a silent mode that suppresses
// everything below error for quiet development sessions.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog with devserve conventions.
type Logger struct {
	logger *slog.Logger
	silent bool
}

// Config holds logger configuration.
type Config struct {
	Silent bool
	Output io.Writer
}

// New creates a logger. In silent mode only errors are emitted.
func New(config Config) *Logger {
	out := config.Output
	if out == nil {
		out = os.Stderr
	}

	level := slog.LevelInfo
	if config.Silent {
		level = slog.LevelError
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})

	return &Logger{
		logger: slog.New(handler),
		silent: config.Silent,
	}
}

// WithComponent returns a logger tagged with a component field.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		logger: l.logger.With("component", component),
		silent: l.silent,
	}
}

// Silent reports whether the logger suppresses non-error output.
func (l *Logger) Silent() bool {
	return l.silent
}

func (l *Logger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

func (l *Logger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

func (l *Logger) Error(err error, msg string, args ...any) {
	if err != nil {
		args = append(args, "error", err)
	}
	l.logger.Error(msg, args...)
}
