// Package logger defines the logging abstraction used across the SDK.
//
// The SDK never logs through a concrete logging library directly; every
// component accepts a [Logger] so that the consumer can plug in whatever
// their application already uses. [New] adapts any [log/slog.Handler],
// and [github.com/streamsub/streamsub.go/pkg/logger/zerolog] adapts a
// zerolog logger.
package logger

import (
	"log/slog"
)

// Logger accepts a message followed by alternating key/value pairs,
// matching the log/slog argument convention.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
}

type slogLogger struct {
	logger *slog.Logger
}

// New returns a Logger backed by the given slog handler.
func New(h slog.Handler) Logger {
	return &slogLogger{logger: slog.New(h)}
}

func (l *slogLogger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}

func (l *slogLogger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

func (l *slogLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

func (l *slogLogger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}
