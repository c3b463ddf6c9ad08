// Package zerolog adapts a zerolog.Logger to the SDK's logger.Logger
// interface.
package zerolog

import (
	"github.com/rs/zerolog"

	"github.com/streamsub/streamsub.go/pkg/logger"
)

type zerologLogger struct {
	logger zerolog.Logger
}

// New returns a logger.Logger that writes through the given zerolog.Logger.
func New(l zerolog.Logger) logger.Logger {
	return &zerologLogger{logger: l}
}

func (l *zerologLogger) Error(msg string, args ...any) {
	l.logger.Error().Fields(fields(args)).Msg(msg)
}

func (l *zerologLogger) Warn(msg string, args ...any) {
	l.logger.Warn().Fields(fields(args)).Msg(msg)
}

func (l *zerologLogger) Info(msg string, args ...any) {
	l.logger.Info().Fields(fields(args)).Msg(msg)
}

func (l *zerologLogger) Debug(msg string, args ...any) {
	l.logger.Debug().Fields(fields(args)).Msg(msg)
}

// fields converts slog-style alternating key/value args into the map
// zerolog expects. A trailing key with no value is kept with a nil value
// rather than dropped, so misuse stays visible in the output.
func fields(args []any) map[string]any {
	if len(args) == 0 {
		return nil
	}

	m := make(map[string]any, (len(args)+1)/2)
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		if i+1 < len(args) {
			m[key] = args[i+1]
		} else {
			m[key] = nil
		}
	}

	return m
}
