package logger_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streamsub/streamsub.go/pkg/logger"
)

type logLine struct {
	Level string `json:"level"`
	Msg   string `json:"msg"`
	Key   string `json:"key"`
}

func TestLogger(t *testing.T) {
	var buffer bytes.Buffer

	// level needs to be debug so that every method produces output
	handler := slog.NewJSONHandler(&buffer, &slog.HandlerOptions{Level: slog.LevelDebug})
	log := logger.New(handler)

	methods := map[string]func(msg string, args ...any){
		"ERROR": log.Error,
		"WARN":  log.Warn,
		"INFO":  log.Info,
		"DEBUG": log.Debug,
	}

	for level, fn := range methods {
		t.Run(level, func(t *testing.T) {
			buffer.Reset()

			fn("something happened", "key", "value")
			require.Greater(t, buffer.Len(), 0)

			var line logLine
			require.NoError(t, json.Unmarshal(buffer.Bytes(), &line))
			require.Equal(t, level, line.Level)
			require.Equal(t, "something happened", line.Msg)
			require.Equal(t, "value", line.Key)
		})
	}
}
