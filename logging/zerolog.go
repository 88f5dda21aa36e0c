package logging

import (
	"github.com/rs/zerolog"
)

// ZerologAdapter bridges a zerolog.Logger to the Logger interface. Args are
// interpreted as alternating key/value pairs, matching the slog convention.
type ZerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologAdapter creates a Logger backed by the given zerolog.Logger.
func NewZerologAdapter(logger zerolog.Logger) Logger {
	return &ZerologAdapter{logger: logger}
}

// Debug logs a debug message.
func (z *ZerologAdapter) Debug(msg string, args ...any) {
	applyFields(z.logger.Debug(), args).Msg(msg)
}

// Info logs an informational message.
func (z *ZerologAdapter) Info(msg string, args ...any) {
	applyFields(z.logger.Info(), args).Msg(msg)
}

// Warn logs a warning message.
func (z *ZerologAdapter) Warn(msg string, args ...any) {
	applyFields(z.logger.Warn(), args).Msg(msg)
}

// Error logs an error message.
func (z *ZerologAdapter) Error(msg string, args ...any) {
	applyFields(z.logger.Error(), args).Msg(msg)
}

func applyFields(ev *zerolog.Event, args []any) *zerolog.Event {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, args[i+1])
	}
	return ev
}
