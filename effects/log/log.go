// Package log exposes a zap logger to sources as the "log" command.
package log

import (
	"context"

	"github.com/on-the-ground/sourcebus/effects"
	"go.uber.org/zap"
)

// Command is the name the log handler is registered under.
const Command = "log"

// LogLevel defines the severity level for log messages.
type LogLevel string

const (
	// LogInfo is used for general informational messages.
	LogInfo LogLevel = "info"

	// LogWarn is used for potentially harmful situations.
	LogWarn LogLevel = "warn"

	// LogError is used for error events that might still allow the application to continue running.
	LogError LogLevel = "error"

	// LogDebug is used for debugging messages with detailed internal information.
	LogDebug LogLevel = "debug"
)

// LogPayload is the single argument of the log command.
type LogPayload struct {
	Level   LogLevel
	Message string
	Fields  map[string]any
}

// ZapHandler writes every LogPayload it receives to logger.
func ZapHandler(logger *zap.Logger) effects.CommandFunc {
	return func(_ context.Context, args ...any) (any, error) {
		payload, err := effects.Arg[LogPayload](args, 0)
		if err != nil {
			return nil, err
		}

		fields := make([]zap.Field, 0, len(payload.Fields))
		for k, v := range payload.Fields {
			fields = append(fields, zap.Any(k, v))
		}

		switch payload.Level {
		case LogWarn:
			logger.Warn(payload.Message, fields...)
		case LogError:
			logger.Error(payload.Message, fields...)
		case LogDebug:
			logger.Debug(payload.Message, fields...)
		default:
			logger.Info(payload.Message, fields...)
		}
		return nil, nil
	}
}

// WithZapLogHandler returns a source registering ZapHandler(logger) as the log command.
// Run it once per bus before any source calls LogEff.
func WithZapLogHandler(logger *zap.Logger) effects.Source {
	return func(co *effects.Co, _ ...any) (any, error) {
		return co.Yield(effects.OnCommand(Command, ZapHandler(logger)))
	}
}

// LogEff logs through the log command of the bus running co.
func LogEff(co *effects.Co, level LogLevel, msg string, fields map[string]any) error {
	_, err := co.Yield(effects.Command(Command, LogPayload{
		Level:   level,
		Message: msg,
		Fields:  fields,
	}))
	return err
}
