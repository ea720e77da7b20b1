// Package zapadapter provides a logger that writes to a go.uber.org/zap.Logger.
package zapadapter

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/minipg/minipg"
)

type Logger struct {
	logger *zap.Logger
}

func NewLogger(logger *zap.Logger) *Logger {
	return &Logger{logger: logger.WithOptions(zap.AddCallerSkip(1))}
}

func (pl *Logger) Log(level minipg.LogLevel, msg string, data map[string]interface{}) {
	fields := make([]zapcore.Field, len(data))
	i := 0
	for k, v := range data {
		fields[i] = zap.Any(k, v)
		i++
	}

	switch level {
	case minipg.LogLevelTrace:
		pl.logger.Debug(msg, append(fields, zap.Stringer("PG_LOG_LEVEL", level))...)
	case minipg.LogLevelDebug:
		pl.logger.Debug(msg, fields...)
	case minipg.LogLevelInfo:
		pl.logger.Info(msg, fields...)
	case minipg.LogLevelWarn:
		pl.logger.Warn(msg, fields...)
	case minipg.LogLevelError:
		pl.logger.Error(msg, fields...)
	default:
		pl.logger.Error(msg, append(fields, zap.Stringer("INVALID_PG_LOG_LEVEL", level))...)
	}
}
