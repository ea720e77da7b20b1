// Package kitlogadapter provides a logger that writes to a github.com/go-kit/log.Logger.
package kitlogadapter

import (
	"github.com/go-kit/log"
	kitlevel "github.com/go-kit/log/level"

	"github.com/minipg/minipg"
)

type Logger struct {
	l log.Logger
}

func NewLogger(l log.Logger) *Logger {
	return &Logger{l: l}
}

func (l *Logger) Log(level minipg.LogLevel, msg string, data map[string]interface{}) {
	logger := l.l
	for k, v := range data {
		logger = log.With(logger, k, v)
	}

	switch level {
	case minipg.LogLevelTrace:
		logger.Log("PG_LOG_LEVEL", level, "msg", msg)
	case minipg.LogLevelDebug:
		kitlevel.Debug(logger).Log("msg", msg)
	case minipg.LogLevelInfo:
		kitlevel.Info(logger).Log("msg", msg)
	case minipg.LogLevelWarn:
		kitlevel.Warn(logger).Log("msg", msg)
	case minipg.LogLevelError:
		kitlevel.Error(logger).Log("msg", msg)
	default:
		logger.Log("INVALID_PG_LOG_LEVEL", level, "error", msg)
	}
}
