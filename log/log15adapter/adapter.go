// Package log15adapter provides a logger that writes to a
// gopkg.in/inconshreveable/log15.v2 Logger.
package log15adapter

import (
	log15 "gopkg.in/inconshreveable/log15.v2"

	"github.com/minipg/minipg"
)

type Logger struct {
	l log15.Logger
}

func NewLogger(l log15.Logger) *Logger {
	return &Logger{l: l}
}

func (l *Logger) Log(level minipg.LogLevel, msg string, data map[string]interface{}) {
	logArgs := make([]interface{}, 0, len(data)*2)
	for k, v := range data {
		logArgs = append(logArgs, k, v)
	}

	switch level {
	case minipg.LogLevelTrace:
		l.l.Debug(msg, append(logArgs, "PG_LOG_LEVEL", level)...)
	case minipg.LogLevelDebug:
		l.l.Debug(msg, logArgs...)
	case minipg.LogLevelInfo:
		l.l.Info(msg, logArgs...)
	case minipg.LogLevelWarn:
		l.l.Warn(msg, logArgs...)
	case minipg.LogLevelError:
		l.l.Error(msg, logArgs...)
	default:
		l.l.Error(msg, append(logArgs, "INVALID_PG_LOG_LEVEL", level)...)
	}
}
