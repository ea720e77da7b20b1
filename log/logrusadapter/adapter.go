// Package logrusadapter provides a logger that writes to a github.com/sirupsen/logrus.Logger
// log.
package logrusadapter

import (
	"github.com/sirupsen/logrus"

	"github.com/minipg/minipg"
)

type Logger struct {
	l logrus.FieldLogger
}

func NewLogger(l logrus.FieldLogger) *Logger {
	return &Logger{l: l}
}

func (l *Logger) Log(level minipg.LogLevel, msg string, data map[string]interface{}) {
	var logger logrus.FieldLogger
	if data != nil {
		logger = l.l.WithFields(data)
	} else {
		logger = l.l
	}

	switch level {
	case minipg.LogLevelTrace:
		logger.WithField("PG_LOG_LEVEL", level).Debug(msg)
	case minipg.LogLevelDebug:
		logger.Debug(msg)
	case minipg.LogLevelInfo:
		logger.Info(msg)
	case minipg.LogLevelWarn:
		logger.Warn(msg)
	case minipg.LogLevelError:
		logger.Error(msg)
	default:
		logger.WithField("INVALID_PG_LOG_LEVEL", level).Error(msg)
	}
}
