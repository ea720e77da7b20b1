// Package zerologadapter provides a logger that writes to a github.com/rs/zerolog.
package zerologadapter

import (
	"github.com/rs/zerolog"

	"github.com/minipg/minipg"
)

type Logger struct {
	logger zerolog.Logger
}

// NewLogger accepts a zerolog.Logger as input and returns a new custom minipg
// logging fascade as output.
func NewLogger(logger zerolog.Logger) *Logger {
	return &Logger{
		logger: logger.With().Str("module", "minipg").Logger(),
	}
}

func (pl *Logger) Log(level minipg.LogLevel, msg string, data map[string]interface{}) {
	var zlevel zerolog.Level
	switch level {
	case minipg.LogLevelNone:
		zlevel = zerolog.NoLevel
	case minipg.LogLevelError:
		zlevel = zerolog.ErrorLevel
	case minipg.LogLevelWarn:
		zlevel = zerolog.WarnLevel
	case minipg.LogLevelInfo:
		zlevel = zerolog.InfoLevel
	case minipg.LogLevelDebug:
		zlevel = zerolog.DebugLevel
	default:
		zlevel = zerolog.DebugLevel
	}

	pglog := pl.logger.With().Fields(data).Logger()
	pglog.WithLevel(zlevel).Msg(msg)
}
