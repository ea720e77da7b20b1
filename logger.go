package minipg

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/minipg/minipg/pgval"
)

// LogLevel is the severity of a log message produced by a Conn.
type LogLevel int

// The values for log levels are chosen such that the zero value means that no
// log level was specified.
const (
	LogLevelTrace = LogLevel(6)
	LogLevelDebug = LogLevel(5)
	LogLevelInfo  = LogLevel(4)
	LogLevelWarn  = LogLevel(3)
	LogLevelError = LogLevel(2)
	LogLevelNone  = LogLevel(1)
)

func (ll LogLevel) String() string {
	switch ll {
	case LogLevelTrace:
		return "trace"
	case LogLevelDebug:
		return "debug"
	case LogLevelInfo:
		return "info"
	case LogLevelWarn:
		return "warn"
	case LogLevelError:
		return "error"
	case LogLevelNone:
		return "none"
	default:
		return fmt.Sprintf("invalid level %d", ll)
	}
}

// Logger is the interface used to get logging from minipg internals. Adapters
// for several logging packages are provided in the log directory.
type Logger interface {
	// Log a message at the given level with data key/value pairs. data may
	// be nil.
	Log(level LogLevel, msg string, data map[string]interface{})
}

// LogLevelFromString converts a log level string to the matching constant.
//
// Valid levels:
//
//	trace
//	debug
//	info
//	warn
//	error
//	none
func LogLevelFromString(s string) (LogLevel, error) {
	switch s {
	case "trace":
		return LogLevelTrace, nil
	case "debug":
		return LogLevelDebug, nil
	case "info":
		return LogLevelInfo, nil
	case "warn":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	case "none":
		return LogLevelNone, nil
	default:
		return 0, errors.New("invalid log level")
	}
}

// logQueryArgs truncates large values so SQL argument logging stays bounded.
func logQueryArgs(args []pgval.Value) []interface{} {
	logArgs := make([]interface{}, 0, len(args))

	for _, v := range args {
		switch v.Kind {
		case pgval.KindBytes:
			if len(v.Bytes) < 64 {
				logArgs = append(logArgs, hex.EncodeToString(v.Bytes))
			} else {
				logArgs = append(logArgs, fmt.Sprintf("%x (truncated %d bytes)", v.Bytes[:64], len(v.Bytes)-64))
			}
		case pgval.KindText:
			if len(v.Text) > 64 {
				logArgs = append(logArgs, fmt.Sprintf("%s (truncated %d bytes)", v.Text[:64], len(v.Text)-64))
			} else {
				logArgs = append(logArgs, v.Text)
			}
		case pgval.KindNull:
			logArgs = append(logArgs, nil)
		case pgval.KindBool:
			logArgs = append(logArgs, v.Bool)
		case pgval.KindInt64:
			logArgs = append(logArgs, v.Int64)
		case pgval.KindFloat64:
			logArgs = append(logArgs, v.Float64)
		}
	}

	return logArgs
}
