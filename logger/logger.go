package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

var logger = newLogger(os.Stdout)

func newLogger(w io.Writer) zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.DateTime, NoColor: w != os.Stdout}
	return zerolog.New(out).With().Timestamp().Logger().Level(zerolog.InfoLevel)
}

func InitLogger(logLevel *string) {
	level := INFO
	if logLevel != nil {
		switch strings.ToLower(*logLevel) {
		case "debug":
			level = DEBUG
		case "warn":
			level = WARN
		case "error":
			level = ERROR
		}
	}
	SetLogLevel(level)
	Debug("Logger initialised")
}

// SetOutput redirects log lines, mostly for tests
func SetOutput(w io.Writer) {
	lvl := logger.GetLevel()
	logger = newLogger(w).Level(lvl)
}

// SetLogLevel sets the global log level
func SetLogLevel(level LogLevel) {
	logger = logger.Level(toZerolog(level))
}

func toZerolog(level LogLevel) zerolog.Level {
	switch level {
	case DEBUG:
		return zerolog.DebugLevel
	case WARN:
		return zerolog.WarnLevel
	case ERROR:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Debug logs debug-level messages
func Debug(v ...interface{}) {
	logger.Debug().Msg(fmt.Sprint(v...))
}

// Debugf logs debug-level formatted messages
func Debugf(format string, v ...interface{}) {
	logger.Debug().Msgf(format, v...)
}

// Info logs info-level messages
func Info(v ...interface{}) {
	logger.Info().Msg(fmt.Sprint(v...))
}

// Infof logs info-level formatted messages
func Infof(format string, v ...interface{}) {
	logger.Info().Msgf(format, v...)
}

// Warn logs warning-level messages
func Warn(v ...interface{}) {
	logger.Warn().Msg(fmt.Sprint(v...))
}

// Warnf logs warning-level formatted messages
func Warnf(format string, v ...interface{}) {
	logger.Warn().Msgf(format, v...)
}

// Error logs error-level messages
func Error(v ...interface{}) {
	logger.Error().Msg(fmt.Sprint(v...))
}

// Errorf logs error-level formatted messages
func Errorf(format string, v ...interface{}) {
	logger.Error().Msgf(format, v...)
}

// With returns a child logger tagged with a pair, for call sites that log
// structured fields rather than formatted lines.
func With(symbol string) zerolog.Logger {
	return logger.With().Str("symbol", symbol).Logger()
}
