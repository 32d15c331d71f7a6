// Package logging provides structured logging for both CLI and TUI modes.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog with mode-specific behavior.
type Logger struct {
	zlog   zerolog.Logger
	mode   string // "cli" or "tui"
	output io.Writer
}

// NewLogger creates a new logger for the specified mode.
//
// CLI mode writes human-readable console output to stdout. TUI mode must not
// write to the terminal (it would corrupt the alternate screen), so output is
// discarded unless STUDIOUS_DEBUG_LOG names a file to append to.
func NewLogger(mode string) *Logger {
	var output io.Writer

	switch mode {
	case "tui":
		output = io.Discard
		if path := os.Getenv("STUDIOUS_DEBUG_LOG"); path != "" {
			if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
				output = f
			}
		}
	default:
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
	}

	logger := zerolog.New(output).
		With().
		Timestamp().
		Logger()

	return &Logger{
		zlog:   logger,
		mode:   mode,
		output: output,
	}
}

// NewDefaultLogger creates a default CLI logger.
func NewDefaultLogger() *Logger {
	return NewLogger("cli")
}

// SetGlobalLevel sets the minimum level for all loggers.
// Pass -1 for debug, 0 for info (zerolog level values).
func SetGlobalLevel(level int) {
	zerolog.SetGlobalLevel(zerolog.Level(level))
}

// Info returns an info level event.
func (l *Logger) Info() *zerolog.Event {
	return l.zlog.Info()
}

// Error returns an error level event.
func (l *Logger) Error() *zerolog.Event {
	return l.zlog.Error()
}

// Debug returns a debug level event.
func (l *Logger) Debug() *zerolog.Event {
	return l.zlog.Debug()
}

// Warn returns a warn level event.
func (l *Logger) Warn() *zerolog.Event {
	return l.zlog.Warn()
}

// Fatal returns a fatal level event.
func (l *Logger) Fatal() *zerolog.Event {
	return l.zlog.Fatal()
}

// With creates a child logger with additional context.
func (l *Logger) With() zerolog.Context {
	return l.zlog.With()
}
