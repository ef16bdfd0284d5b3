// Package logger writes component-tagged diagnostics with zerolog. Result
// documents own stdout, so loggers write to stderr or a caller's writer.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger tags every event with the pipeline component that emitted it.
type Logger struct {
	zl zerolog.Logger
}

// New logs JSON lines to w at level.
func New(w io.Writer, level zerolog.Level) *Logger {
	return &Logger{zl: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

// ForCLI is the command line logger: debug level when verbose, info
// otherwise, console format when w is a terminal.
func ForCLI(w io.Writer, verbose bool) *Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	if isTerminal(w) {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return New(w, level)
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

func (l *Logger) Debug(component, msg string, fields map[string]interface{}) {
	tag(l.zl.Debug(), component, fields).Msg(msg)
}

func (l *Logger) Info(component, msg string, fields map[string]interface{}) {
	tag(l.zl.Info(), component, fields).Msg(msg)
}

func (l *Logger) Warning(component, msg string, fields map[string]interface{}) {
	tag(l.zl.Warn(), component, fields).Msg(msg)
}

func (l *Logger) Error(component string, err error, fields map[string]interface{}) {
	tag(l.zl.Error().Err(err), component, fields).Msg("operation failed")
}

// tag is nil-safe: zerolog returns a nil event for disabled levels.
func tag(e *zerolog.Event, component string, fields map[string]interface{}) *zerolog.Event {
	return e.Str("component", component).Fields(fields)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
