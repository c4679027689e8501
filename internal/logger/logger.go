// Package logger provides a simple logging interface for vpsinit components.
// It lets packages log debug, info, warn, and error messages without being
// coupled to a specific logging implementation. The default implementation
// writes leveled, human-readable lines to stderr via charmbracelet/log.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

// DebugEnv enables debug output when set to any non-empty value.
const DebugEnv = "VPSINIT_DEBUG"

// Logger defines the interface for logging operations.
// All methods accept a format string and arguments, similar to fmt.Printf.
// Callers must never pass passwords or passphrases.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// charmLogger adapts a *log.Logger to the Logger interface.
type charmLogger struct {
	l *log.Logger
}

// NewEnvLogger creates a stderr logger that respects the VPSINIT_DEBUG
// environment variable. The prefix is shown on every line (e.g. "ssh").
func NewEnvLogger(prefix string) Logger {
	return NewWriterLogger(os.Stderr, prefix, os.Getenv(DebugEnv) != "")
}

// NewWriterLogger creates a logger writing to w. Debug lines are only
// emitted when debug is true.
func NewWriterLogger(w io.Writer, prefix string, debug bool) Logger {
	l := log.NewWithOptions(w, log.Options{
		Prefix: prefix,
	})
	if debug {
		l.SetLevel(log.DebugLevel)
	}
	return &charmLogger{l: l}
}

func (c *charmLogger) Debug(format string, args ...interface{}) {
	c.l.Debugf(format, args...)
}

func (c *charmLogger) Info(format string, args ...interface{}) {
	c.l.Infof(format, args...)
}

func (c *charmLogger) Warn(format string, args ...interface{}) {
	c.l.Warnf(format, args...)
}

func (c *charmLogger) Error(format string, args ...interface{}) {
	c.l.Errorf(format, args...)
}

// noopLogger implements Logger but discards all messages.
type noopLogger struct{}

// Noop returns a logger that discards all messages.
func Noop() Logger {
	return &noopLogger{}
}

func (l *noopLogger) Debug(format string, args ...interface{}) {}
func (l *noopLogger) Info(format string, args ...interface{})  {}
func (l *noopLogger) Warn(format string, args ...interface{})  {}
func (l *noopLogger) Error(format string, args ...interface{}) {}

// LogMessage represents a captured log message.
type LogMessage struct {
	Level   string
	Message string
}

// BufferLogger captures log messages for testing.
type BufferLogger struct {
	mu       sync.Mutex
	Messages []LogMessage
}

// NewBufferLogger creates a logger that captures messages for inspection.
func NewBufferLogger() *BufferLogger {
	return &BufferLogger{
		Messages: make([]LogMessage, 0),
	}
}

func (l *BufferLogger) add(level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages = append(l.Messages, LogMessage{Level: level, Message: fmt.Sprintf(format, args...)})
}

func (l *BufferLogger) Debug(format string, args ...interface{}) { l.add("debug", format, args...) }
func (l *BufferLogger) Info(format string, args ...interface{})  { l.add("info", format, args...) }
func (l *BufferLogger) Warn(format string, args ...interface{})  { l.add("warn", format, args...) }
func (l *BufferLogger) Error(format string, args ...interface{}) { l.add("error", format, args...) }

// HasLevel returns true if any message was logged at the given level.
func (l *BufferLogger) HasLevel(level string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.Messages {
		if m.Level == level {
			return true
		}
	}
	return false
}

// Joined returns every captured message on its own line.
func (l *BufferLogger) Joined() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out string
	for _, m := range l.Messages {
		out += m.Message + "\n"
	}
	return out
}

// Clear removes all captured messages.
func (l *BufferLogger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages = l.Messages[:0]
}

// defaultLogger is the package-level default logger.
var defaultLogger = NewEnvLogger("")

// Default returns the default logger for the package.
func Default() Logger {
	return defaultLogger
}

// SetDefault sets the default logger for the package.
func SetDefault(l Logger) {
	defaultLogger = l
}
