// Package logger provides component-scoped structured logging for prism.
//
// Call sites tag every line with a component name ("bridge", "relay",
// "unfurl", ...) so one bot process stays greppable. The backend is zerolog
// with pretty console output on stderr.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level mirrors zerolog's severity levels.
type Level int8

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var (
	mu   sync.RWMutex
	root = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger().Level(zerolog.InfoLevel)
)

// ParseLevel maps a config string to a Level. Unknown strings mean INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// SetLevel sets the minimum severity that gets emitted.
func SetLevel(level Level) {
	mu.Lock()
	defer mu.Unlock()
	root = root.Level(toZerolog(level))
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	root = zerolog.New(w).With().Timestamp().Logger().Level(root.GetLevel())
}

func toZerolog(level Level) zerolog.Level {
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

func emit(ev *zerolog.Event, component, msg string, fields map[string]any) {
	ev = ev.Str("component", component)
	if len(fields) > 0 {
		ev = ev.Fields(fields)
	}
	ev.Msg(msg)
}

func logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// DebugC logs a debug message for a component.
func DebugC(component, msg string) { DebugCF(component, msg, nil) }

// DebugCF logs a debug message with structured fields.
func DebugCF(component, msg string, fields map[string]any) {
	l := logger()
	emit(l.Debug(), component, msg, fields)
}

// InfoC logs an info message for a component.
func InfoC(component, msg string) { InfoCF(component, msg, nil) }

// InfoCF logs an info message with structured fields.
func InfoCF(component, msg string, fields map[string]any) {
	l := logger()
	emit(l.Info(), component, msg, fields)
}

// WarnC logs a warning for a component.
func WarnC(component, msg string) { WarnCF(component, msg, nil) }

// WarnCF logs a warning with structured fields.
func WarnCF(component, msg string, fields map[string]any) {
	l := logger()
	emit(l.Warn(), component, msg, fields)
}

// ErrorC logs an error message for a component.
func ErrorC(component, msg string) { ErrorCF(component, msg, nil) }

// ErrorCF logs an error message with structured fields.
func ErrorCF(component, msg string, fields map[string]any) {
	l := logger()
	emit(l.Error(), component, msg, fields)
}
