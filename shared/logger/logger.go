// Package logger provides a small structured logging wrapper around
// logrus, shared by the controller and the blade agent.
package logger

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Ctx is a set of structured fields attached to a log line.
type Ctx map[string]any

// Logger is a thread-safe structured logger. The blade agent and the
// controller's fan-out both log from multiple goroutines concurrently, so
// every call locks around the underlying logrus entry.
type Logger struct {
	mu  sync.Mutex
	log *logrus.Logger
}

var std = New(os.Stderr)

// New builds a Logger that writes text-formatted, level-prefixed lines
// (ERROR:/WARNING:/INFO:/DEBUG:) to w, matching the stderr convention the
// blade agent's external contract (spec §6) requires.
func New(w *os.File) *Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&textFormatter{})
	l.SetLevel(logrus.DebugLevel)
	return &Logger{log: l}
}

// SetOutput redirects the default logger's output to w, replacing its
// previous destination.
func SetOutput(w *os.File) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.log.SetOutput(w)
}

func (l *Logger) entry(fields Ctx) *logrus.Entry {
	if len(fields) == 0 {
		return logrus.NewEntry(l.log)
	}
	return l.log.WithFields(logrus.Fields(fields))
}

// Debug logs a debug-level message.
func (l *Logger) Debug(msg string, fields ...Ctx) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entry(merge(fields)).Debug(msg)
}

// Info logs an info-level message.
func (l *Logger) Info(msg string, fields ...Ctx) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entry(merge(fields)).Info(msg)
}

// Warn logs a warning-level message.
func (l *Logger) Warn(msg string, fields ...Ctx) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entry(merge(fields)).Warn(msg)
}

// Error logs an error-level message.
func (l *Logger) Error(msg string, fields ...Ctx) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entry(merge(fields)).Error(msg)
}

// Fatal logs an error-level message and exits the process with status 1,
// mirroring the original agent's ContextualError exit behavior.
func (l *Logger) Fatal(msg string, fields ...Ctx) {
	l.mu.Lock()
	l.entry(merge(fields)).Error(msg)
	l.mu.Unlock()
	os.Exit(1)
}

func merge(fields []Ctx) Ctx {
	if len(fields) == 0 {
		return nil
	}
	out := Ctx{}
	for _, f := range fields {
		for k, v := range f {
			out[k] = v
		}
	}
	return out
}

// Debug logs to the package-level default logger.
func Debug(msg string, fields ...Ctx) { std.Debug(msg, fields...) }

// Info logs to the package-level default logger.
func Info(msg string, fields ...Ctx) { std.Info(msg, fields...) }

// Warn logs to the package-level default logger.
func Warn(msg string, fields ...Ctx) { std.Warn(msg, fields...) }

// Error logs to the package-level default logger.
func Error(msg string, fields ...Ctx) { std.Error(msg, fields...) }

// Fatal logs to the package-level default logger then exits(1).
func Fatal(msg string, fields ...Ctx) { std.Fatal(msg, fields...) }
