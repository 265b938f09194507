// Package logging adapts logrus to the key/value Logger used by the auth
// packages.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus entry. It satisfies auth.Logger and notify.Logger.
type Logger struct {
	entry *logrus.Entry
}

// New creates a logger writing to out (stderr when nil) with the given level
// and format ("json" or "text").
func New(out io.Writer, level, format string) *Logger {
	if out == nil {
		out = os.Stderr
	}

	l := logrus.New()
	l.SetOutput(out)

	if strings.EqualFold(format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	return FromLogrus(l)
}

// FromLogrus wraps an existing logrus logger
func FromLogrus(l *logrus.Logger) *Logger {
	return &Logger{entry: logrus.NewEntry(l)}
}

// With returns a logger that always carries the given key/value pairs
func (l *Logger) With(args ...any) *Logger {
	return &Logger{entry: l.entry.WithFields(fields(args))}
}

func (l *Logger) Debug(msg string, args ...any) {
	l.entry.WithFields(fields(args)).Debug(msg)
}

func (l *Logger) Info(msg string, args ...any) {
	l.entry.WithFields(fields(args)).Info(msg)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.entry.WithFields(fields(args)).Warn(msg)
}

func (l *Logger) Error(msg string, args ...any) {
	l.entry.WithFields(fields(args)).Error(msg)
}

func fields(args []any) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i < len(args); i += 2 {
		key := fmt.Sprint(args[i])
		if i+1 >= len(args) {
			f[key] = "MISSING"
			break
		}
		val := args[i+1]
		if err, ok := val.(error); ok {
			val = err.Error()
		}
		f[key] = val
	}
	return f
}
