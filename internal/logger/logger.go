// Package logger provides the default smpp.Logger implementation: leveled
// key/value lines for the session engine and the command-line harness. A
// logger is scoped to one session with ForSession so every line it emits
// carries the session_id; smpp.NewClient applies the same scoping itself
// through WithFields.
package logger

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/oarkflow/smpp-esme/pkg/smpp"
)

// Level orders log severities from most to least verbose.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "INFO"
	}
}

// ParseLevel maps a config-file level string to a Level, defaulting to
// info for anything unrecognized.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// DefaultLogger writes one line per event: level, message, the scope
// fields accumulated through WithFields (sorted, so a session's lines are
// grep-stable), then the call's own key/value pairs in argument order.
type DefaultLogger struct {
	level  Level
	fields map[string]interface{}
	out    *log.Logger
}

// NewDefaultLogger returns a logger at the given level writing to stderr.
func NewDefaultLogger(level string) smpp.Logger {
	return New(ParseLevel(level), log.New(os.Stderr, "", log.LstdFlags))
}

// New returns a logger writing through out, for callers that redirect or
// capture output.
func New(level Level, out *log.Logger) smpp.Logger {
	return &DefaultLogger{level: level, out: out}
}

// ForSession scopes l to one SMPP session so that every subsequent line
// carries the session_id field.
func ForSession(l smpp.Logger, sessionID string) smpp.Logger {
	if l == nil {
		return nil
	}
	return l.WithFields(map[string]interface{}{"session_id": sessionID})
}

func (l *DefaultLogger) Debug(msg string, kv ...interface{}) { l.emit(LevelDebug, msg, kv) }
func (l *DefaultLogger) Info(msg string, kv ...interface{})  { l.emit(LevelInfo, msg, kv) }
func (l *DefaultLogger) Warn(msg string, kv ...interface{})  { l.emit(LevelWarn, msg, kv) }
func (l *DefaultLogger) Error(msg string, kv ...interface{}) { l.emit(LevelError, msg, kv) }

func (l *DefaultLogger) Fatal(msg string, kv ...interface{}) {
	l.emit(LevelFatal, msg, kv)
	os.Exit(1)
}

// WithFields returns a logger whose lines additionally carry fields. The
// receiver is not modified.
func (l *DefaultLogger) WithFields(fields map[string]interface{}) smpp.Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &DefaultLogger{level: l.level, fields: merged, out: l.out}
}

func (l *DefaultLogger) emit(level Level, msg string, kv []interface{}) {
	if level < l.level {
		return
	}

	parts := make([]string, 0, 2+len(l.fields)+len(kv)/2)
	parts = append(parts, "["+level.String()+"]", msg)

	if len(l.fields) > 0 {
		keys := make([]string, 0, len(l.fields))
		for k := range l.fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, l.fields[k]))
		}
	}

	// kv is key/value pairs; a dangling final key is dropped
	for i := 0; i+1 < len(kv); i += 2 {
		parts = append(parts, fmt.Sprintf("%v=%v", kv[i], kv[i+1]))
	}

	l.out.Println(strings.Join(parts, " "))
}
