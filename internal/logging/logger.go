// Package logging provides leveled, structured logging for the vanity grinder.
// Output is either human-readable text or JSON, selected at startup.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents a log severity level
type Level int

const (
	// LevelDebug logs everything including per-batch worker detail
	LevelDebug Level = iota
	// LevelInfo logs lifecycle events and job transitions
	LevelInfo
	// LevelWarn logs recoverable problems (retries, shed telemetry)
	LevelWarn
	// LevelError logs failures that need attention
	LevelError
)

// String returns the level name
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Format represents the log output format
type Format string

const (
	// FormatText emits human-readable lines
	FormatText Format = "text"
	// FormatJSON emits one JSON object per line
	FormatJSON Format = "json"
)

// ParseLevel converts a level name to a Level, defaulting to info
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "info", "":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// ParseFormat converts a format name to a Format, defaulting to text
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), string(FormatJSON)) {
		return FormatJSON
	}
	return FormatText
}

// Logger is a leveled structured logger. Derived loggers share the output
// writer and its mutex; fields are copied on write.
type Logger struct {
	level  Level
	format Format
	mu     *sync.Mutex
	out    io.Writer
	fields map[string]interface{}
}

// New creates a logger writing to out
func New(level Level, format Format, out io.Writer) *Logger {
	if out == nil {
		out = os.Stdout
	}
	return &Logger{
		level:  level,
		format: format,
		mu:     &sync.Mutex{},
		out:    out,
		fields: map[string]interface{}{},
	}
}

// WithField returns a derived logger with an additional field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a derived logger with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{
		level:  l.level,
		format: l.format,
		mu:     l.mu,
		out:    l.out,
		fields: merged,
	}
}

// WithError returns a derived logger carrying the error as a field
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

// Component returns a derived logger tagged with a component name
func (l *Logger) Component(name string) *Logger {
	return l.WithField("component", name)
}

// Debug logs a message at debug level
func (l *Logger) Debug(msg string) { l.log(LevelDebug, msg) }

// Debugf logs a formatted message at debug level
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(LevelDebug, fmt.Sprintf(format, args...))
}

// Info logs a message at info level
func (l *Logger) Info(msg string) { l.log(LevelInfo, msg) }

// Infof logs a formatted message at info level
func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(LevelInfo, fmt.Sprintf(format, args...))
}

// Warn logs a message at warn level
func (l *Logger) Warn(msg string) { l.log(LevelWarn, msg) }

// Warnf logs a formatted message at warn level
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(LevelWarn, fmt.Sprintf(format, args...))
}

// Error logs a message at error level
func (l *Logger) Error(msg string) { l.log(LevelError, msg) }

// Errorf logs a formatted message at error level
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(LevelError, fmt.Sprintf(format, args...))
}

func (l *Logger) log(level Level, msg string) {
	if level < l.level {
		return
	}

	now := time.Now().UTC()
	var line string
	switch l.format {
	case FormatJSON:
		entry := make(map[string]interface{}, len(l.fields)+3)
		for k, v := range l.fields {
			entry[k] = v
		}
		entry["timestamp"] = now.Format(time.RFC3339Nano)
		entry["level"] = level.String()
		entry["message"] = msg
		b, err := json.Marshal(entry)
		if err != nil {
			// fall back to a minimal line rather than dropping the message
			line = fmt.Sprintf(`{"timestamp":%q,"level":%q,"message":%q}`,
				now.Format(time.RFC3339Nano), level.String(), msg)
		} else {
			line = string(b)
		}
	default:
		var sb strings.Builder
		sb.WriteString(now.Format("2006-01-02T15:04:05.000Z"))
		sb.WriteString(" ")
		sb.WriteString(strings.ToUpper(level.String()))
		if c, ok := l.fields["component"]; ok {
			fmt.Fprintf(&sb, " [%v]", c)
		}
		sb.WriteString(" ")
		sb.WriteString(msg)
		keys := make([]string, 0, len(l.fields))
		for k := range l.fields {
			if k == "component" {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, " %s=%v", k, l.fields[k])
		}
		line = sb.String()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, line)
}

var (
	globalMu sync.RWMutex
	global   = New(LevelInfo, FormatText, os.Stdout)
)

// Init replaces the global logger. Call once at startup before any
// goroutines use the package-level helpers.
func Init(level string, format string) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = New(ParseLevel(level), ParseFormat(format), os.Stdout)
}

// L returns the global logger
func L() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

// Debugf logs a formatted debug message on the global logger
func Debugf(format string, args ...interface{}) { L().Debugf(format, args...) }

// Infof logs a formatted info message on the global logger
func Infof(format string, args ...interface{}) { L().Infof(format, args...) }

// Warnf logs a formatted warn message on the global logger
func Warnf(format string, args ...interface{}) { L().Warnf(format, args...) }

// Errorf logs a formatted error message on the global logger
func Errorf(format string, args ...interface{}) { L().Errorf(format, args...) }
