package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"
)

// Level represents the severity of a log message
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
	LevelFatal Level = "FATAL"
)

var levelRank = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
	LevelFatal: 4,
}

// ParseLevel maps a config string to a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch Level(s) {
	case LevelDebug, LevelInfo, LevelWarn, LevelError, LevelFatal:
		return Level(s)
	default:
		return LevelInfo
	}
}

// Entry is a single log record
type Entry struct {
	Timestamp time.Time
	Level     Level
	Component string
	Message   string
	Err       error
	Fields    map[string]interface{}
}

// Formatter renders an entry for output
type Formatter interface {
	Format(entry *Entry) string
}

// TextFormatter renders entries as single-line human-readable text
type TextFormatter struct{}

func (f *TextFormatter) Format(entry *Entry) string {
	msg := fmt.Sprintf("[%s] %s [%s] %s",
		entry.Timestamp.Format("2006-01-02 15:04:05.000"),
		entry.Level, entry.Component, entry.Message)

	if entry.Err != nil {
		msg += fmt.Sprintf(" | error=%v", entry.Err)
	}

	if len(entry.Fields) > 0 {
		// Stable key order so repeated runs produce comparable logs
		keys := make([]string, 0, len(entry.Fields))
		for k := range entry.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		msg += " |"
		for _, k := range keys {
			msg += fmt.Sprintf(" %s=%v", k, entry.Fields[k])
		}
	}

	return msg + "\n"
}

// Logger provides leveled, component-scoped logging
type Logger struct {
	component string
	minLevel  Level
	outputs   []io.Writer
	formatter Formatter
	mu        sync.Mutex
}

// NewLogger creates a logger for the named component, writing to stdout
func NewLogger(component string) *Logger {
	return &Logger{
		component: component,
		minLevel:  LevelInfo,
		outputs:   []io.Writer{os.Stdout},
		formatter: &TextFormatter{},
	}
}

// SetMinLevel sets the minimum level that will be emitted
func (l *Logger) SetMinLevel(level Level) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = level
	return l
}

// AddOutput adds an additional output writer
func (l *Logger) AddOutput(w io.Writer) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outputs = append(l.outputs, w)
	return l
}

// Named returns a logger for a sub-component sharing outputs and level
func (l *Logger) Named(component string) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &Logger{
		component: component,
		minLevel:  l.minLevel,
		outputs:   l.outputs,
		formatter: l.formatter,
	}
}

func (l *Logger) log(level Level, message string, err error, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if levelRank[level] < levelRank[l.minLevel] {
		return
	}

	formatted := l.formatter.Format(&Entry{
		Timestamp: time.Now(),
		Level:     level,
		Component: l.component,
		Message:   message,
		Err:       err,
		Fields:    fields,
	})

	for _, output := range l.outputs {
		output.Write([]byte(formatted))
	}
}

// Debug logs a debug message
func (l *Logger) Debug(message string) {
	l.log(LevelDebug, message, nil, nil)
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(LevelDebug, fmt.Sprintf(format, args...), nil, nil)
}

// Info logs an info message
func (l *Logger) Info(message string) {
	l.log(LevelInfo, message, nil, nil)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(LevelInfo, fmt.Sprintf(format, args...), nil, nil)
}

// InfoWithFields logs an info message with structured fields
func (l *Logger) InfoWithFields(message string, fields map[string]interface{}) {
	l.log(LevelInfo, message, nil, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(message string) {
	l.log(LevelWarn, message, nil, nil)
}

// WarnWithFields logs a warning message with structured fields
func (l *Logger) WarnWithFields(message string, fields map[string]interface{}) {
	l.log(LevelWarn, message, nil, fields)
}

// Error logs an error message
func (l *Logger) Error(message string, err error) {
	l.log(LevelError, message, err, nil)
}

// ErrorWithFields logs an error message with structured fields
func (l *Logger) ErrorWithFields(message string, err error, fields map[string]interface{}) {
	l.log(LevelError, message, err, fields)
}

// Fatal logs a fatal error message. The caller decides whether to exit.
func (l *Logger) Fatal(message string, err error) {
	l.log(LevelFatal, message, err, nil)
}
