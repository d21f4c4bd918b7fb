package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
)

// Prefix is printed in front of every text line.
const Prefix = "[MYSQL POOL]"

// LogLevel defines the severity of the log
type LogLevel int

const (
	LogLevelSilent LogLevel = iota
	LogLevelError
	LogLevelWarn
	LogLevelInfo
)

// ParseLevel maps a config value to a LogLevel. Unknown values yield LogLevelWarn.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "silent", "off", "none":
		return LogLevelSilent
	case "error":
		return LogLevelError
	case "info", "debug":
		return LogLevelInfo
	default:
		return LogLevelWarn
	}
}

// LogFormat defines the output format of the log
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// Logger is the interface for logging statements and pool events
type Logger interface {
	SetLevel(level LogLevel)
	SetFormat(format LogFormat)
	SetOutput(w io.Writer)
	WithFields(fields map[string]any) Logger
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
	SQL(sql string, duration time.Duration, err error)
}

// output is shared by a logger and every logger derived from it with WithFields.
type output struct {
	mu     sync.Mutex
	writer io.Writer
}

type baseLogger struct {
	level  LogLevel
	format LogFormat
	out    *output
	fields map[string]any
}

func (l *baseLogger) SetLevel(level LogLevel) {
	l.level = level
}

func (l *baseLogger) SetFormat(format LogFormat) {
	l.format = format
}

func (l *baseLogger) SetOutput(w io.Writer) {
	l.out.mu.Lock()
	l.out.writer = w
	l.out.mu.Unlock()
}

func (l *baseLogger) clone() *baseLogger {
	newFields := make(map[string]any, len(l.fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	return &baseLogger{
		level:  l.level,
		format: l.format,
		out:    l.out,
		fields: newFields,
	}
}

type stdLogger struct {
	baseLogger
}

// NewStdLogger creates a text logger on standard output at LogLevelWarn.
func NewStdLogger() Logger {
	return &stdLogger{
		baseLogger: baseLogger{
			level:  LogLevelWarn,
			format: LogFormatText,
			out:    &output{writer: os.Stdout},
			fields: make(map[string]any),
		},
	}
}

// Discard returns a logger that writes nothing.
func Discard() Logger {
	l := NewStdLogger()
	l.SetLevel(LogLevelSilent)
	l.SetOutput(io.Discard)
	return l
}

func (l *stdLogger) WithFields(fields map[string]any) Logger {
	newLogger := &stdLogger{
		baseLogger: *l.clone(),
	}
	for k, v := range fields {
		newLogger.fields[k] = v
	}
	return newLogger
}

func (l *stdLogger) Info(format string, args ...any) {
	if l.level >= LogLevelInfo {
		l.log("INFO", fmt.Sprintf(format, args...), nil)
	}
}

func (l *stdLogger) Warn(format string, args ...any) {
	if l.level >= LogLevelWarn {
		l.log("WARN", fmt.Sprintf(format, args...), nil)
	}
}

func (l *stdLogger) Error(format string, args ...any) {
	if l.level >= LogLevelError {
		l.log("ERROR", fmt.Sprintf(format, args...), nil)
	}
}

// SQL logs a finished statement. Failed statements are logged at error level,
// successful ones at info level.
func (l *stdLogger) SQL(sql string, duration time.Duration, err error) {
	if err != nil {
		if l.level < LogLevelError {
			return
		}
	} else if l.level < LogLevelInfo {
		return
	}

	if l.format == LogFormatJSON {
		extra := map[string]any{"sql": sql, "duration": duration.String()}
		if err != nil {
			extra["error"] = err.Error()
		}
		l.log("SQL", "", extra)
		return
	}

	msg := fmt.Sprintf("[%v] %s", duration, sql)
	if err != nil {
		msg += " | error: " + err.Error()
	}
	l.log("SQL", getSQLColor(sql)+msg+ansiReset, nil)
}

func (l *stdLogger) log(level, msg string, extra map[string]any) {
	now := time.Now()

	l.out.mu.Lock()
	defer l.out.mu.Unlock()

	if l.format == LogFormatJSON {
		data := make(map[string]any, len(l.fields)+len(extra)+3)
		for k, v := range l.fields {
			data[k] = v
		}
		for k, v := range extra {
			data[k] = v
		}
		data["time"] = now.Format(time.RFC3339)
		data["level"] = level
		if msg != "" {
			data["msg"] = msg
		}
		_ = json.NewEncoder(l.out.writer).Encode(data)
		return
	}

	fieldStr := ""
	if len(l.fields) > 0 {
		fieldStr = fmt.Sprintf(" fields: %v", l.fields)
	}
	fmt.Fprintf(l.out.writer, "%s %s %s: %s%s\n", Prefix, now.Format("2006-01-02 15:04:05"), level, msg, fieldStr)
}

func getSQLColor(sqlStr string) string {
	s := strings.TrimSpace(strings.ToUpper(sqlStr))
	switch {
	case strings.HasPrefix(s, "SELECT"), strings.HasPrefix(s, "SHOW"):
		return ansiYellow
	case strings.HasPrefix(s, "INSERT"), strings.HasPrefix(s, "UPDATE"):
		return ansiGreen
	case strings.HasPrefix(s, "DELETE"), strings.HasPrefix(s, "DROP"):
		return ansiRed
	default:
		return ansiCyan
	}
}
