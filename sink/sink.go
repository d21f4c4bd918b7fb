package sink

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Failure categories reported by the pool and the executor.
const (
	CategoryConnectionFail = "CONNECTION FAIL"
	CategoryException      = "EXCEPTION"
)

// DefaultTag is the system tag printed in front of every line.
const DefaultTag = "MYSQL POOL"

// Sink receives failure reports. Implementations must not panic and have no
// way to return an error: a sink that cannot deliver a report drops it.
type Sink interface {
	Report(category, message, extras string, persist bool)
}

// SinkFunc adapts an ordinary function to the Sink interface.
type SinkFunc func(category, message, extras string, persist bool)

func (f SinkFunc) Report(category, message, extras string, persist bool) {
	f(category, message, extras, persist)
}

// FormatLine renders a report the way the default sink prints it.
func FormatLine(tag, category, message, extras string) string {
	return fmt.Sprintf("[%s] [%s]: %s %s", tag, category, message, extras)
}

// Default prints every report to Out and, when persist is set and LogFile is
// not empty, appends it to LogFile. The file is opened for the duration of a
// single write. A failed file write is dropped.
type Default struct {
	Tag     string
	Out     io.Writer
	LogFile string

	mu sync.Mutex
}

// NewDefault creates a Default sink writing to standard output.
// logFile may be empty to disable persistence.
func NewDefault(logFile string) *Default {
	return &Default{
		Tag:     DefaultTag,
		Out:     os.Stdout,
		LogFile: logFile,
	}
}

func (d *Default) Report(category, message, extras string, persist bool) {
	tag := d.Tag
	if tag == "" {
		tag = DefaultTag
	}
	line := FormatLine(tag, category, message, extras)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.Out != nil {
		_, _ = fmt.Fprintln(d.Out, line)
	}
	if persist && d.LogFile != "" {
		_ = appendLine(d.LogFile, line)
	}
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.WriteString(f, line+"\n")
	return err
}

// Safe shields callers from a sink that panics.
func Safe(s Sink) Sink {
	if s == nil {
		return Discard
	}
	if _, ok := s.(safeSink); ok {
		return s
	}
	return safeSink{s}
}

type safeSink struct {
	inner Sink
}

func (s safeSink) Report(category, message, extras string, persist bool) {
	defer func() { _ = recover() }()
	s.inner.Report(category, message, extras, persist)
}

// Multi delivers every report to each of the given sinks in order.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, Safe(s))
		}
	}
	return out
}

type multi []Sink

func (m multi) Report(category, message, extras string, persist bool) {
	for _, s := range m {
		s.Report(category, message, extras, persist)
	}
}

// Discard drops every report.
var Discard Sink = SinkFunc(func(string, string, string, bool) {})
