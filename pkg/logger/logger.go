// Package logger provides structured logging for the parser framework
package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Logger is the logging contract used across the framework. Field maps are
// merged into the entry in argument order.
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, err error, fields ...map[string]interface{})
	Fatal(msg string, err error, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) Logger
}

// Log levels in ascending severity
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

func levelRank(level string) int {
	switch strings.ToLower(level) {
	case LevelDebug:
		return 0
	case LevelInfo:
		return 1
	case LevelWarn:
		return 2
	case LevelError:
		return 3
	}
	return 1
}

// StdLogger writes line-oriented entries to an io.Writer with level
// filtering. Derived loggers share the writer and its lock.
type StdLogger struct {
	rank  int
	out   io.Writer
	mu    *sync.Mutex
	bound map[string]interface{}
	exit  func(code int)
}

var _ Logger = (*StdLogger)(nil)

// New creates a logger at info level writing to stderr
func New() Logger {
	return NewConsoleLogger(LevelInfo)
}

// NewConsoleLogger creates a logger at the given level writing to stderr
func NewConsoleLogger(level string) Logger {
	return NewWriterLogger(level, os.Stderr)
}

// NewWriterLogger creates a logger at the given level writing to out
func NewWriterLogger(level string, out io.Writer) Logger {
	return &StdLogger{
		rank: levelRank(level),
		out:  out,
		mu:   &sync.Mutex{},
		exit: os.Exit,
	}
}

// NewFileLogger creates a logger appending to the given file
func NewFileLogger(level, path string) (Logger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return &StdLogger{
		rank: levelRank(level),
		out:  f,
		mu:   &sync.Mutex{},
		exit: os.Exit,
	}, nil
}

// NewTestLogger creates a debug-level logger for tests
func NewTestLogger() Logger {
	return NewConsoleLogger(LevelDebug)
}

// Debug logs a debug entry
func (l *StdLogger) Debug(msg string, fields ...map[string]interface{}) {
	l.write(LevelDebug, msg, nil, fields)
}

// Info logs an informational entry
func (l *StdLogger) Info(msg string, fields ...map[string]interface{}) {
	l.write(LevelInfo, msg, nil, fields)
}

// Warn logs a warning entry
func (l *StdLogger) Warn(msg string, fields ...map[string]interface{}) {
	l.write(LevelWarn, msg, nil, fields)
}

// Error logs an error entry
func (l *StdLogger) Error(msg string, err error, fields ...map[string]interface{}) {
	l.write(LevelError, msg, err, fields)
}

// Fatal logs an error entry and exits the process
func (l *StdLogger) Fatal(msg string, err error, fields ...map[string]interface{}) {
	l.write(LevelError, msg, err, fields)
	l.exit(1)
}

// WithFields returns a derived logger whose entries always carry the given fields
func (l *StdLogger) WithFields(fields map[string]interface{}) Logger {
	bound := make(map[string]interface{}, len(l.bound)+len(fields))
	for k, v := range l.bound {
		bound[k] = v
	}
	for k, v := range fields {
		bound[k] = v
	}
	return &StdLogger{
		rank:  l.rank,
		out:   l.out,
		mu:    l.mu,
		bound: bound,
		exit:  l.exit,
	}
}

func (l *StdLogger) write(level, msg string, err error, fields []map[string]interface{}) {
	if levelRank(level) < l.rank {
		return
	}

	merged := make(map[string]interface{}, len(l.bound))
	for k, v := range l.bound {
		merged[k] = v
	}
	if err != nil {
		merged["error"] = err.Error()
	}
	for _, fieldMap := range fields {
		for k, v := range fieldMap {
			merged[k] = v
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s [%s] %s", time.Now().Format("2006-01-02T15:04:05.000Z07:00"), strings.ToUpper(level), msg)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, merged[k])
	}
	sb.WriteByte('\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	io.WriteString(l.out, sb.String())
}

// Entry is one captured log record
type Entry struct {
	Level   string
	Message string
	Err     error
	Fields  map[string]interface{}
}

// Recorder is a logger that captures entries for assertions in tests
type Recorder struct {
	bound   map[string]interface{}
	entries *[]Entry
	lock    *sync.Mutex
}

var _ Logger = (*Recorder)(nil)

// NewRecorder creates an empty recording logger
func NewRecorder() *Recorder {
	entries := make([]Entry, 0, 16)
	return &Recorder{entries: &entries, lock: &sync.Mutex{}}
}

// Entries returns a copy of the captured records
func (r *Recorder) Entries() []Entry {
	r.lock.Lock()
	defer r.lock.Unlock()
	out := make([]Entry, len(*r.entries))
	copy(out, *r.entries)
	return out
}

// HasMessage reports whether any captured record at the given level contains
// the substring
func (r *Recorder) HasMessage(level, substring string) bool {
	for _, e := range r.Entries() {
		if e.Level == level && strings.Contains(e.Message, substring) {
			return true
		}
	}
	return false
}

func (r *Recorder) record(level, msg string, err error, fields []map[string]interface{}) {
	merged := make(map[string]interface{}, len(r.bound))
	for k, v := range r.bound {
		merged[k] = v
	}
	for _, fieldMap := range fields {
		for k, v := range fieldMap {
			merged[k] = v
		}
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	*r.entries = append(*r.entries, Entry{Level: level, Message: msg, Err: err, Fields: merged})
}

// Debug captures a debug entry
func (r *Recorder) Debug(msg string, fields ...map[string]interface{}) {
	r.record(LevelDebug, msg, nil, fields)
}

// Info captures an info entry
func (r *Recorder) Info(msg string, fields ...map[string]interface{}) {
	r.record(LevelInfo, msg, nil, fields)
}

// Warn captures a warning entry
func (r *Recorder) Warn(msg string, fields ...map[string]interface{}) {
	r.record(LevelWarn, msg, nil, fields)
}

// Error captures an error entry
func (r *Recorder) Error(msg string, err error, fields ...map[string]interface{}) {
	r.record(LevelError, msg, err, fields)
}

// Fatal captures an error entry without exiting, keeping tests alive
func (r *Recorder) Fatal(msg string, err error, fields ...map[string]interface{}) {
	r.record(LevelError, msg, err, fields)
}

// WithFields returns a derived recorder sharing the same entry store
func (r *Recorder) WithFields(fields map[string]interface{}) Logger {
	bound := make(map[string]interface{}, len(r.bound)+len(fields))
	for k, v := range r.bound {
		bound[k] = v
	}
	for k, v := range fields {
		bound[k] = v
	}
	return &Recorder{bound: bound, entries: r.entries, lock: r.lock}
}
