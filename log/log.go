// Package log is a small structured logger, rebuilt in the shape of the
// github.com/saferwall/pe/log helper the teacher package threads through
// pe.File and cmd/dump.go (that subpackage was not present in the retrieved
// copy of the teacher repo, so its shape is reconstructed here from its call
// sites: NewStdLogger, NewHelper, NewFilter and FilterLevel).
package log

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Level is a logging severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
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
	default:
		return "UNKNOWN"
	}
}

// Logger is the minimal sink a Helper writes through.
type Logger interface {
	Log(level Level, keyvals ...interface{}) error
}

// stdLogger writes keyvals as a single line to an io.Writer.
type stdLogger struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStdLogger returns a Logger that writes to w.
func NewStdLogger(w io.Writer) Logger {
	return &stdLogger{w: w}
}

func (s *stdLogger) Log(level Level, keyvals ...interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := time.Now().Format("2006-01-02T15:04:05.000")
	fmt.Fprintf(s.w, "%s level=%s", ts, level)
	for i := 0; i+1 < len(keyvals); i += 2 {
		fmt.Fprintf(s.w, " %v=%v", keyvals[i], keyvals[i+1])
	}
	fmt.Fprintln(s.w)
	return nil
}

// filter drops records below a minimum level.
type filter struct {
	next Logger
	min  Level
}

// Option configures a filter.
type Option func(*filter)

// FilterLevel sets the minimum level a filtered Logger passes through.
func FilterLevel(level Level) Option {
	return func(f *filter) { f.min = level }
}

// NewFilter wraps next with level filtering.
func NewFilter(next Logger, opts ...Option) Logger {
	f := &filter{next: next, min: LevelDebug}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *filter) Log(level Level, keyvals ...interface{}) error {
	if level < f.min {
		return nil
	}
	return f.next.Log(level, keyvals...)
}

// Helper is a convenience wrapper offering per-level methods, matching the
// *log.Helper type the teacher's pe.File and cmd/dump.go hold a reference to.
type Helper struct {
	logger Logger
}

// NewHelper wraps logger.
func NewHelper(logger Logger) *Helper {
	return &Helper{logger: logger}
}

func (h *Helper) Debugf(format string, args ...interface{}) {
	h.logger.Log(LevelDebug, "msg", fmt.Sprintf(format, args...))
}

func (h *Helper) Infof(format string, args ...interface{}) {
	h.logger.Log(LevelInfo, "msg", fmt.Sprintf(format, args...))
}

func (h *Helper) Warnf(format string, args ...interface{}) {
	h.logger.Log(LevelWarn, "msg", fmt.Sprintf(format, args...))
}

func (h *Helper) Errorf(format string, args ...interface{}) {
	h.logger.Log(LevelError, "msg", fmt.Sprintf(format, args...))
}
