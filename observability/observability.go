package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

type Field interface {
	Key() string
	Value() interface{}
}

type stringField struct{ key, val string }

func (f stringField) Key() string        { return f.key }
func (f stringField) Value() interface{} { return f.val }

type intField struct {
	key string
	val int
}

func (f intField) Key() string        { return f.key }
func (f intField) Value() interface{} { return f.val }

type errorField struct {
	key string
	err error
}

func (f errorField) Key() string        { return f.key }
func (f errorField) Value() interface{} { return f.err }

func String(key, value string) Field    { return stringField{key, value} }
func Int(key string, value int) Field   { return intField{key, value} }
func Error(key string, err error) Field { return errorField{key, err} }

type NopLogger struct{}

func (NopLogger) Debug(string, ...Field) {}
func (NopLogger) Info(string, ...Field)  {}
func (NopLogger) Warn(string, ...Field)  {}
func (NopLogger) Error(string, ...Field) {}
func (NopLogger) With(...Field) Logger   { return NopLogger{} }

// Level filters what a WriterLogger emits.
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
	}
	return "?"
}

// WriterLogger writes one line per event. Safe for concurrent use.
type WriterLogger struct {
	mu    *sync.Mutex
	w     io.Writer
	min   Level
	bound []Field
}

// NewStderrLogger returns a WriterLogger on os.Stderr.
func NewStderrLogger(min Level) *WriterLogger {
	return NewWriterLogger(os.Stderr, min)
}

func NewWriterLogger(w io.Writer, min Level) *WriterLogger {
	return &WriterLogger{mu: &sync.Mutex{}, w: w, min: min}
}

func (l *WriterLogger) log(lv Level, msg string, fields []Field) {
	if lv < l.min {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "%s %-5s %s", time.Now().Format(time.RFC3339), lv, msg)
	for _, f := range l.bound {
		fmt.Fprintf(l.w, " %s=%v", f.Key(), f.Value())
	}
	for _, f := range fields {
		fmt.Fprintf(l.w, " %s=%v", f.Key(), f.Value())
	}
	fmt.Fprintln(l.w)
}

func (l *WriterLogger) Debug(msg string, fields ...Field) { l.log(LevelDebug, msg, fields) }
func (l *WriterLogger) Info(msg string, fields ...Field)  { l.log(LevelInfo, msg, fields) }
func (l *WriterLogger) Warn(msg string, fields ...Field)  { l.log(LevelWarn, msg, fields) }
func (l *WriterLogger) Error(msg string, fields ...Field) { l.log(LevelError, msg, fields) }

func (l *WriterLogger) With(fields ...Field) Logger {
	bound := make([]Field, 0, len(l.bound)+len(fields))
	bound = append(bound, l.bound...)
	bound = append(bound, fields...)
	return &WriterLogger{mu: l.mu, w: l.w, min: l.min, bound: bound}
}

// Tracer provides tracing hooks for batch operations.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Span represents a tracing span.
type Span interface {
	SetTag(key string, value interface{})
	SetError(err error)
	Finish()
}

type nopTracer struct{}

func (nopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, nopSpan{}
}

// NopTracer returns a tracer that does nothing.
func NopTracer() Tracer { return nopTracer{} }

type nopSpan struct{}

func (nopSpan) SetTag(string, interface{}) {}
func (nopSpan) SetError(error)             {}
func (nopSpan) Finish()                    {}

// Standard metric names emitted by the batch operations.
const (
	MetricTrimTime    = "saiten.trim.duration"
	MetricPageCount   = "saiten.pages.count"
	MetricCropCount   = "saiten.crops.count"
	MetricReportTime  = "saiten.report.duration"
	MetricRowCount    = "saiten.report.rows"
	MetricMarkTime    = "saiten.mark.duration"
	MetricMarkedPages = "saiten.mark.pages"
)
