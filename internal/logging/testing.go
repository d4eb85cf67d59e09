package logging

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger is a Logger that keeps its entries in memory. Message
// arguments to the Assert helpers match as substrings.
type TestLogger struct {
	*Logger
	logs *observer.ObservedLogs
}

// NewTestLogger records every level, trace included.
func NewTestLogger() *TestLogger {
	return NewTestLoggerAt(TraceLevel)
}

// NewTestLoggerAt records entries at or above level only, so level gating in
// the code under test can be checked.
func NewTestLoggerAt(level zapcore.Level) *TestLogger {
	core, logs := observer.New(level)
	cfg := NewDefaultConfig()
	cfg.Level = level
	return &TestLogger{Logger: &Logger{zap: zap.New(core), config: cfg}, logs: logs}
}

func (t *TestLogger) All() []observer.LoggedEntry { return t.logs.All() }

// FilterMessage returns entries with exactly msg.
func (t *TestLogger) FilterMessage(msg string) *observer.ObservedLogs {
	return t.logs.FilterMessage(msg)
}

// Reset drops everything recorded so far.
func (t *TestLogger) Reset() { t.logs.TakeAll() }

func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, msg string) {
	tb.Helper()
	for _, e := range t.logs.FilterMessageSnippet(msg).All() {
		if e.Level == level {
			return
		}
	}
	assert.Failf(tb, "entry not logged", "no %s entry containing %q; have %s", level, msg, t.summary())
}

func (t *TestLogger) AssertNotLogged(tb testing.TB, level zapcore.Level, msg string) {
	tb.Helper()
	for _, e := range t.logs.FilterMessageSnippet(msg).All() {
		if e.Level == level {
			assert.Failf(tb, "unexpected entry", "%s entry %q", level, e.Message)
		}
	}
}

// AssertField checks that some entry containing msg carries key=want.
// Integer fields are recorded as int64.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, want any) {
	tb.Helper()
	var seen []any
	for _, e := range t.logs.FilterMessageSnippet(msg).All() {
		v, ok := e.ContextMap()[key]
		if !ok {
			continue
		}
		if assert.ObjectsAreEqual(want, v) {
			return
		}
		seen = append(seen, v)
	}
	assert.Failf(tb, "field not logged", "%q=%v not on %q (values seen: %v)", key, want, msg, seen)
}

// AssertRequestID checks that an entry was correlated with an HTTP request.
func (t *TestLogger) AssertRequestID(tb testing.TB, msg, id string) {
	tb.Helper()
	t.AssertField(tb, msg, "request.id", id)
}

// AssertTraced checks that an entry was logged inside the span sc.
func (t *TestLogger) AssertTraced(tb testing.TB, msg string, sc trace.SpanContext) {
	tb.Helper()
	t.AssertField(tb, msg, "trace_id", sc.TraceID().String())
	t.AssertField(tb, msg, "span_id", sc.SpanID().String())
}

func (t *TestLogger) summary() string {
	var b strings.Builder
	for i, e := range t.logs.All() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(e.Level.String() + ":" + e.Message)
	}
	return "[" + b.String() + "]"
}
