// Package testutil provides shared test doubles.
package testutil

import (
	"sync"

	"github.com/ontoloom/ontoloom/core"
)

// =============================================================================
// MOCK LOGGER
// =============================================================================

// LogEntry is one recorded log call.
type LogEntry struct {
	Level  string
	Msg    string
	Fields []any
}

// MockLogger records log calls for assertions. Bind returns the same
// recorder so bound fields do not hide entries. Safe for concurrent use.
type MockLogger struct {
	mu      sync.Mutex
	entries []LogEntry
}

func NewMockLogger() *MockLogger { return &MockLogger{} }

func (l *MockLogger) Debug(msg string, kv ...any) { l.record("debug", msg, kv) }
func (l *MockLogger) Info(msg string, kv ...any)  { l.record("info", msg, kv) }
func (l *MockLogger) Warn(msg string, kv ...any)  { l.record("warn", msg, kv) }
func (l *MockLogger) Error(msg string, kv ...any) { l.record("error", msg, kv) }

func (l *MockLogger) Bind(fields ...any) core.Logger { return l }

func (l *MockLogger) record(level, msg string, kv []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{Level: level, Msg: msg, Fields: kv})
}

// Entries returns a copy of all recorded entries.
func (l *MockLogger) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Has reports whether a message was logged at the given level.
func (l *MockLogger) Has(level, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.Level == level && e.Msg == msg {
			return true
		}
	}
	return false
}

// Count returns how many times a message was logged.
func (l *MockLogger) Count(msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.Msg == msg {
			n++
		}
	}
	return n
}
