package hostfuncs

import (
	"sync"
	"time"

	"github.com/plughost-dev/plughost/domain/entities"
)

// DefaultMaxValueSize limits one key-value entry (64KB). Prevents a plugin
// from parking unbounded data in host memory.
const DefaultMaxValueSize = 64 * 1024

// DefaultMaxLogEntries bounds the per-execution log buffer. Entries past
// the cap are dropped and the buffer marked truncated.
const DefaultMaxLogEntries = 1000

// HostState is the mutable bridge state one plugin sees: its key-value
// store and its captured log entries. Safe for concurrent use.
type HostState struct {
	mu        sync.Mutex
	kv        map[string]string
	logs      []entities.LogEntry
	maxValue  int
	maxLogs   int
	truncated bool
	now       func() time.Time
}

// HostStateOption configures a HostState.
type HostStateOption func(*HostState)

// WithMaxValueSize overrides the per-entry value cap.
func WithMaxValueSize(n int) HostStateOption {
	return func(s *HostState) { s.maxValue = n }
}

// WithMaxLogEntries overrides the log buffer cap.
func WithMaxLogEntries(n int) HostStateOption {
	return func(s *HostState) { s.maxLogs = n }
}

// WithLogClock overrides the log timestamp source. Testing only.
func WithLogClock(now func() time.Time) HostStateOption {
	return func(s *HostState) { s.now = now }
}

// NewHostState creates an empty bridge state.
func NewHostState(opts ...HostStateOption) *HostState {
	s := &HostState{
		kv:       make(map[string]string),
		maxValue: DefaultMaxValueSize,
		maxLogs:  DefaultMaxLogEntries,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the value for key.
func (s *HostState) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.kv[key]
	return v, ok
}

// Set stores a value. Values over the cap are rejected.
func (s *HostState) Set(key, value string) bool {
	if len(value) > s.maxValue {
		return false
	}
	s.mu.Lock()
	s.kv[key] = value
	s.mu.Unlock()
	return true
}

// AppendLog captures one plugin log line. Past the cap, entries are
// dropped and the buffer marked truncated.
func (s *HostState) AppendLog(level, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.logs) >= s.maxLogs {
		s.truncated = true
		return
	}
	s.logs = append(s.logs, entities.LogEntry{
		Level:     level,
		Message:   message,
		Timestamp: s.now(),
	})
}

// DrainLogs returns the captured entries and resets the buffer.
func (s *HostState) DrainLogs() []entities.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.logs
	s.logs = nil
	s.truncated = false
	return out
}

// Truncated reports whether log entries were dropped since the last drain.
func (s *HostState) Truncated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.truncated
}
