// Package scanlog records completed scans.
//
// The log is append-only: entries are never mutated and ids are never
// reused, even when a bounded log evicts its oldest entries. Readers see
// entries newest first.
package scanlog

import (
	"sync"
	"time"

	"github.com/teslashibe/go-inspect/pkg/analyze"
)

// Entry is one completed pipeline run.
type Entry struct {
	ID             uint64          `json:"id"`
	Timestamp      time.Time       `json:"timestamp"`
	Classification string          `json:"classification"`
	Verdict        string          `json:"verdict"`
	Outcome        analyze.Outcome `json:"outcome"`
	RunID          string          `json:"runId,omitempty"`
	Latency        time.Duration   `json:"latencyNs,omitempty"`
}

// Log is a concurrency-safe scan log.
type Log struct {
	mu       sync.RWMutex
	capacity int
	entries  []Entry // chronological; a ring when capacity > 0
	head     int     // index of the oldest entry once the ring is full
	lastID   uint64
}

// New creates a log. A capacity of zero or less keeps every entry;
// otherwise only the most recent capacity entries are retained.
func New(capacity int) *Log {
	if capacity < 0 {
		capacity = 0
	}
	return &Log{capacity: capacity}
}

// Append assigns the next id to e, stores it and returns the stored entry.
// Any ID set by the caller is ignored.
func (l *Log) Append(e Entry) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lastID++
	e.ID = l.lastID

	if l.capacity == 0 || len(l.entries) < l.capacity {
		l.entries = append(l.entries, e)
		return e
	}
	l.entries[l.head] = e
	l.head = (l.head + 1) % l.capacity
	return e
}

// Entries returns all retained entries, newest first.
func (l *Log) Entries() []Entry {
	return l.Recent(0)
}

// Recent returns up to n entries, newest first. n <= 0 returns all.
func (l *Log) Recent(n int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	size := len(l.entries)
	if n <= 0 || n > size {
		n = size
	}
	out := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, l.at(size-1-i))
	}
	return out
}

// Latest returns the most recent entry.
func (l *Log) Latest() (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.entries) == 0 {
		return Entry{}, false
	}
	return l.at(len(l.entries) - 1), true
}

// Get returns the retained entry with the given id.
func (l *Log) Get(id uint64) (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	size := len(l.entries)
	if size == 0 || id == 0 || id > l.lastID {
		return Entry{}, false
	}
	// ids are assigned contiguously by Append, so the offset from the
	// newest entry locates it directly.
	back := l.lastID - id
	if back >= uint64(size) {
		return Entry{}, false
	}
	return l.at(size - 1 - int(back)), true
}

// Len returns the number of retained entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// LastID returns the highest id assigned so far, including evicted ones.
func (l *Log) LastID() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastID
}

// at returns the i-th entry in chronological order. Callers hold mu.
func (l *Log) at(i int) Entry {
	return l.entries[(l.head+i)%len(l.entries)]
}
