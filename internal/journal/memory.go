// internal/journal/memory.go
package journal

import (
	"context"
	"sync"
)

// Memory keeps the most recent entries in a fixed-capacity ring. Useful for
// tests and for tooling that wants to inspect a live run without a database.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
}

// NewMemory creates a ring journal holding up to capacity entries.
func NewMemory(capacity int) *Memory {
	if capacity < 1 {
		capacity = 1
	}
	return &Memory{entries: make([]Entry, capacity)}
}

func (m *Memory) Record(_ context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[m.next] = entry
	m.next = (m.next + 1) % len(m.entries)
	if m.next == 0 {
		m.full = true
	}
	return nil
}

func (m *Memory) Close(context.Context) error { return nil }

// Entries returns the retained entries in insertion order, oldest first.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Entry
	if m.full {
		out = append(out, m.entries[m.next:]...)
	}
	out = append(out, m.entries[:m.next]...)
	return out
}
