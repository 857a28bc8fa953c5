// Package store provides Persistence implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/pos-tracker/tracker"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps documents in a map. Values are copied on the way in and out.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte

	// failErr, when set, is returned by every Get and Put.
	failErr error
	puts    int
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Get returns the stored bytes, or nil when key is absent.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Put replaces the value stored under key.
func (m *Memory) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
	m.puts++
	return nil
}

// Fail makes every subsequent call return err; nil restores normal behavior.
func (m *Memory) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

// Puts returns the number of successful writes.
func (m *Memory) Puts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}

// =============================================================================
// ACTIVITY LOG
// =============================================================================

// MemoryActivity is an ActivityLog held in a slice.
type MemoryActivity struct {
	mu      sync.RWMutex
	entries []tracker.Activity
}

func NewMemoryActivity() *MemoryActivity {
	return &MemoryActivity{}
}

func (m *MemoryActivity) AppendActivity(_ context.Context, a tracker.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, a)
	return nil
}

// RecentActivity returns up to limit entries, newest first.
func (m *MemoryActivity) RecentActivity(_ context.Context, limit int) ([]tracker.Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []tracker.Activity{}
	for i := len(m.entries) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}
