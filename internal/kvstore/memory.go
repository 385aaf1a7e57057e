package kvstore

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore is an in-memory Store used in tests and demo mode.
// It records the order of writes and supports per-key error injection.
type MemoryStore struct {
	mu       sync.Mutex
	values   map[string]json.RawMessage
	setOrder []string

	// FailGet and FailSet force errors for specific keys
	FailGet map[string]error
	FailSet map[string]error
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]json.RawMessage),
	}
}

func (m *MemoryStore) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.FailGet[key]; ok {
		return nil, false, err
	}

	value, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}

	out := make(json.RawMessage, len(value))
	copy(out, value)
	return out, true, nil
}

func (m *MemoryStore) Set(ctx context.Context, key string, value json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.FailSet[key]; ok {
		return err
	}

	stored := make(json.RawMessage, len(value))
	copy(stored, value)
	m.values[key] = stored
	m.setOrder = append(m.setOrder, key)
	return nil
}

// SetOrder returns the keys written so far, in call order
func (m *MemoryStore) SetOrder() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, len(m.setOrder))
	copy(out, m.setOrder)
	return out
}

// Len returns the number of stored slots
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.values)
}
