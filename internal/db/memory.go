package db

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryKV keeps values in process memory. It serves tests and runs where
// persistence across restarts is not needed.
type MemoryKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	failSet error
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

// FailWrites makes every subsequent Set and Delete return err. Pass nil to
// restore normal behaviour.
func (m *MemoryKV) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSet = err
}

func (m *MemoryKV) Get(_ context.Context, key string, dst any) (bool, error) {
	m.mu.Lock()
	raw, ok := m.data[key]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (m *MemoryKV) Set(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet != nil {
		return m.failSet
	}
	m.data[key] = raw
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet != nil {
		return m.failSet
	}
	delete(m.data, key)
	return nil
}

func (m *MemoryKV) Close(context.Context) error { return nil }
