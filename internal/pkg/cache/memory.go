package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type entry struct {
	value   string
	expires time.Time
}

// Memory is a map-backed Cache for tests and redis-less local runs.
// TTLs are honoured lazily on Get; there is no background eviction.
type Memory struct {
	mu          sync.Mutex
	serviceName string
	entries     map[string]entry
}

func NewMemory(serviceName string) *Memory {
	return &Memory{serviceName: serviceName, entries: make(map[string]entry)}
}

func (m *Memory) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	// Same contract as the redis implementation: callers serialise first.
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cache: unsupported value type %T, serialise to string or []byte first", value)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{value: s, expires: time.Now().Add(ttl)}
	return nil
}

func (m *Memory) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || time.Now().After(e.expires) {
		delete(m.entries, key)
		return "", nil
	}
	return e.value, nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *Memory) Key(operation, id string) string {
	return fmt.Sprintf("%s:%s:%s", m.serviceName, operation, id)
}
