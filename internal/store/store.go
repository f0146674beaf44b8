// Package store provides the key-value persistence capability consumed by the widget.
package store

import (
	"context"
	"fmt"
	"sync"
)

// KeyValue is a string key-value slot store.
type KeyValue interface {
	// Get returns the value stored under key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set overwrites the value stored under key.
	Set(ctx context.Context, key, value string) error

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases the backing store.
	Close() error
}

// Scoped returns a KeyValue that prefixes every key with namespace.
// Closing the scoped view does not close the parent.
func Scoped(parent KeyValue, namespace string) KeyValue {
	return &scoped{parent: parent, prefix: namespace + ":"}
}

type scoped struct {
	parent KeyValue
	prefix string
}

func (s *scoped) Get(ctx context.Context, key string) (string, bool, error) {
	return s.parent.Get(ctx, s.prefix+key)
}

func (s *scoped) Set(ctx context.Context, key, value string) error {
	return s.parent.Set(ctx, s.prefix+key, value)
}

func (s *scoped) Ping(ctx context.Context) error { return s.parent.Ping(ctx) }

func (s *scoped) Close() error { return nil }

// Memory is an in-process KeyValue.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

// Get returns the value stored under key.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// Set overwrites the value stored under key.
func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// Ping always succeeds.
func (m *Memory) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (m *Memory) Close() error { return nil }

var (
	_ KeyValue = (*Memory)(nil)
	_ KeyValue = (*SQLiteStore)(nil)
	_ KeyValue = (*RedisStore)(nil)
)

// Open creates the KeyValue named by kind: "sqlite", "redis" or "memory".
func Open(kind, dbPath, redisURL string) (KeyValue, error) {
	switch kind {
	case "sqlite":
		return NewSQLite(dbPath)
	case "redis":
		return NewRedis(redisURL)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", kind)
	}
}
