package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const defaultCleanupInterval = time.Minute

// Memory is an in-process Cache used when no redis address is configured.
// Expired entries are evicted by the go-cache janitor.
type Memory struct {
	// take serializes Take so a value is handed out once.
	take  sync.Mutex
	items *gocache.Cache
}

func NewMemory() *Memory {
	return newMemory(defaultCleanupInterval)
}

func newMemory(cleanup time.Duration) *Memory {
	return &Memory{items: gocache.New(gocache.NoExpiration, cleanup)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.items.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	return append([]byte(nil), v.([]byte)...), nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	m.items.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

func (m *Memory) Take(_ context.Context, key string) ([]byte, error) {
	m.take.Lock()
	defer m.take.Unlock()
	v, ok := m.items.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	m.items.Delete(key)
	return v.([]byte), nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.items.Delete(k)
	}
	return nil
}

func (m *Memory) DeletePrefix(_ context.Context, prefix string) error {
	for k := range m.items.Items() {
		if strings.HasPrefix(k, prefix) {
			m.items.Delete(k)
		}
	}
	return nil
}

var _ Cache = (*Memory)(nil)
