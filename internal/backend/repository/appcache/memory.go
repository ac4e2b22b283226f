package appcache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const cleanupInterval = time.Minute * 10

// MemoryCache is the zero dependency default, suitable for a single
// process. Entries do not survive restarts and are not shared between
// replicas.
type MemoryCache struct {
	c *gocache.Cache
}

func NewMemory(defaultTTL time.Duration) *MemoryCache {
	if defaultTTL == 0 {
		defaultTTL = time.Minute * 5
	}

	return &MemoryCache{c: gocache.New(defaultTTL, cleanupInterval)}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, ErrMiss
	}

	b, ok := v.([]byte)
	if !ok {
		return nil, ErrMiss
	}

	return b, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.c.Set(key, value, ttl)

	return nil
}

func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.c.Delete(key)

	return nil
}

func (m *MemoryCache) Ping(_ context.Context) error {
	return nil
}
