package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/repeateval/repeat/internal/table"
)

const (
	DefaultExpiration      = 10 * time.Minute
	DefaultCleanupInterval = 30 * time.Minute
)

// Memory is an in-process cache with per-entry expiration.
type Memory struct {
	cache *gocache.Cache
}

// NewMemory creates an in-memory cache. Non-positive durations fall back
// to the defaults.
func NewMemory(expiration, cleanupInterval time.Duration) *Memory {
	if expiration <= 0 {
		expiration = DefaultExpiration
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	return &Memory{cache: gocache.New(expiration, cleanupInterval)}
}

func (m *Memory) Get(ctx context.Context, key Key) (*table.Table, bool) {
	value, found := m.cache.Get(key.String())
	if !found {
		return nil, false
	}
	t, ok := value.(*table.Table)
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

func (m *Memory) Set(ctx context.Context, key Key, t *table.Table) {
	m.cache.SetDefault(key.String(), t.Clone())
}

func (m *Memory) Purge(ctx context.Context) error {
	m.cache.Flush()
	return nil
}

func (m *Memory) Len() int {
	return m.cache.ItemCount()
}

func (m *Memory) Close() error {
	m.cache.Flush()
	return nil
}
