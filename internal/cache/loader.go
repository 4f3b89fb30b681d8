package cache

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/repeateval/repeat/internal/table"
)

// Metrics is the interface for recording cache metrics.
// This allows the cache to be decoupled from the metrics package.
type Metrics interface {
	RecordCacheHit(backend string)
	RecordCacheMiss(backend string)
}

// LoadFunc reads one fragment from the store.
type LoadFunc func() (*table.Table, error)

// Loader reads fragments through a cache. Concurrent loads of the same key
// share one read.
type Loader struct {
	cache   Cache
	backend string
	group   singleflight.Group
	metrics Metrics
}

// NewLoader creates a loader over c. A nil cache disables caching.
func NewLoader(c Cache, backend Kind) *Loader {
	if c == nil {
		c = None{}
		backend = KindNone
	}
	return &Loader{cache: c, backend: string(backend)}
}

// SetMetrics sets the metrics recorder for this loader.
func (l *Loader) SetMetrics(m Metrics) {
	l.metrics = m
}

// Cache returns the underlying cache.
func (l *Loader) Cache() Cache {
	return l.cache
}

// Load returns the cached fragment for key or calls load. Errors are never
// cached. The returned table belongs to the caller.
func (l *Loader) Load(ctx context.Context, key Key, load LoadFunc) (*table.Table, error) {
	if t, ok := l.cache.Get(ctx, key); ok {
		if l.metrics != nil {
			l.metrics.RecordCacheHit(l.backend)
		}
		return t, nil
	}
	if l.metrics != nil {
		l.metrics.RecordCacheMiss(l.backend)
	}

	v, err, _ := l.group.Do(key.String(), func() (any, error) {
		t, err := load()
		if err != nil {
			return nil, err
		}
		l.cache.Set(ctx, key, t)
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	// Shared results are handed to several callers.
	return v.(*table.Table).Clone(), nil
}

// Purge drops every cached fragment.
func (l *Loader) Purge(ctx context.Context) error {
	return l.cache.Purge(ctx)
}
