package strata

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/singleflight"
)

// Memo pairs a Cache with per-key load deduplication. Concurrent misses on
// the same key share one load; different keys load independently.
type Memo struct {
	cache Cache
	group singleflight.Group
}

// NewMemo wraps c. A nil c gets a fresh MemoryCache.
func NewMemo(c Cache) *Memo {
	if c == nil {
		c = NewMemoryCache()
	}
	return &Memo{cache: c}
}

// Cache returns the underlying cache.
func (m *Memo) Cache() Cache {
	return m.cache
}

// Remember returns the cached value for key, or calls load and caches its
// result. With fresh set the cache is skipped and the loaded value replaces
// whatever was stored. Errors are returned but never cached.
func Remember[V any](ctx context.Context, m *Memo, key string, fresh bool, load func(context.Context) (V, error)) (V, error) {
	if !fresh {
		if v, ok := m.cache.Get(key); ok {
			if typed, ok := v.(V); ok {
				return typed, nil
			}
		}
	}

	// A fresh load never joins a flight started by a cached lookup.
	flight := key
	if fresh {
		flight = "fresh:" + key
	}

	// The flight outlives any one caller; each caller waits on its own ctx.
	loadCtx := context.WithoutCancel(ctx)
	ch := m.group.DoChan(flight, func() (any, error) {
		val, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		m.cache.Set(key, val)
		return val, nil
	})

	var zero V
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		typed, _ := res.Val.(V)
		return typed, nil
	}
}

// Key joins parts into a cache key.
func Key(parts ...any) string {
	s := make([]string, len(parts))
	for i, p := range parts {
		s[i] = fmt.Sprint(p)
	}
	return strings.Join(s, "/")
}
