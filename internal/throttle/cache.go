package throttle

import (
	"context"
	"sync"
	"time"
)

// Cache is the expiring key-value contract the limiter runs on.
//
// Increment must be atomic under concurrent callers and must apply ttl
// when it creates the key, so a counter never outlives its window.
type Cache interface {
	GetTime(ctx context.Context, key string) (time.Time, bool, error)
	SetTime(ctx context.Context, key string, t time.Time, ttl time.Duration) error
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

type memEntry struct {
	t       time.Time
	n       int64
	expires time.Time
}

// MemoryCache is a mutex-guarded TTL cache for tests and single-node
// deployments. Expired entries are pruned lazily on access.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*memEntry

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[string]*memEntry{}, Now: time.Now}
}

func (c *MemoryCache) get(key string) *memEntry {
	e, ok := c.entries[key]
	if !ok {
		return nil
	}
	if !e.expires.IsZero() && !c.Now().Before(e.expires) {
		delete(c.entries, key)
		return nil
	}
	return e
}

func (c *MemoryCache) GetTime(ctx context.Context, key string) (time.Time, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.get(key)
	if e == nil || e.t.IsZero() {
		return time.Time{}, false, nil
	}
	return e.t, true, nil
}

func (c *MemoryCache) SetTime(ctx context.Context, key string, t time.Time, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := &memEntry{t: t}
	if ttl > 0 {
		e.expires = c.Now().Add(ttl)
	}
	c.entries[key] = e
	return nil
}

func (c *MemoryCache) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.get(key)
	if e == nil {
		e = &memEntry{}
		if ttl > 0 {
			e.expires = c.Now().Add(ttl)
		}
		c.entries[key] = e
	}
	e.n++
	return e.n, nil
}
