package store

import (
	"context"
	"sync"
	"time"

	"callbridge/models"
)

// Cached is a read-through cache over another ConfigStore. Entries are
// held for at most the configured TTL, so routing updated out-of-band is
// picked up within one TTL window. Negative results are not cached:
// a missing route is cheap to re-check and may appear at any moment.
//
// Put writes through to the backend and refreshes the cached entry, so a
// process observes its own writes immediately.
type Cached struct {
	backend ConfigStore
	ttl     time.Duration

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	cfg     models.RouteConfig
	fetched time.Time
}

// NewCached wraps backend with a TTL cache. A zero or negative ttl
// disables caching entirely and every Get hits the backend.
func NewCached(backend ConfigStore, ttl time.Duration) *Cached {
	return &Cached{
		backend: backend,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *Cached) Get(ctx context.Context, key string) (models.RouteConfig, error) {
	if c.ttl > 0 {
		c.mu.RLock()
		e, ok := c.entries[key]
		c.mu.RUnlock()
		if ok && time.Since(e.fetched) < c.ttl {
			return e.cfg, nil
		}
	}

	cfg, err := c.backend.Get(ctx, key)
	if err != nil {
		return models.RouteConfig{}, err
	}
	c.remember(key, cfg)
	return cfg, nil
}

func (c *Cached) Put(ctx context.Context, key string, cfg models.RouteConfig) error {
	if err := c.backend.Put(ctx, key, cfg); err != nil {
		return err
	}
	c.remember(key, cfg)
	return nil
}

func (c *Cached) Close() error {
	return c.backend.Close()
}

func (c *Cached) remember(key string, cfg models.RouteConfig) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = cacheEntry{cfg: cfg, fetched: time.Now()}
	c.mu.Unlock()
}
