// Package cache is a small generic in-memory TTL cache. The content service
// uses it in front of the public section reads and evicts a section on every
// admin write to it.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache is safe for concurrent use. Expired entries are invisible to Get
// and are evicted by a background sweep; Close stops the sweep.
type TTLCache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]entry[V]
	ttl     time.Duration
	// gen is bumped by every invalidation so that a load which raced with a
	// write does not put the stale value back.
	gen uint64

	stopCleanup chan struct{}
	done        chan struct{}
	closeOnce   sync.Once
}

// New starts a cache whose entries live for ttl, swept every cleanupInterval.
func New[K comparable, V any](ttl, cleanupInterval time.Duration) *TTLCache[K, V] {
	c := &TTLCache[K, V]{
		entries:     make(map[K]entry[V]),
		ttl:         ttl,
		stopCleanup: make(chan struct{}),
		done:        make(chan struct{}),
	}

	go func() {
		defer close(c.done)
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.evictExpired()
			case <-c.stopCleanup:
				return
			}
		}
	}()

	return c
}

func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || !time.Now().Before(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// GetOrLoad returns the cached value or calls load and caches its result.
// Errors are not cached. A value loaded while an invalidation ran is returned
// but not stored.
func (c *TTLCache[K, V]) GetOrLoad(key K, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	c.mu.RLock()
	gen := c.gen
	c.mu.RUnlock()

	v, err := load()
	if err != nil {
		return v, err
	}

	c.mu.Lock()
	if c.gen == gen {
		c.entries[key] = entry[V]{value: v, expiresAt: time.Now().Add(c.ttl)}
	}
	c.mu.Unlock()
	return v, nil
}

func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	c.gen++
}

// Close stops the sweep goroutine. It is safe to call more than once.
func (c *TTLCache[K, V]) Close() {
	c.closeOnce.Do(func() {
		close(c.stopCleanup)
		<-c.done
	})
}

func (c *TTLCache[K, V]) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}
