// Package cache provides a small in-memory TTL cache. Herald uses it to
// deduplicate webhook updates, which Telegram redelivers until they are
// acknowledged.
package cache

import (
	"sync"
	"time"
)

type Options struct {
	// TTL is the default lifetime for entries stored through Set when the
	// caller passes a zero ttl.
	TTL time.Duration
	// MaxEntries caps the cache size. Oldest entries are evicted first.
	// Zero means unbounded.
	MaxEntries int
}

// MetricsHooks let callers observe cache behavior without coupling the
// cache to a metrics backend.
type MetricsHooks struct {
	OnHit   func(labels map[string]string)
	OnMiss  func(labels map[string]string)
	OnStore func(labels map[string]string)
}

type entry struct {
	value     interface{}
	expiresAt time.Time
}

type Cache struct {
	mu      sync.RWMutex
	items   map[string]*entry
	order   []string
	opts    Options
	metrics MetricsHooks
}

func New(opts Options, hooks MetricsHooks) *Cache {
	return &Cache{
		items:   make(map[string]*entry),
		order:   make([]string, 0, 128),
		opts:    opts,
		metrics: hooks,
	}
}

// Set stores a value for ttl. A zero ttl falls back to the configured
// default TTL.
func (c *Cache) Set(key string, val interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.opts.TTL
	}
	e := &entry{value: val, expiresAt: time.Now().Add(ttl)}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.items[key]; !exists {
		c.order = append(c.order, key)
	}
	c.items[key] = e
	c.evictIfNeeded()
	if c.metrics.OnStore != nil {
		c.metrics.OnStore(map[string]string{"key": key})
	}
}

// Peek returns a live cached value without extending its lifetime.
func (c *Cache) Peek(key string) (interface{}, bool) {
	now := time.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.items[key]
	if !ok || now.After(e.expiresAt) {
		if c.metrics.OnMiss != nil {
			c.metrics.OnMiss(map[string]string{"key": key})
		}
		return nil, false
	}
	if c.metrics.OnHit != nil {
		c.metrics.OnHit(map[string]string{"key": key})
	}
	return e.value, true
}

func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.removeFromOrder(key)
	c.mu.Unlock()
}

// Len counts live entries. Expired entries that have not been evicted yet
// are excluded.
func (c *Cache) Len() int {
	now := time.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, e := range c.items {
		if now.Before(e.expiresAt) {
			n++
		}
	}
	return n
}

func (c *Cache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// evictIfNeeded drops the oldest inserted entries once MaxEntries is
// exceeded. Insertion-order eviction is good enough for dedup keys, which
// age out naturally.
func (c *Cache) evictIfNeeded() {
	if c.opts.MaxEntries <= 0 || len(c.items) <= c.opts.MaxEntries {
		return
	}
	excess := len(c.items) - c.opts.MaxEntries
	for excess > 0 && len(c.order) > 0 {
		victim := c.order[0]
		c.order = c.order[1:]
		delete(c.items, victim)
		excess--
	}
}
