// Package cache provides the time-boxed memoization used in front of the
// expensive read queries.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"lca_wages/internal/metrics"
)

// Entry is a cached value and its expiry.
type Entry struct {
	Data      any
	ExpiresAt time.Time
}

// Cache is a TTL cache. It is not size bounded: the key space is one entry per
// state and top-N variant. Expired entries are dropped lazily on read and by
// Janitor.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	ttl     time.Duration
	now     func() time.Time
	// gen counts Clear calls. Results computed before a Clear are not stored
	// after it.
	gen uint64

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Keys      int
}

// New creates a cache whose entries live for ttl.
func New(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]Entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// TTL returns the entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the value for key when present and unexpired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	if c.now().After(entry.ExpiresAt) {
		c.mu.Lock()
		// Re-check: a concurrent Set may have replaced the entry.
		if cur, ok := c.entries[key]; ok && c.now().After(cur.ExpiresAt) {
			delete(c.entries, key)
			c.evictions.Add(1)
		}
		n := len(c.entries)
		c.mu.Unlock()
		metrics.CacheEntries.Set(float64(n))
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return entry.Data, true
}

// Set stores value under key for the cache TTL.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	c.entries[key] = Entry{Data: value, ExpiresAt: c.now().Add(c.ttl)}
	n := len(c.entries)
	c.mu.Unlock()
	metrics.CacheEntries.Set(float64(n))
}

// Generation returns the current generation. It changes on every Clear.
func (c *Cache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// SetIfGeneration stores value only when no Clear happened since gen was read.
// It reports whether the value was stored.
func (c *Cache) SetIfGeneration(key string, value any, gen uint64) bool {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return false
	}
	c.entries[key] = Entry{Data: value, ExpiresAt: c.now().Add(c.ttl)}
	n := len(c.entries)
	c.mu.Unlock()
	metrics.CacheEntries.Set(float64(n))
	return true
}

// Clear drops every entry and starts a new generation.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.evictions.Add(int64(len(c.entries)))
	c.entries = make(map[string]Entry)
	c.gen++
	c.mu.Unlock()
	metrics.CacheEntries.Set(0)
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Keys:      c.Len(),
	}
}

// Sweep removes expired entries and returns how many it removed.
func (c *Cache) Sweep() int {
	now := c.now()

	c.mu.Lock()
	removed := 0
	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	n := len(c.entries)
	c.mu.Unlock()

	c.evictions.Add(int64(removed))
	metrics.CacheEntries.Set(float64(n))
	return removed
}

// Janitor sweeps expired entries every interval until ctx is done.
func (c *Cache) Janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// GenerateKey builds a stable key from an operation identifier and its
// arguments.
func GenerateKey(op string, args any) string {
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%s:%v", op, args)
	}

	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%x", op, hash[:16])
}

// Remember returns the cached value for key or computes it with fn and caches
// the result. Errors are never cached. Concurrent misses for one key may each
// run fn; the last result stored wins. A result whose computation overlapped a
// Clear is returned but not stored.
func Remember[T any](c *Cache, op, key string, fn func() (T, error)) (T, error) {
	return RememberIf(c, op, key, fn, func(T) bool { return true })
}

// RememberIf is Remember, but only results for which keep returns true are
// stored.
func RememberIf[T any](c *Cache, op, key string, fn func() (T, error), keep func(T) bool) (T, error) {
	if v, ok := c.Get(key); ok {
		if typed, ok := v.(T); ok {
			metrics.ObserveCache(op, true)
			return typed, nil
		}
	}
	metrics.ObserveCache(op, false)

	gen := c.Generation()
	v, err := fn()
	if err != nil {
		var zero T
		return zero, err
	}
	if keep(v) {
		c.SetIfGeneration(key, v, gen)
	}
	return v, nil
}
