// Package cache holds the time-boxed query result cache and the per-camera
// recording segment cache shared by an engine instance.
package cache

import (
	"sync"
	"time"

	"github.com/mmcdole/argus/internal/metrics"
)

// DefaultSweepThreshold is the entry count above which Set sweeps expired entries.
const DefaultSweepThreshold = 256

// Keyer is implemented by queries. Structurally equal queries must return
// the same key.
type Keyer interface {
	CacheKey() string
}

type requestEntry[V any] struct {
	value   V
	expires time.Time
}

// RequestCache is a time-boxed cache keyed by normalized query.
// Expired entries are treated as absent on read and swept on Set once the
// cache grows past its sweep threshold.
type RequestCache[V any] struct {
	name           string
	sweepThreshold int
	now            func() time.Time
	metrics        *metrics.Metrics

	mu      sync.Mutex
	entries map[string]requestEntry[V]
}

// NewRequestCache creates an empty cache. name labels its metrics.
func NewRequestCache[V any](name string) *RequestCache[V] {
	return &RequestCache[V]{
		name:           name,
		sweepThreshold: DefaultSweepThreshold,
		now:            time.Now,
		metrics:        metrics.Get(),
		entries:        make(map[string]requestEntry[V]),
	}
}

// WithClock replaces the time source, for tests.
func (c *RequestCache[V]) WithClock(now func() time.Time) *RequestCache[V] {
	c.now = now
	return c
}

// WithSweepThreshold changes the entry count that triggers a sweep.
func (c *RequestCache[V]) WithSweepThreshold(n int) *RequestCache[V] {
	c.sweepThreshold = n
	return c
}

// Set stores value for query until expires.
func (c *RequestCache[V]) Set(query Keyer, value V, expires time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.sweepThreshold {
		c.sweepLocked()
	}
	c.entries[query.CacheKey()] = requestEntry[V]{value: value, expires: expires}
	c.metrics.CacheEntries.WithLabelValues(c.name).Set(float64(len(c.entries)))
}

// Get returns the unexpired value stored for query.
func (c *RequestCache[V]) Get(query Keyer) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := query.CacheKey()
	entry, ok := c.entries[key]
	if ok && !c.now().Before(entry.expires) {
		delete(c.entries, key)
		ok = false
	}
	c.metrics.CacheHit(c.name, ok)
	if !ok {
		var zero V
		return zero, false
	}
	return entry.value, true
}

// Has reports whether an unexpired value is stored for query.
func (c *RequestCache[V]) Has(query Keyer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[query.CacheKey()]
	return ok && c.now().Before(entry.expires)
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (c *RequestCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear removes all entries.
func (c *RequestCache[V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]requestEntry[V])
	c.mu.Unlock()
	c.metrics.CacheEntries.WithLabelValues(c.name).Set(0)
}

func (c *RequestCache[V]) sweepLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if !now.Before(entry.expires) {
			delete(c.entries, key)
		}
	}
}
