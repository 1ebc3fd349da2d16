// Package cache holds fetched datasets keyed by page and resolved request
// signature.
//
// Entries expire after their TTL. Failed fetches are never stored, so an
// outage is retried on the next request rather than remembered. The clock is
// injectable for tests.
package cache

import (
	"sync"
	"time"

	"github.com/five82/termstack/internal/value"
)

// Key identifies one resolved request for one page.
type Key struct {
	Page      string
	Signature string
}

// Entry is a cached dataset.
type Entry struct {
	Rows      value.Dataset
	FetchedAt time.Time
	TTL       time.Duration
}

// Expired reports whether the entry is stale at now. A zero TTL never
// expires.
func (e Entry) Expired(now time.Time) bool {
	return e.TTL > 0 && !now.Before(e.FetchedAt.Add(e.TTL))
}

// Clock returns the current time.
type Clock func() time.Time

// Cache is safe for concurrent use. The zero value is not usable; call New.
type Cache struct {
	mu      sync.RWMutex
	now     Clock
	entries map[Key]Entry
}

// New returns an empty cache. A nil clock uses time.Now.
func New(now Clock) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{now: now, entries: make(map[Key]Entry)}
}

// Now returns the cache clock's current time.
func (c *Cache) Now() time.Time { return c.now() }

// Get returns a live entry.
func (c *Cache) Get(k Key) (Entry, bool) {
	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()
	if !ok || e.Expired(c.now()) {
		return Entry{}, false
	}
	return e, true
}

// Peek returns an entry even if it has expired. Used to show the last known
// data while a refresh is in flight.
func (c *Cache) Peek(k Key) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[k]
	return e, ok
}

// Put stores rows stamped with the current time, replacing any prior entry.
func (c *Cache) Put(k Key, rows value.Dataset, ttl time.Duration) Entry {
	e := Entry{Rows: rows, FetchedAt: c.now(), TTL: ttl}
	c.mu.Lock()
	c.entries[k] = e
	c.mu.Unlock()
	return e
}

// Invalidate drops a single key.
func (c *Cache) Invalidate(k Key) {
	c.mu.Lock()
	delete(c.entries, k)
	c.mu.Unlock()
}

// InvalidatePage drops every signature cached for page and returns how many
// entries were removed.
func (c *Cache) InvalidatePage(page string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.entries {
		if k.Page == page {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Purge removes expired entries.
func (c *Cache) Purge() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if e.Expired(now) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
