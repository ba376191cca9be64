// Package cache memoizes Router output for a bounded time. Entries are
// evicted least-recently-used on capacity overflow and expire after a
// TTL independent of access; an expired read counts as a miss and
// removes the entry.
package cache

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codemem/codemem-mcp/internal/metrics"
	"github.com/codemem/codemem-mcp/pkg/types"
)

// Defaults per the retrieval contract.
const (
	DefaultCapacity = 256
	DefaultTTL      = 10 * time.Minute
)

type entry struct {
	pack      *types.EvidencePack
	createdAt time.Time
}

// Cache is a bounded LRU+TTL response cache, safe for concurrent use.
// The LRU handles structural mutation under its own lock; entries are
// never updated in place (a parameter change yields a different key).
type Cache struct {
	lru *lru.Cache[Key, *entry]
	ttl time.Duration
	now func() time.Time
}

// New creates a cache with the given capacity and TTL. Zero values fall
// back to the defaults.
func New(capacity int, ttl time.Duration) (*Cache, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	l, err := lru.New[Key, *entry](capacity)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &Cache{lru: l, ttl: ttl, now: time.Now}, nil
}

// Get returns the cached pack for key, or nil on miss. Entries older
// than the TTL are treated as misses and removed, however recently read.
func (c *Cache) Get(key Key) *types.EvidencePack {
	e, ok := c.lru.Get(key)
	if !ok {
		metrics.CacheTotal.WithLabelValues("miss").Inc()
		return nil
	}
	if c.now().Sub(e.createdAt) > c.ttl {
		c.lru.Remove(key)
		metrics.CacheTotal.WithLabelValues("miss").Inc()
		return nil
	}
	metrics.CacheTotal.WithLabelValues("hit").Inc()
	return e.pack
}

// Put stores a pack under key, evicting the least-recently-used entry
// when at capacity.
func (c *Cache) Put(key Key, pack *types.EvidencePack) {
	c.lru.Add(key, &entry{pack: pack, createdAt: c.now()})
}

// Len returns the number of live entries, expired ones included until
// their next read.
func (c *Cache) Len() int {
	return c.lru.Len()
}
