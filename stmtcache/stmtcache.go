// Package stmtcache implements the content-addressed prepared-statement
// cache of spec.md §4.H: SQL text maps to a stable name derived from a
// hash of its bytes, so identical SQL shares cached state across a
// connection; the cache is bounded and LRU-evicted.
//
// Grounded on SPEC_FULL.md's domain-stack wiring of
// github.com/cespare/xxhash/v2 (pulled from the sqldef/TiDB stack in the
// retrieval pack) as the non-cryptographic hash of spec.md §9. A name
// carries the full 64-bit xxhash64 value, so across 10^6 distinct SQL
// texts the chance that any two share a name is about 3×10⁻⁸ (n²/2^65).
package stmtcache

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultCapacity is the default bound on cached entries (spec.md §4.H).
const DefaultCapacity = 1024

// Handle is a prepared-statement handle: the pre-computed name and
// parameter count, so the hot path does no hashing and no lookup beyond
// the initial cache check.
type Handle struct {
	Name       string
	SQL        string
	ParamCount int
}

// Name computes the stable statement name for sql: "s" + 16 hex digits of
// its xxhash64.
func Name(sql string) string {
	h := xxhash.Sum64String(sql)
	return fmt.Sprintf("s%016x", h)
}

type entry struct {
	handle Handle
	elem   *list.Element
}

// Cache is a per-connection, bounded, LRU-evicted map from SQL text to its
// prepared Handle. Every method holds the mutex, so individual calls are
// safe from several goroutines; a Lookup followed by an Insert is not one
// atomic step.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*entry // keyed by SQL text
	order    *list.List        // front = most recently used
}

func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]*entry),
		order:    list.New(),
	}
}

// Lookup returns the cached handle for sql, if present, promoting it to
// most-recently-used.
func (c *Cache) Lookup(sql string) (Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[sql]
	if !ok {
		return Handle{}, false
	}
	c.order.MoveToFront(e.elem)
	return e.handle, true
}

// Insert adds sql's handle to the cache, evicting the least-recently-used
// entry if at capacity. Returns the evicted handle's name (for issuing a
// Close statement message before reuse) and whether an eviction occurred.
func (c *Cache) Insert(h Handle) (evictedName string, evicted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[h.SQL]; ok {
		existing.handle = h
		c.order.MoveToFront(existing.elem)
		return "", false
	}
	if len(c.entries) >= c.capacity {
		back := c.order.Back()
		if back != nil {
			oldSQL := back.Value.(string)
			old := c.entries[oldSQL]
			evictedName = old.handle.Name
			evicted = true
			delete(c.entries, oldSQL)
			c.order.Remove(back)
		}
	}
	elem := c.order.PushFront(h.SQL)
	c.entries[h.SQL] = &entry{handle: h, elem: elem}
	return evictedName, evicted
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear empties the cache without issuing any Close messages; callers
// that need to release server-side statement state should iterate and
// close first.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.order.Init()
}
