// Package cache provides a content-addressed result cache with lazy TTL
// expiry. Keys are derived from a checksum of the content bytes rather
// than the file path, so identical content under different paths shares
// an entry for the same agent.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aman-jaglan/CI-Code-Companion-sub001/internal/agent"
)

// Key derives the cache key for (content, agent, request context).
//
// The request context is canonicalized by sorting entries by key before
// serialization, so map insertion order never affects the hash. Content
// identity is a sha256 of the raw bytes.
func Key(content, agentID string, reqContext map[string]any) string {
	checksum := sha256.Sum256([]byte(content))

	h := sha256.New()
	h.Write(checksum[:])
	h.Write([]byte{0})
	h.Write([]byte(agentID))
	h.Write([]byte{0})
	h.Write(canonicalContext(reqContext))
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalContext serializes a context map deterministically.
func canonicalContext(reqContext map[string]any) []byte {
	if len(reqContext) == 0 {
		return nil
	}
	keys := make([]string, 0, len(reqContext))
	for k := range reqContext {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		// json encoding keeps nested values stable; fall back to %v for
		// values json cannot represent.
		if encoded, err := json.Marshal(reqContext[k]); err == nil {
			b.Write(encoded)
		} else {
			fmt.Fprintf(&b, "%v", reqContext[k])
		}
		b.WriteByte(';')
	}
	return []byte(b.String())
}

type entry struct {
	value    *agent.Result
	storedAt time.Time
}

// Cache is a synchronized map of analysis results with lazy TTL expiry.
// An optional Store persists entries across restarts; every store error
// is logged and swallowed, so cache failures never fail a request.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	store   Store
	now     func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithStore attaches a persistent backing store. Entries are loaded at
// construction; load failures leave the cache empty but usable.
func WithStore(s Store) Option {
	return func(c *Cache) { c.store = s }
}

// WithClock overrides the time source, for TTL tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a cache with the given TTL.
func New(ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.store != nil {
		c.loadFromStore()
	}
	return c
}

// Get returns the cached result for key, or absent if missing or
// expired. Expired entries are evicted lazily here, not proactively.
func (c *Cache) Get(key string) (*agent.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.expired(e) {
		delete(c.entries, key)
		c.storeDelete(key)
		return nil, false
	}
	return e.value, true
}

// Put stores a result under key with the current timestamp, overwriting
// any prior entry. Last-write-wins is acceptable: identical keys imply
// identical inputs.
func (c *Cache) Put(key string, value *agent.Result) {
	c.mu.Lock()
	storedAt := c.now()
	c.entries[key] = entry{value: value, storedAt: storedAt}
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Save(context.Background(), key, value, storedAt); err != nil {
			log.Printf("[CACHE] %v (continuing)", agent.NewCacheError("persisting entry failed", err))
		}
	}
}

// Invalidate removes every entry whose key satisfies the predicate and
// returns the number removed. Used for bulk eviction when an external
// signal reports content has changed.
func (c *Cache) Invalidate(predicate func(key string) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if predicate(key) {
			delete(c.entries, key)
			c.storeDelete(key)
			removed++
		}
	}
	return removed
}

// Clear removes entries older than the given age; a zero age removes
// everything. Returns the number removed.
func (c *Cache) Clear(olderThan time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-olderThan)
	removed := 0
	for key, e := range c.entries {
		if olderThan == 0 || e.storedAt.Before(cutoff) {
			delete(c.entries, key)
			c.storeDelete(key)
			removed++
		}
	}
	return removed
}

// Len returns the number of live entries, counting expired-but-unevicted
// entries since eviction is lazy.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close releases the backing store, if any.
func (c *Cache) Close() error {
	if c.store == nil {
		return nil
	}
	return c.store.Close()
}

func (c *Cache) expired(e entry) bool {
	return c.now().Sub(e.storedAt) >= c.ttl
}

func (c *Cache) loadFromStore() {
	stored, err := c.store.Load(context.Background())
	if err != nil {
		log.Printf("[CACHE] %v (starting cold)", agent.NewCacheError("loading persisted entries failed", err))
		return
	}
	loaded := 0
	for key, se := range stored {
		if c.now().Sub(se.StoredAt) >= c.ttl {
			continue
		}
		c.entries[key] = entry{value: se.Value, storedAt: se.StoredAt}
		loaded++
	}
	if loaded > 0 {
		log.Printf("[CACHE] loaded %d persisted entries", loaded)
	}
}

// storeDelete is called with c.mu held; deletion errors are swallowed.
func (c *Cache) storeDelete(key string) {
	if c.store == nil {
		return
	}
	if err := c.store.Delete(context.Background(), key); err != nil {
		log.Printf("[CACHE] %v (continuing)", agent.NewCacheError("deleting persisted entry failed", err))
	}
}
