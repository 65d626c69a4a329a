// Package cache implements the TTL-bounded credential cache of spec §3/§4.1
// ("CachedCredentials... considered expired once the configured TTL has
// elapsed"). It wraps github.com/hashicorp/golang-lru/v2 with an explicit
// per-entry expiry checked against an injected clockwork.Clock so property 7
// (spec §8, cache TTL correctness) can fast-forward time in tests.
package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"

	"github.com/gravitational/rustconn/types"
)

// DefaultTTL matches spec §3's default.
const DefaultTTL = 5 * time.Minute

// DefaultCapacity bounds how many resolution keys the cache tracks at once.
const DefaultCapacity = 1024

type entry struct {
	creds   types.CachedCredentials
	expires time.Time
}

// Cache is the credential cache keyed by resolution key (display key or
// group key, see lib/vault.Resolver).
type Cache struct {
	mu    sync.Mutex
	lru   *lru.Cache[string, entry]
	clock clockwork.Clock
	ttl   time.Duration
}

// New builds a Cache with the given TTL and capacity; clock defaults to
// clockwork.NewRealClock() when nil.
func New(ttl time.Duration, capacity int, clock clockwork.Clock) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	l, _ := lru.New[string, entry](capacity)
	return &Cache{lru: l, clock: clock, ttl: ttl}
}

// Insert caches creds under key with cached_at = now (spec §4.1 step 3).
func (c *Cache) Insert(key string, creds types.Credentials) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	c.lru.Add(key, entry{
		creds:   types.CachedCredentials{Credentials: creds, CachedAt: now},
		expires: now.Add(c.ttl),
	})
}

// Get returns the cached credentials for key if present and not expired.
func (c *Cache) Get(key string) (types.Credentials, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lru.Get(key)
	if !ok {
		return types.Credentials{}, false
	}
	if !c.clock.Now().Before(e.expires) {
		c.lru.Remove(key)
		return types.Credentials{}, false
	}
	return e.creds.Credentials, true
}

// Invalidate removes key unconditionally (spec §4.1, "Cache invalidation
// events"): rename, delete, group move, password_source change, explicit
// flush, or TTL expiry (the latter is handled lazily by Get).
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
}

// InvalidateAll clears the entire cache (spec §4.1, "explicit 'flush
// secrets' action").
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}
