package metrics

import (
	"sync"
	"time"

	"github.com/yourorg/delegation-oracle/internal/model"
)

// CachedMetrics is one cache entry with its capture timestamp
type CachedMetrics struct {
	CapturedAt time.Time
	Metrics    model.ValidatorMetrics
}

// Cache is a TTL-bounded metrics cache keyed by vote pubkey. Callers
// own the instance and its lifecycle; there is no process-global cache.
type Cache struct {
	ttl time.Duration

	mu      sync.RWMutex
	entries map[string]CachedMetrics

	// now is swapped out by tests to control expiry
	now func() time.Time
}

// NewCache creates a cache whose entries expire after ttl. A zero or
// negative ttl disables expiry.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]CachedMetrics),
		now:     time.Now,
	}
}

// Put stores a snapshot under its vote pubkey, replacing any previous entry
func (c *Cache) Put(metrics model.ValidatorMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[metrics.VotePubkey] = CachedMetrics{
		CapturedAt: c.now().UTC(),
		Metrics:    metrics,
	}
}

// Get returns the cached snapshot for a vote pubkey. Expired entries
// are treated as absent and evicted lazily.
func (c *Cache) Get(votePubkey string) (CachedMetrics, bool) {
	c.mu.RLock()
	entry, ok := c.entries[votePubkey]
	c.mu.RUnlock()
	if !ok {
		return CachedMetrics{}, false
	}
	if c.expired(entry) {
		c.mu.Lock()
		if current, still := c.entries[votePubkey]; still && c.expired(current) {
			delete(c.entries, votePubkey)
		}
		c.mu.Unlock()
		return CachedMetrics{}, false
	}
	return entry, true
}

// Len reports the number of entries including any not yet evicted
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) expired(entry CachedMetrics) bool {
	return c.ttl > 0 && c.now().Sub(entry.CapturedAt) > c.ttl
}
