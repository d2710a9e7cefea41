package upstream

import (
	"sync"
	"time"

	"github.com/dom/lotus-draft/internal/pkg/clock"
)

type cacheEntry[V any] struct {
	value    V
	storedAt time.Time
}

// TTLCache holds values for a fixed TTL. Entries are only dropped when a read
// finds them expired; there is no size bound and no background sweep.
type TTLCache[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   clock.Clock
	entries map[string]cacheEntry[V]
}

func NewTTLCache[V any](ttl time.Duration, clk clock.Clock) *TTLCache[V] {
	if clk == nil {
		clk = clock.New()
	}
	return &TTLCache[V]{
		ttl:     ttl,
		clock:   clk,
		entries: make(map[string]cacheEntry[V]),
	}
}

func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.clock.Now().Sub(e.storedAt) >= c.ttl {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *TTLCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry[V]{value: value, storedAt: c.clock.Now()}
}

func (c *TTLCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
