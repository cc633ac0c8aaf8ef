package cache

import (
	"container/list"
	"context"
	"log"
	"sync"
	"time"
)

// TTLCache is a bounded in-memory cache whose entries expire ttl after they
// are stored. When full, the least recently used entry is evicted. The clock
// is injected so expiry can be tested without sleeping.
type TTLCache[K comparable, V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	entries map[K]*list.Element
	order   *list.List
}

type entry[K comparable, V any] struct {
	key       K
	value     V
	createdAt time.Time
	expiresAt time.Time
}

type Stats struct {
	TotalEntries int
	FreshEntries int
	StaleEntries int
}

func NewTTLCache[K comparable, V any](ttl time.Duration, maxSize int, now func() time.Time) *TTLCache[K, V] {
	if now == nil {
		now = time.Now
	}
	if maxSize <= 0 {
		maxSize = 1
	}
	return &TTLCache[K, V]{
		ttl:     ttl,
		maxSize: maxSize,
		now:     now,
		entries: make(map[K]*list.Element),
		order:   list.New(),
	}
}

// Get returns the cached value if present and not expired. Expired entries are removed.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.entries[key]
	if !ok {
		return zero, false
	}

	e := el.Value.(*entry[K, V])
	if !c.now().Before(e.expiresAt) {
		c.removeElement(el)
		return zero, false
	}

	c.order.MoveToFront(el)
	return e.value, true
}

// Set stores value under key, replacing any previous entry and restarting its TTL.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry[K, V])
		e.value = value
		e.createdAt = now
		e.expiresAt = now.Add(c.ttl)
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&entry[K, V]{key: key, value: value, createdAt: now, expiresAt: now.Add(c.ttl)})
	c.entries[key] = el

	for c.order.Len() > c.maxSize {
		c.removeElement(c.order.Back())
	}
}

// isStale reports whether key is missing or past its expiry.
func (c *TTLCache[K, V]) isStale(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return true
	}
	return !c.now().Before(el.Value.(*entry[K, V]).expiresAt)
}

func (c *TTLCache[K, V]) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// CleanupStale removes all expired entries and returns how many were dropped.
func (c *TTLCache[K, V]) CleanupStale() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if !now.Before(el.Value.(*entry[K, V]).expiresAt) {
			c.removeElement(el)
			removed++
		}
		el = prev
	}
	return removed
}

// Stats counts entries by freshness without evicting anything.
func (c *TTLCache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	s := Stats{TotalEntries: c.order.Len()}
	for el := c.order.Front(); el != nil; el = el.Next() {
		if now.Before(el.Value.(*entry[K, V]).expiresAt) {
			s.FreshEntries++
		} else {
			s.StaleEntries++
		}
	}
	return s
}

func (c *TTLCache[K, V]) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.entries, el.Value.(*entry[K, V]).key)
}

// RunCleanup drops expired entries every interval until ctx is cancelled.
func (c *TTLCache[K, V]) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.CleanupStale(); n > 0 {
				log.Printf("op=cache.cleanup removed=%d", n)
			}
		}
	}
}
