// ABOUTME: TTL cache remembering which channel request keys were dispatched
// ABOUTME: A retried envelope hits the cache and acks as already processed

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// janitorInterval is how often expired keys are swept out.
const janitorInterval = time.Minute

type entry struct {
	markedAt time.Time
	elem     *list.Element
}

// Cache remembers request keys (acting user id + envelope id) that were
// already dispatched, so a client retry of the same envelope is answered
// without re-applying the mutation. Keys expire after the TTL; when the
// cache is full the longest-idle key is dropped to admit the new one.
type Cache struct {
	mu     sync.Mutex
	keys   map[string]*entry
	byAge  *list.List // longest-idle key at the front
	ttl    time.Duration
	limit  int
	done   chan struct{}
	closed bool
}

// New creates a request cache. A janitor goroutine sweeps expired keys
// until Close is called.
func New(ttl time.Duration, limit int) *Cache {
	c := &Cache{
		keys:  make(map[string]*entry),
		byAge: list.New(),
		ttl:   ttl,
		limit: limit,
		done:  make(chan struct{}),
	}
	go c.janitor()
	return c
}

// CheckAndMark reports whether the key was already dispatched within the
// TTL, marking it as dispatched if not. The check and the mark happen under
// one lock, so one of two concurrent retries always loses.
func (c *Cache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if e, ok := c.keys[key]; ok && now.Sub(e.markedAt) < c.ttl {
		e.markedAt = now
		c.byAge.MoveToBack(e.elem)
		return true
	}

	c.admit(key, now)
	return false
}

// admit records a fresh key, evicting the longest-idle one at capacity.
// Caller holds mu.
func (c *Cache) admit(key string, now time.Time) {
	if e, ok := c.keys[key]; ok {
		// Expired entry for the same key: reuse its list slot
		e.markedAt = now
		c.byAge.MoveToBack(e.elem)
		return
	}

	if len(c.keys) >= c.limit {
		if front := c.byAge.Front(); front != nil {
			delete(c.keys, front.Value.(string))
			c.byAge.Remove(front)
		}
	}

	c.keys[key] = &entry{
		markedAt: now,
		elem:     c.byAge.PushBack(key),
	}
}

// janitor periodically drops expired keys so an idle gateway does not hold
// a TTL's worth of stale envelope ids forever.
func (c *Cache) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}

// sweep removes every expired key.
func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, e := range c.keys {
		if now.Sub(e.markedAt) >= c.ttl {
			c.byAge.Remove(e.elem)
			delete(c.keys, key)
		}
	}
}

// Len returns the number of live keys.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.keys)
}

// Close stops the janitor. Safe to call more than once.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
