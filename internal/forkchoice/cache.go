package forkchoice

import (
	"container/list"
	"sync"
	"time"
)

// weightCache memoizes per-fork weight computations with a freshness TTL and
// an LRU bound on total entries, mirroring the teacher's NewAverager-style
// small helper types rather than pulling in a generic cache library.
type weightCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	entries map[forkID]*list.Element
	order   *list.List // front = most recently used
}

type weightCacheEntry struct {
	id        forkID
	weight    int64
	expiresAt time.Time
}

func newWeightCache(ttl time.Duration, maxSize int) *weightCache {
	return &weightCache{
		ttl:     ttl,
		maxSize: maxSize,
		entries: make(map[forkID]*list.Element),
		order:   list.New(),
	}
}

// get returns the cached weight for id if present and not expired.
func (c *weightCache) get(id forkID, now time.Time) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[id]
	if !ok {
		return 0, false
	}
	entry := el.Value.(*weightCacheEntry)
	if now.After(entry.expiresAt) {
		c.order.Remove(el)
		delete(c.entries, id)
		return 0, false
	}
	c.order.MoveToFront(el)
	return entry.weight, true
}

// put stores weight for id, evicting the least-recently-used entry if the
// cache is at capacity.
func (c *weightCache) put(id forkID, weight int64, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[id]; ok {
		el.Value.(*weightCacheEntry).weight = weight
		el.Value.(*weightCacheEntry).expiresAt = now.Add(c.ttl)
		c.order.MoveToFront(el)
		return
	}
	entry := &weightCacheEntry{id: id, weight: weight, expiresAt: now.Add(c.ttl)}
	el := c.order.PushFront(entry)
	c.entries[id] = el
	if c.maxSize > 0 && len(c.entries) > c.maxSize {
		back := c.order.Back()
		if back != nil {
			evicted := back.Value.(*weightCacheEntry)
			delete(c.entries, evicted.id)
			c.order.Remove(back)
		}
	}
}

// invalidate drops id's cached entry, if any.
func (c *weightCache) invalidate(id forkID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[id]; ok {
		c.order.Remove(el)
		delete(c.entries, id)
	}
}

// expireStale drops every entry whose TTL has elapsed as of now.
func (c *weightCache) expireStale(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	var next *list.Element
	for el := c.order.Back(); el != nil; el = next {
		next = el.Prev()
		entry := el.Value.(*weightCacheEntry)
		if now.After(entry.expiresAt) {
			c.order.Remove(el)
			delete(c.entries, entry.id)
			removed++
		}
	}
	return removed
}

func (c *weightCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
