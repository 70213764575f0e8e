// Package cache implements the time-windowed opportunity de-duplication set
// that keeps a persistent book crossing from generating a storm of identical
// trade submissions.
package cache

import (
	"sync"
	"time"

	"github.com/quanthawk/arbot/internal/domain"
)

type entry struct {
	fingerprint  string
	discoveredAt time.Time
}

// OpportunityCache is a dedup set keyed by trade fingerprint and ordered by
// discovery time. Entries expire after the configured window; expiry happens
// lazily on every operation by evicting from the front of the time-ordered
// queue until the first unexpired entry.
//
// The window is a submission-rate throttle, not a correctness contract: an
// opportunity that genuinely persists longer than the window is re-emitted.
type OpportunityCache struct {
	mu     sync.Mutex
	queue  []entry
	index  map[string]struct{}
	window time.Duration
	now    func() time.Time
}

// NewOpportunityCache creates a cache with the given expiry window.
func NewOpportunityCache(window time.Duration) *OpportunityCache {
	return &OpportunityCache{
		index:  make(map[string]struct{}),
		window: window,
		now:    time.Now,
	}
}

// SetNow replaces the clock. Test hook.
func (c *OpportunityCache) SetNow(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Contains reports whether an unexpired entry with the trade's fingerprint
// exists. Expired entries are evicted first.
func (c *OpportunityCache) Contains(trade domain.Trade) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictExpired()
	_, ok := c.index[trade.Fingerprint()]
	return ok
}

// Insert records the trade. A duplicate fingerprint is only accepted once the
// previous entry has expired.
func (c *OpportunityCache) Insert(trade domain.Trade) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictExpired()
	return c.insert(trade)
}

// TryInsertPair atomically checks both legs and, if neither is cached,
// inserts both. Returns false (nothing inserted) when either leg is still in
// flight. This is the hot-path operation the engine uses before emitting; the
// check and insert must be one critical section or two concurrent matching
// passes could emit the same crossing twice.
func (c *OpportunityCache) TryInsertPair(buy, sell domain.Trade) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictExpired()
	if _, ok := c.index[buy.Fingerprint()]; ok {
		return false
	}
	if _, ok := c.index[sell.Fingerprint()]; ok {
		return false
	}
	c.insert(buy)
	c.insert(sell)
	return true
}

// Len returns the number of unexpired entries.
func (c *OpportunityCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictExpired()
	return len(c.queue)
}

func (c *OpportunityCache) insert(trade domain.Trade) bool {
	fp := trade.Fingerprint()
	if _, ok := c.index[fp]; ok {
		return false
	}
	c.queue = append(c.queue, entry{fingerprint: fp, discoveredAt: trade.DiscoveredAt})
	c.index[fp] = struct{}{}
	return true
}

// evictExpired pops entries from the front of the queue until the first
// unexpired one. The queue is ordered by discovery time, so everything behind
// it is still live.
func (c *OpportunityCache) evictExpired() {
	now := c.now()
	i := 0
	for ; i < len(c.queue); i++ {
		if now.Sub(c.queue[i].discoveredAt) <= c.window {
			break
		}
		delete(c.index, c.queue[i].fingerprint)
	}
	if i > 0 {
		c.queue = append(c.queue[:0:0], c.queue[i:]...)
	}
}
