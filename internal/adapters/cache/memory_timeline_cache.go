package cache

import (
	"context"
	"sync"
	"time"

	"github.com/Endgame-Tech/choma-sub014/internal/domain"
)

type memoryEntry struct {
	timeline  *domain.Timeline
	expiresAt time.Time
}

// MemoryTimelineCache is an in-process TimelineCache with a fixed TTL.
// Used when no Redis URL is configured.
type MemoryTimelineCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
	bySub   map[string]map[string]struct{}

	nextSweep time.Time
}

func NewMemoryTimelineCache(ttl time.Duration, now func() time.Time) *MemoryTimelineCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryTimelineCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]memoryEntry),
		bySub:   make(map[string]map[string]struct{}),
	}
}

func (c *MemoryTimelineCache) Get(_ context.Context, key string) (*domain.Timeline, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expiresAt) {
		c.drop(key, e.timeline.SubscriptionID)
		return nil, false, nil
	}
	return e.timeline, true, nil
}

func (c *MemoryTimelineCache) Put(_ context.Context, key string, t *domain.Timeline) error {
	if t == nil || c.ttl <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !now.Before(c.nextSweep) {
		c.sweep(now)
		c.nextSweep = now.Add(c.ttl)
	}

	c.entries[key] = memoryEntry{timeline: t, expiresAt: now.Add(c.ttl)}

	keys, ok := c.bySub[t.SubscriptionID]
	if !ok {
		keys = make(map[string]struct{})
		c.bySub[t.SubscriptionID] = keys
	}
	keys[key] = struct{}{}
	return nil
}

func (c *MemoryTimelineCache) Invalidate(_ context.Context, subscriptionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.bySub[subscriptionID] {
		delete(c.entries, key)
	}
	delete(c.bySub, subscriptionID)
	return nil
}

// sweep drops every expired entry. Keys are day-scoped, so entries for past
// days are never read again and would otherwise stay forever.
func (c *MemoryTimelineCache) sweep(now time.Time) {
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			c.drop(key, e.timeline.SubscriptionID)
		}
	}
}

func (c *MemoryTimelineCache) drop(key, subscriptionID string) {
	delete(c.entries, key)
	keys := c.bySub[subscriptionID]
	delete(keys, key)
	if len(keys) == 0 {
		delete(c.bySub, subscriptionID)
	}
}
