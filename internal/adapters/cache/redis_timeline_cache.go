package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Endgame-Tech/choma-sub014/internal/domain"
	"github.com/Endgame-Tech/choma-sub014/internal/platform/obs"
	"github.com/redis/go-redis/v9"
)

// Stores the timeline and records its key in the subscription's index set,
// both expiring together.
var putTimelineScript = redis.NewScript(`
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
redis.call("SADD", KEYS[2], KEYS[1])
redis.call("PEXPIRE", KEYS[2], ARGV[2])
return 1
`)

// Deletes every timeline listed in the index set, then the set itself.
var invalidateTimelinesScript = redis.NewScript(`
local keys = redis.call("SMEMBERS", KEYS[1])
for _, k in ipairs(keys) do
  redis.call("DEL", k)
end
redis.call("DEL", KEYS[1])
return #keys
`)

// RedisTimelineCache shares built timelines across server instances.
type RedisTimelineCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisTimelineCache(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisTimelineCache {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "choma"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")

	return &RedisTimelineCache{
		client: client,
		prefix: trimmedPrefix,
		ttl:    ttl,
	}
}

func (r *RedisTimelineCache) key(k string) string {
	return r.prefix + ":" + k
}

func (r *RedisTimelineCache) indexKey(subscriptionID string) string {
	return fmt.Sprintf("%s:timeline-index:%s", r.prefix, subscriptionID)
}

func (r *RedisTimelineCache) Get(ctx context.Context, key string) (_ *domain.Timeline, _ bool, err error) {
	defer obs.Time(ctx, "timeline.cache.Get")(&err)

	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get timeline cache %q: %w", key, err)
	}

	var t domain.Timeline
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, false, fmt.Errorf("get timeline cache %q: decode: %w", key, err)
	}
	return &t, true, nil
}

func (r *RedisTimelineCache) Put(ctx context.Context, key string, t *domain.Timeline) (err error) {
	defer obs.Time(ctx, "timeline.cache.Put")(&err)

	if t == nil || r.ttl <= 0 {
		return nil
	}

	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("put timeline cache %q: encode: %w", key, err)
	}

	keys := []string{r.key(key), r.indexKey(t.SubscriptionID)}
	if err := putTimelineScript.Run(ctx, r.client, keys, raw, r.ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("put timeline cache %q: %w", key, err)
	}
	return nil
}

func (r *RedisTimelineCache) Invalidate(ctx context.Context, subscriptionID string) (err error) {
	defer obs.Time(ctx, "timeline.cache.Invalidate")(&err)

	if err := invalidateTimelinesScript.Run(ctx, r.client, []string{r.indexKey(subscriptionID)}).Err(); err != nil {
		return fmt.Errorf("invalidate timeline cache %q: %w", subscriptionID, err)
	}
	return nil
}
