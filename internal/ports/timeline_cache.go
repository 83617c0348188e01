package ports

import (
	"context"

	"github.com/Endgame-Tech/choma-sub014/internal/domain"
)

// Port: short-lived cache of built timelines. Implementations own their TTL.
type TimelineCache interface {
	// Return the cached timeline and whether it was present and fresh.
	Get(ctx context.Context, key string) (*domain.Timeline, bool, error)
	Put(ctx context.Context, key string, t *domain.Timeline) error
	// Drop every entry of a subscription.
	Invalidate(ctx context.Context, subscriptionID string) error
}
