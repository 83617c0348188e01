package ports

import (
	"context"

	"github.com/Endgame-Tech/choma-sub014/internal/domain"
)

// Port: a boundary for retrieving Subscription entities from a data source.
type SubscriptionRepository interface {
	// Retrieve one subscription, including its meal-plan snapshot when present.
	GetSubscription(ctx context.Context, id string) (*domain.Subscription, error)
	// List subscriptions whose status is active.
	ListActiveSubscriptions(ctx context.Context) ([]*domain.Subscription, error)
	// List active subscriptions assigned to a chef.
	ListSubscriptionsByChef(ctx context.Context, chefID string) ([]*domain.Subscription, error)
}
