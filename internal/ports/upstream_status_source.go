package ports

import (
	"context"

	"github.com/Endgame-Tech/choma-sub014/internal/domain"
)

// Raw status fields reported for one slot by the upstream writers.
// Empty fields were not reported.
type SlotSignals struct {
	Key              domain.SlotKey
	DelegationStatus string
	OrderStatus      string
	DeliveryStatus   string
	OrderID          string
}

// Port: the order-processing system that owns delegation, order and delivery statuses.
type UpstreamStatusSource interface {
	FetchSignals(ctx context.Context, subscriptionID string) ([]SlotSignals, error)
}
