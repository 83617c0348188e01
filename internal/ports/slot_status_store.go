package ports

import (
	"context"

	"github.com/Endgame-Tech/choma-sub014/internal/domain"
)

// Port: persisted per-slot fulfillment state keyed by (subscriptionId, date, mealTime).
type SlotStatusStore interface {
	// Return every persisted state of a subscription keyed by slot key.
	ListSlotStates(ctx context.Context, subscriptionID string) (map[domain.SlotKey]domain.SlotState, error)

	// Write state only if the stored status still equals expected.
	// A missing row has the empty status, so expected "" creates it.
	// Return domain.ErrConflict when another writer got there first.
	CompareAndSetStatus(ctx context.Context, expected domain.Status, next domain.SlotState) error
}
