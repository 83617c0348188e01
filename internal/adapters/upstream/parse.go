package upstream

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Endgame-Tech/choma-sub014/internal/domain"
	"github.com/Endgame-Tech/choma-sub014/internal/ports"
)

const source = "order-processing"

type slotStatusDTO struct {
	Date             string `json:"date"`
	MealTime         string `json:"mealTime"`
	DelegationStatus string `json:"delegationStatus"`
	OrderStatus      string `json:"orderStatus"`
	DeliveryStatus   string `json:"deliveryStatus"`
	OrderID          string `json:"orderId"`
}

type mealStatusesDTO struct {
	SubscriptionID string           `json:"subscriptionId"`
	Slots          *[]slotStatusDTO `json:"slots"`
}

// ParseMealStatuses validates an upstream meal-status payload and converts it
// into slot signals. Any shape mismatch fails the whole payload.
func ParseMealStatuses(subscriptionID string, body []byte) ([]ports.SlotSignals, error) {
	var dto mealStatusesDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return nil, &domain.MalformedResponseError{Source: source, Reason: "invalid json", Err: err}
	}

	if dto.SubscriptionID != "" && dto.SubscriptionID != subscriptionID {
		return nil, &domain.MalformedResponseError{
			Source: source,
			Reason: fmt.Sprintf("subscription id %q does not match %q", dto.SubscriptionID, subscriptionID),
		}
	}
	if dto.Slots == nil {
		return nil, &domain.MalformedResponseError{Source: source, Reason: "missing slots"}
	}

	out := make([]ports.SlotSignals, 0, len(*dto.Slots))
	for i, s := range *dto.Slots {
		if strings.TrimSpace(s.MealTime) == "" {
			return nil, &domain.MalformedResponseError{Source: source, Reason: fmt.Sprintf("slot #%d: missing mealTime", i+1)}
		}

		key, err := domain.NewSlotKey(subscriptionID, s.Date, domain.MealTime(s.MealTime))
		if err != nil {
			return nil, &domain.MalformedResponseError{Source: source, Reason: fmt.Sprintf("slot #%d", i+1), Err: err}
		}

		out = append(out, ports.SlotSignals{
			Key:              key,
			DelegationStatus: strings.TrimSpace(s.DelegationStatus),
			OrderStatus:      strings.TrimSpace(s.OrderStatus),
			DeliveryStatus:   strings.TrimSpace(s.DeliveryStatus),
			OrderID:          strings.TrimSpace(s.OrderID),
		})
	}

	return out, nil
}
