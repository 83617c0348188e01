package timelineclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Endgame-Tech/choma-sub014/internal/api/dto"
	"github.com/Endgame-Tech/choma-sub014/internal/domain"
)

// ParseTimeline decodes a timeline response and checks its shape once, so
// the rest of the client works with typed slots only.
func ParseTimeline(subscriptionID string, body []byte) (*domain.Timeline, error) {
	var res dto.TimelineResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, &domain.MalformedResponseError{Source: "timeline", Reason: "invalid json", Err: err}
	}
	if res.SubscriptionID == "" {
		return nil, &domain.MalformedResponseError{Source: "timeline", Reason: "missing subscriptionId"}
	}
	if res.SubscriptionID != subscriptionID {
		return nil, &domain.MalformedResponseError{
			Source: "timeline",
			Reason: fmt.Sprintf("subscriptionId %q does not match %q", res.SubscriptionID, subscriptionID),
		}
	}
	if res.Days == nil {
		return nil, &domain.MalformedResponseError{Source: "timeline", Reason: "missing days"}
	}

	for di, d := range res.Days {
		for si, s := range d.MealSlots {
			if err := checkSlot(s); err != nil {
				return nil, &domain.MalformedResponseError{
					Source: "timeline",
					Reason: fmt.Sprintf("days[%d].mealSlots[%d]", di, si),
					Err:    err,
				}
			}
		}
	}

	return &domain.Timeline{
		SubscriptionID: res.SubscriptionID,
		Authoritative:  res.Authoritative,
		GeneratedAt:    res.GeneratedAt,
		Days:           res.Days,
		Weeks:          res.Weeks,
		Progress:       res.Progress,
	}, nil
}

func checkSlot(s domain.MealSlot) error {
	if s.Key.MealTime == "" {
		return errors.New("missing meal time")
	}
	if _, err := time.Parse(domain.DateLayout, s.Key.Date); err != nil {
		return fmt.Errorf("date %q: %w", s.Key.Date, err)
	}
	if !s.Status.Valid() {
		return &domain.UnknownStatusError{Source: "timeline", Value: string(s.Status)}
	}
	return nil
}
