package dto

import (
	"time"

	"github.com/Endgame-Tech/choma-sub014/internal/domain"
)

type TimelineEntryResponse struct {
	Date          string    `json:"date"`
	WeekNumber    int       `json:"weekNumber"`
	DayOfWeek     int       `json:"dayOfWeek"`
	DayName       string    `json:"dayName"`
	MealTime      string    `json:"mealTime"`
	MealTitle     string    `json:"mealTitle"`
	Status        string    `json:"status"`
	ScheduledDate time.Time `json:"scheduledDate"`
	DayType       string    `json:"dayType"`
	Synthetic     bool      `json:"synthetic"`
	OrderID       string    `json:"orderId,omitempty"`
}

type TimelineResponse struct {
	SubscriptionID string                  `json:"subscriptionId"`
	Authoritative  bool                    `json:"authoritative"`
	GeneratedAt    time.Time               `json:"generatedAt"`
	Entries        []TimelineEntryResponse `json:"entries"`
	Days           []domain.DayGroup       `json:"days"`
	Weeks          []domain.WeekGroup      `json:"weeks"`
	Progress       domain.ProgressSummary  `json:"progress"`
}

// NewTimelineResponse flattens the timeline into entries alongside its groups.
func NewTimelineResponse(t *domain.Timeline) TimelineResponse {
	slots := t.Slots()
	entries := make([]TimelineEntryResponse, 0, len(slots))
	for _, s := range slots {
		entries = append(entries, TimelineEntryResponse{
			Date:          s.Key.Date,
			WeekNumber:    s.WeekNumber,
			DayOfWeek:     s.DayOfWeek,
			DayName:       s.DayName,
			MealTime:      string(s.MealTime),
			MealTitle:     s.Title,
			Status:        string(s.Status),
			ScheduledDate: s.ScheduledDate,
			DayType:       string(s.DayType),
			Synthetic:     s.Synthetic,
			OrderID:       s.OrderID,
		})
	}

	days := t.Days
	if days == nil {
		days = []domain.DayGroup{}
	}
	weeks := t.Weeks
	if weeks == nil {
		weeks = []domain.WeekGroup{}
	}

	return TimelineResponse{
		SubscriptionID: t.SubscriptionID,
		Authoritative:  t.Authoritative,
		GeneratedAt:    t.GeneratedAt,
		Entries:        entries,
		Days:           days,
		Weeks:          weeks,
		Progress:       t.Progress,
	}
}
