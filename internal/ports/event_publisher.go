package ports

import (
	"context"
	"time"
)

// Published when every meal a chef owns for a date has reached ready or beyond.
type DailyWorkloadCompleted struct {
	EventID     string    `json:"eventId"`
	ChefID      string    `json:"chefId"`
	Date        string    `json:"date"`
	MealCount   int       `json:"mealCount"`
	CompletedAt time.Time `json:"completedAt"`
}

// Port: hands domain events to the notification dispatcher.
type EventPublisher interface {
	PublishDailyWorkloadCompleted(ctx context.Context, evt DailyWorkloadCompleted) error
}
