package domain

import "time"

// Lifecycle state of a subscription. Mutated only by external pause/resume/cancel flows.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPaused    SubscriptionStatus = "paused"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionCompleted SubscriptionStatus = "completed"
)

// Represents a customer's recurring meal-plan purchase.
// Chef and driver references are opaque to the timeline core.
type Subscription struct {
	ID               string
	CustomerID       string
	ChefID           string
	DriverID         string
	Status           SubscriptionStatus
	StartDate        *time.Time
	CreatedAt        time.Time
	DurationWeeks    int
	DurationDays     int
	Frequency        string
	NextDeliveryDate *time.Time

	// Live plan metadata, used when no snapshot is available.
	MealPlanID    string
	MealPlanTitle string

	Snapshot *MealPlanSnapshot
}

// Origin returns the date the schedule is projected from.
// A missing start date falls back to the creation timestamp.
func (s *Subscription) Origin() time.Time {
	if s.StartDate != nil && !s.StartDate.IsZero() {
		return *s.StartDate
	}
	return s.CreatedAt
}

// Days returns the number of plan days, deriving it from the week count when unset.
func (s *Subscription) Days() int {
	if s.DurationDays > 0 {
		return s.DurationDays
	}
	return s.DurationWeeks * 7
}
