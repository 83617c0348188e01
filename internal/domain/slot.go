package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format of slot dates.
const DateLayout = "2006-01-02"

// Identifies one unit of mutable fulfillment state.
type SlotKey struct {
	SubscriptionID string   `json:"subscriptionId"`
	Date           string   `json:"date"`
	MealTime       MealTime `json:"mealTime"`
}

func (k SlotKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.SubscriptionID, k.Date, k.MealTime)
}

// NewSlotKey normalizes the meal time and validates the date before building a key.
func NewSlotKey(subscriptionID, date string, mealTime MealTime) (SlotKey, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return SlotKey{}, &MissingScheduleDateError{SubscriptionID: subscriptionID, MealTime: mealTime}
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return SlotKey{}, fmt.Errorf("slot key: invalid date %q: %w", date, err)
	}
	return SlotKey{
		SubscriptionID: subscriptionID,
		Date:           date,
		MealTime:       MealTime(strings.ToLower(strings.TrimSpace(string(mealTime)))),
	}, nil
}

// Classification of a slot or day relative to "today".
type DayType string

const (
	DayPast    DayType = "past"
	DayCurrent DayType = "current"
	DayFuture  DayType = "future"
)

// Persisted per-slot status record. Rows exist only for slots that have been touched.
type SlotState struct {
	Key              SlotKey
	Status           Status
	DeliveryStatus   string
	OrderStatus      string
	DelegationStatus string
	OrderID          string
	Notes            string
	UpdatedAt        time.Time
}

// Runtime join of a MealSlotDefinition with live status.
type MealSlot struct {
	Key             SlotKey    `json:"key"`
	WeekNumber      int        `json:"weekNumber"`
	DayOfWeek       int        `json:"dayOfWeek"`
	DayName         string     `json:"dayName"`
	MealTime        MealTime   `json:"mealTime"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	ImageURL        string     `json:"imageUrl"`
	Meals           []MealItem `json:"meals,omitempty"`
	ScheduledDate   time.Time  `json:"scheduledDate"`
	Status          Status     `json:"status"`
	DeliveryStatus  string     `json:"deliveryStatus,omitempty"`
	OrderID         string     `json:"orderId,omitempty"`
	DayType         DayType    `json:"dayType"`
	Synthetic       bool       `json:"synthetic"`
	MateriallyValid bool       `json:"materiallyValid"`
}

// Delivered reports whether the raw delivery flag marks the slot delivered.
func (s MealSlot) Delivered() bool {
	return strings.EqualFold(strings.TrimSpace(s.DeliveryStatus), string(StatusDelivered))
}
