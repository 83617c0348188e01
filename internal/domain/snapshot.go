package domain

import "strings"

// Time of day a meal is served.
type MealTime string

const (
	MealBreakfast MealTime = "breakfast"
	MealLunch     MealTime = "lunch"
	MealDinner    MealTime = "dinner"
)

// Known reports whether m is one of the served meal times.
func (m MealTime) Known() bool {
	return m.Rank() < 3
}

// Rank orders breakfast, lunch, dinner; unknown meal times sort last.
func (m MealTime) Rank() int {
	switch MealTime(strings.ToLower(string(m))) {
	case MealBreakfast:
		return 0
	case MealLunch:
		return 1
	case MealDinner:
		return 2
	default:
		return 3
	}
}

// Label returns the capitalised meal time used in messages ("Dinner").
func (m MealTime) Label() string {
	s := string(m)
	if s == "" {
		return "Meal"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

type Nutrition struct {
	Calories int     `json:"calories,omitempty"`
	Protein  float64 `json:"protein,omitempty"`
	Carbs    float64 `json:"carbs,omitempty"`
	Fat      float64 `json:"fat,omitempty"`
}

// A constituent dish of a meal slot.
type MealItem struct {
	Name      string    `json:"name"`
	Nutrition Nutrition `json:"nutrition"`
}

// One entry of a snapshot's meal schedule. Unique per (WeekNumber, DayOfWeek, MealTime).
type MealSlotDefinition struct {
	WeekNumber        int        `json:"weekNumber"`
	DayOfWeek         int        `json:"dayOfWeek"`
	DayName           string     `json:"dayName"`
	MealTime          MealTime   `json:"mealTime"`
	CustomTitle       string     `json:"customTitle"`
	CustomDescription string     `json:"customDescription"`
	ImageURL          string     `json:"imageUrl"`
	DeliveryStatus    string     `json:"deliveryStatus,omitempty"`
	Meals             []MealItem `json:"meals"`
}

// MateriallyValid reports whether the definition carries any real content.
func (d MealSlotDefinition) MateriallyValid() bool {
	return strings.TrimSpace(d.CustomTitle) != "" ||
		strings.TrimSpace(d.ImageURL) != "" ||
		strings.TrimSpace(d.CustomDescription) != "" ||
		d.MealTime.Known()
}

// Immutable copy of a meal plan taken at subscription activation.
// It is the source of truth for content, never for status.
type MealPlanSnapshot struct {
	MealPlanID   string               `json:"mealPlanId,omitempty"`
	Title        string               `json:"title,omitempty"`
	MealSchedule []MealSlotDefinition `json:"mealSchedule"`
}
