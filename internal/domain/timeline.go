package domain

import "time"

// Coarse subscription progress phase.
type Phase string

const (
	PhaseActive     Phase = "Active"
	PhaseInProgress Phase = "In Progress"
	PhaseCompleted  Phase = "Completed"
)

// Derived aggregate of all slots sharing one calendar day.
type DayGroup struct {
	ScheduledDate time.Time  `json:"scheduledDate"`
	WeekNumber    int        `json:"weekNumber"`
	DayOfWeek     int        `json:"dayOfWeek"`
	DayName       string     `json:"dayName"`
	MealSlots     []MealSlot `json:"mealSlots"`
	AllReady      bool       `json:"allReady"`
	DayType       DayType    `json:"dayType"`
}

// Date returns the day's wire date.
func (d DayGroup) Date() string {
	return d.ScheduledDate.Format(DateLayout)
}

type WeekGroup struct {
	WeekNumber int             `json:"weekNumber"`
	Days       []DayGroup      `json:"days"`
	Progress   ProgressSummary `json:"progress"`
}

// Rollup over a set of slots.
type ProgressSummary struct {
	TotalSteps         int   `json:"totalSteps"`
	CompletedSteps     int   `json:"completedSteps"`
	InProgressSteps    int   `json:"inProgressSteps"`
	RemainingSteps     int   `json:"remainingSteps"`
	ProgressPercentage int   `json:"progressPercentage"`
	CurrentPhase       Phase `json:"currentPhase"`
}

// Result of projecting a subscription into dated slots.
// Authoritative is false when the slots come from the synthetic generator.
type Projection struct {
	SubscriptionID string     `json:"subscriptionId"`
	Authoritative  bool       `json:"authoritative"`
	Slots          []MealSlot `json:"slots"`
}

// Published, aggregated view of a subscription's meals.
type Timeline struct {
	SubscriptionID string          `json:"subscriptionId"`
	Authoritative  bool            `json:"authoritative"`
	GeneratedAt    time.Time       `json:"generatedAt"`
	Days           []DayGroup      `json:"days"`
	Weeks          []WeekGroup     `json:"weeks"`
	Progress       ProgressSummary `json:"progress"`
}

// Slots flattens the timeline back into its ordered slots.
func (t *Timeline) Slots() []MealSlot {
	out := make([]MealSlot, 0, len(t.Days)*3)
	for _, d := range t.Days {
		out = append(out, d.MealSlots...)
	}
	return out
}

// Day returns the group for a wire date.
func (t *Timeline) Day(date string) (DayGroup, bool) {
	for _, d := range t.Days {
		if d.Date() == date {
			return d, true
		}
	}
	return DayGroup{}, false
}
