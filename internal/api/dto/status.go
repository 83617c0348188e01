package dto

import (
	"github.com/Endgame-Tech/choma-sub014/internal/domain"
	"github.com/Endgame-Tech/choma-sub014/internal/ports"
)

type UpdateSlotStatusRequest struct {
	TargetStatus string `json:"targetStatus" validate:"required,max=32"`
	Notes        string `json:"notes" validate:"max=500"`
}

type UpdateSlotStatusResponse struct {
	SubscriptionID         string                  `json:"subscriptionId"`
	Date                   string                  `json:"date"`
	MealTime               string                  `json:"mealTime"`
	AppliedStatus          string                  `json:"appliedStatus"`
	DailyWorkloadCompleted *bool                   `json:"dailyWorkloadCompleted,omitempty"`
	DriverAssignment       *ports.DriverAssignment `json:"driverAssignment,omitempty"`
}

type UpdateDayStatusRequest struct {
	TargetStatus string `json:"targetStatus" validate:"required,max=32"`
}

type SlotOutcomeResponse struct {
	MealTime string `json:"mealTime"`
	Outcome  string `json:"outcome"`
	From     string `json:"from"`
	To       string `json:"to"`
	Reason   string `json:"reason,omitempty"`
}

type UpdateDayStatusResponse struct {
	SubscriptionID  string                `json:"subscriptionId"`
	Date            string                `json:"date"`
	TargetStatus    string                `json:"targetStatus"`
	PerSlotOutcomes []SlotOutcomeResponse `json:"perSlotOutcomes"`
	Applied         int                   `json:"applied"`
	Summary         string                `json:"summary"`
}

type SyncResponse struct {
	SubscriptionID string `json:"subscriptionId"`
	Replaced       int    `json:"replaced"`
	Warnings       int    `json:"warnings"`
}

type ErrorResponse struct {
	Error           string                `json:"error"`
	PerSlotOutcomes []SlotOutcomeResponse `json:"perSlotOutcomes,omitempty"`
}

func NewSlotOutcomes(outcomes []domain.SlotOutcome) []SlotOutcomeResponse {
	out := make([]SlotOutcomeResponse, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, SlotOutcomeResponse{
			MealTime: string(o.MealTime),
			Outcome:  string(o.Outcome),
			From:     string(o.From),
			To:       string(o.To),
			Reason:   o.Reason,
		})
	}
	return out
}
