package domain

import (
	"fmt"
	"strings"
)

// Per-slot result of a day batch update.
type Outcome string

const (
	OutcomeApplied  Outcome = "applied"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeRejected Outcome = "rejected"
)

type SlotOutcome struct {
	Key      SlotKey  `json:"key"`
	MealTime MealTime `json:"mealTime"`
	Outcome  Outcome  `json:"outcome"`
	From     Status   `json:"from"`
	To       Status   `json:"to"`
	Reason   string   `json:"reason,omitempty"`
}

type BatchResult struct {
	SubscriptionID string        `json:"subscriptionId"`
	Date           string        `json:"date"`
	Target         Status        `json:"target"`
	Outcomes       []SlotOutcome `json:"outcomes"`
}

// Applied counts slots that accepted the transition.
func (r BatchResult) Applied() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Outcome == OutcomeApplied {
			n++
		}
	}
	return n
}

// Summary renders a short report, e.g. "Updated 2 of 3 meals; Dinner was already delivered".
func (r BatchResult) Summary() string {
	applied := r.Applied()
	noun := "meals"
	if len(r.Outcomes) == 1 {
		noun = "meal"
	}
	msg := fmt.Sprintf("Updated %d of %d %s", applied, len(r.Outcomes), noun)

	notes := make([]string, 0)
	for _, o := range r.Outcomes {
		switch o.Outcome {
		case OutcomeSkipped:
			notes = append(notes, fmt.Sprintf("%s was already %s", o.MealTime.Label(), o.From.Label()))
		case OutcomeRejected:
			notes = append(notes, fmt.Sprintf("%s is %s", o.MealTime.Label(), o.From.Label()))
		}
	}
	if len(notes) == 0 {
		return msg
	}
	return msg + "; " + strings.Join(notes, "; ")
}
