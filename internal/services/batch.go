package services

import (
	"fmt"

	"github.com/Endgame-Tech/choma-sub014/internal/domain"
)

// PlanDayUpdate validates one target status against every slot of a day.
//
// Each slot is judged independently. A slot that already reached the target,
// or that sits in a terminal state, is skipped as a no-op. Slots the state
// machine refuses are rejected. Nothing is written here: the caller commits the
// applied outcomes. When no slot is applied the result is returned inside a
// *domain.NoApplicableSlotsError.
func PlanDayUpdate(
	subscriptionID string,
	day domain.DayGroup,
	target domain.Status,
	role domain.Role,
) (domain.BatchResult, error) {
	res := domain.BatchResult{
		SubscriptionID: subscriptionID,
		Date:           day.Date(),
		Target:         target,
		Outcomes:       make([]domain.SlotOutcome, 0, len(day.MealSlots)),
	}

	if !target.Valid() {
		return res, &domain.UnknownStatusError{Source: "target", Value: string(target)}
	}
	if !role.CanTarget(target) {
		return res, &domain.ForbiddenTargetError{Role: string(role), Target: target}
	}

	for _, slot := range day.MealSlots {
		res.Outcomes = append(res.Outcomes, PlanSlotUpdate(slot, target))
	}

	if res.Applied() == 0 {
		return res, &domain.NoApplicableSlotsError{
			SubscriptionID: subscriptionID,
			Date:           res.Date,
			Target:         target,
			Outcomes:       res.Outcomes,
		}
	}

	return res, nil
}

// PlanSlotUpdate decides the outcome of moving a single slot to target.
func PlanSlotUpdate(slot domain.MealSlot, target domain.Status) domain.SlotOutcome {
	out := domain.SlotOutcome{
		Key:      slot.Key,
		MealTime: slot.MealTime,
		From:     slot.Status,
		To:       slot.Status,
	}

	switch {
	case slot.Status == target, slot.Status.AtLeast(target):
		out.Outcome = domain.OutcomeSkipped
		out.Reason = fmt.Sprintf("already %s", slot.Status.Label())
		return out
	case slot.Status.IsTerminal():
		out.Outcome = domain.OutcomeSkipped
		out.Reason = fmt.Sprintf("already %s", slot.Status.Label())
		return out
	}

	next, err := AttemptTransition(slot.Key, slot.Status, target)
	if err != nil {
		out.Outcome = domain.OutcomeRejected
		out.Reason = err.Error()
		return out
	}

	out.Outcome = domain.OutcomeApplied
	out.To = next
	return out
}
