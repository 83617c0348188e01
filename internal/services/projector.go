package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/Endgame-Tech/choma-sub014/internal/domain"
	"github.com/Endgame-Tech/choma-sub014/internal/ports"
)

// SyntheticMealTime is the single meal time used by the placeholder generator.
const SyntheticMealTime = domain.MealLunch

// ProjectSchedule turns a subscription's meal-plan snapshot into dated meal slots.
//
// It is a pure function of its inputs. Persisted states supply live status;
// slots without a state start as scheduled unless the snapshot's raw delivery
// flag says otherwise. When the subscription carries no usable snapshot the
// synthetic generator is used and the projection is marked non-authoritative.
// It never fails: definitions without a resolvable date are dropped.
func ProjectSchedule(
	sub *domain.Subscription,
	states map[domain.SlotKey]domain.SlotState,
	now time.Time,
) domain.Projection {
	if sub == nil {
		return domain.Projection{Slots: []domain.MealSlot{}}
	}

	loc := now.Location()
	today := midnight(now, loc)
	origin := midnight(sub.Origin(), loc)

	if sub.Snapshot == nil || len(sub.Snapshot.MealSchedule) == 0 {
		return domain.Projection{
			SubscriptionID: sub.ID,
			Authoritative:  false,
			Slots:          syntheticSlots(sub, origin, today, states),
		}
	}

	type defKey struct {
		week, day int
		meal      domain.MealTime
	}
	seen := make(map[defKey]struct{}, len(sub.Snapshot.MealSchedule))

	slots := make([]domain.MealSlot, 0, len(sub.Snapshot.MealSchedule))
	for _, def := range sub.Snapshot.MealSchedule {
		if def.WeekNumber < 1 || def.DayOfWeek < 1 || def.DayOfWeek > 7 {
			continue
		}

		meal := domain.MealTime(strings.ToLower(strings.TrimSpace(string(def.MealTime))))
		k := defKey{def.WeekNumber, def.DayOfWeek, meal}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}

		date := ScheduledDeliveryDate(origin, def.WeekNumber, def.DayOfWeek)
		key := domain.SlotKey{
			SubscriptionID: sub.ID,
			Date:           date.Format(domain.DateLayout),
			MealTime:       meal,
		}

		dayName := strings.TrimSpace(def.DayName)
		if dayName == "" {
			dayName = date.Weekday().String()
		}

		slot := domain.MealSlot{
			Key:             key,
			WeekNumber:      def.WeekNumber,
			DayOfWeek:       def.DayOfWeek,
			DayName:         dayName,
			MealTime:        meal,
			Title:           strings.TrimSpace(def.CustomTitle),
			Description:     strings.TrimSpace(def.CustomDescription),
			ImageURL:        strings.TrimSpace(def.ImageURL),
			Meals:           def.Meals,
			ScheduledDate:   date,
			DeliveryStatus:  def.DeliveryStatus,
			MateriallyValid: def.MateriallyValid(),
		}
		applyState(&slot, states)
		slot.DayType = ClassifyDay(slot, today)
		slots = append(slots, slot)
	}

	return domain.Projection{
		SubscriptionID: sub.ID,
		Authoritative:  true,
		Slots:          slots,
	}
}

// ScheduledDeliveryDate computes origin + 7*(week-1) + (dayOfWeek-1) calendar days.
func ScheduledDeliveryDate(origin time.Time, weekNumber, dayOfWeek int) time.Time {
	return origin.AddDate(0, 0, 7*(weekNumber-1)+(dayOfWeek-1))
}

// ClassifyDay places a slot relative to today.
// A delivered slot is always past, even when delivered ahead of its date.
func ClassifyDay(slot domain.MealSlot, today time.Time) domain.DayType {
	if slot.Delivered() || slot.Status == domain.StatusDelivered {
		return domain.DayPast
	}
	date := midnight(slot.ScheduledDate, today.Location())
	switch {
	case date.Equal(today):
		return domain.DayCurrent
	case date.Before(today):
		return domain.DayPast
	default:
		return domain.DayFuture
	}
}

func syntheticSlots(
	sub *domain.Subscription,
	origin time.Time,
	today time.Time,
	states map[domain.SlotKey]domain.SlotState,
) []domain.MealSlot {
	days := sub.Days()
	if days <= 0 {
		return []domain.MealSlot{}
	}

	planTitle := strings.TrimSpace(sub.MealPlanTitle)
	if planTitle == "" {
		planTitle = "Meal plan"
	}

	slots := make([]domain.MealSlot, 0, days)
	for i := 0; i < days; i++ {
		week := i/7 + 1
		dow := i%7 + 1
		date := ScheduledDeliveryDate(origin, week, dow)

		slot := domain.MealSlot{
			Key: domain.SlotKey{
				SubscriptionID: sub.ID,
				Date:           date.Format(domain.DateLayout),
				MealTime:       SyntheticMealTime,
			},
			WeekNumber:      week,
			DayOfWeek:       dow,
			DayName:         date.Weekday().String(),
			MealTime:        SyntheticMealTime,
			Title:           fmt.Sprintf("%s day %d", planTitle, i+1),
			Description:     "Menu details are not available yet",
			ScheduledDate:   date,
			Synthetic:       true,
			MateriallyValid: true,
		}
		applyState(&slot, states)
		slot.DayType = ClassifyDay(slot, today)
		slots = append(slots, slot)
	}

	return slots
}

// applyState joins persisted live status onto a freshly materialized slot.
func applyState(slot *domain.MealSlot, states map[domain.SlotKey]domain.SlotState) {
	st, ok := states[slot.Key]
	if !ok {
		status, _ := Normalize(ports.SlotSignals{Key: slot.Key, DeliveryStatus: slot.DeliveryStatus})
		slot.Status = status.Status
		return
	}

	if st.DeliveryStatus != "" {
		slot.DeliveryStatus = st.DeliveryStatus
	}
	slot.OrderID = st.OrderID

	if st.Status.Valid() {
		slot.Status = st.Status
		return
	}
	status, _ := Normalize(ports.SlotSignals{
		Key:              slot.Key,
		DelegationStatus: st.DelegationStatus,
		OrderStatus:      st.OrderStatus,
		DeliveryStatus:   slot.DeliveryStatus,
	})
	slot.Status = status.Status
}

func midnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
