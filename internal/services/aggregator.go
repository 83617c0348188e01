package services

import (
	"math"
	"slices"
	"time"

	"github.com/Endgame-Tech/choma-sub014/internal/domain"
)

// GroupByDay groups slots into days ordered by week then day of week.
//
// Slots inside a day are ordered breakfast, lunch, dinner with unknown meal
// times last. Days without any materially valid slot are dropped.
func GroupByDay(slots []domain.MealSlot, now time.Time) []domain.DayGroup {
	type dayKey struct{ week, day int }

	index := make(map[dayKey]int)
	days := make([]domain.DayGroup, 0)
	valid := make([]bool, 0)

	for _, s := range slots {
		k := dayKey{s.WeekNumber, s.DayOfWeek}
		i, ok := index[k]
		if !ok {
			i = len(days)
			index[k] = i
			days = append(days, domain.DayGroup{
				ScheduledDate: s.ScheduledDate,
				WeekNumber:    s.WeekNumber,
				DayOfWeek:     s.DayOfWeek,
				DayName:       s.DayName,
			})
			valid = append(valid, false)
		}
		days[i].MealSlots = append(days[i].MealSlots, s)
		if s.MateriallyValid {
			valid[i] = true
		}
	}

	today := midnight(now, now.Location())
	out := make([]domain.DayGroup, 0, len(days))
	for i, d := range days {
		if !valid[i] {
			continue
		}
		slices.SortStableFunc(d.MealSlots, func(a, b domain.MealSlot) int {
			return a.MealTime.Rank() - b.MealTime.Rank()
		})
		d.AllReady = AllReady(d.MealSlots)
		d.DayType = classifyGroup(d, today)
		out = append(out, d)
	}

	slices.SortStableFunc(out, func(a, b domain.DayGroup) int {
		if a.WeekNumber != b.WeekNumber {
			return a.WeekNumber - b.WeekNumber
		}
		return a.DayOfWeek - b.DayOfWeek
	})

	return out
}

// AllReady reports whether every slot is exactly ready. An empty day is not ready.
func AllReady(slots []domain.MealSlot) bool {
	if len(slots) == 0 {
		return false
	}
	for _, s := range slots {
		if s.Status != domain.StatusReady {
			return false
		}
	}
	return true
}

// classifyGroup derives a day's type: past when every slot is delivered,
// otherwise by comparing the day's date with today.
func classifyGroup(d domain.DayGroup, today time.Time) domain.DayType {
	allDelivered := len(d.MealSlots) > 0
	for _, s := range d.MealSlots {
		if !s.Delivered() && s.Status != domain.StatusDelivered {
			allDelivered = false
			break
		}
	}
	if allDelivered {
		return domain.DayPast
	}
	return ClassifyDay(domain.MealSlot{ScheduledDate: d.ScheduledDate}, today)
}

// GroupByWeek buckets ordered days by week number and summarizes each week.
func GroupByWeek(days []domain.DayGroup) []domain.WeekGroup {
	weeks := make([]domain.WeekGroup, 0)
	for _, d := range days {
		n := len(weeks)
		if n == 0 || weeks[n-1].WeekNumber != d.WeekNumber {
			weeks = append(weeks, domain.WeekGroup{WeekNumber: d.WeekNumber})
			n++
		}
		weeks[n-1].Days = append(weeks[n-1].Days, d)
	}

	for i := range weeks {
		slots := make([]domain.MealSlot, 0, len(weeks[i].Days)*3)
		for _, d := range weeks[i].Days {
			slots = append(slots, d.MealSlots...)
		}
		weeks[i].Progress = Summarize(slots)
	}

	return weeks
}

// Summarize computes the progress rollup in a single pass over the slots.
func Summarize(slots []domain.MealSlot) domain.ProgressSummary {
	var p domain.ProgressSummary
	p.TotalSteps = len(slots)

	for _, s := range slots {
		switch {
		case s.Status == domain.StatusDelivered,
			s.Status == domain.StatusReady && s.DayType == domain.DayPast:
			p.CompletedSteps++
		case s.DayType == domain.DayCurrent && !s.Status.IsTerminal():
			p.InProgressSteps++
		}
	}

	p.RemainingSteps = p.TotalSteps - p.CompletedSteps - p.InProgressSteps
	p.ProgressPercentage = Percentage(p.CompletedSteps, p.TotalSteps)

	switch {
	case p.TotalSteps > 0 && p.CompletedSteps == p.TotalSteps:
		p.CurrentPhase = domain.PhaseCompleted
	case p.InProgressSteps > 0:
		p.CurrentPhase = domain.PhaseInProgress
	default:
		p.CurrentPhase = domain.PhaseActive
	}

	return p
}

// Percentage returns round(100*completed/total), or 0 for an empty set.
func Percentage(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}

// BuildTimeline aggregates a projection into the published timeline.
func BuildTimeline(p domain.Projection, now time.Time) *domain.Timeline {
	days := GroupByDay(p.Slots, now)

	published := make([]domain.MealSlot, 0, len(p.Slots))
	for _, d := range days {
		published = append(published, d.MealSlots...)
	}

	return &domain.Timeline{
		SubscriptionID: p.SubscriptionID,
		Authoritative:  p.Authoritative,
		GeneratedAt:    now,
		Days:           days,
		Weeks:          GroupByWeek(days),
		Progress:       Summarize(published),
	}
}
