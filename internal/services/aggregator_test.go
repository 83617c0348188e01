package services

import (
	"testing"
	"time"

	"github.com/Endgame-Tech/choma-sub014/internal/domain"
)

func mealSlot(date time.Time, week, dow int, meal domain.MealTime, status domain.Status) domain.MealSlot {
	return domain.MealSlot{
		Key: domain.SlotKey{
			SubscriptionID: "sub-1",
			Date:           date.Format(domain.DateLayout),
			MealTime:       meal,
		},
		WeekNumber:      week,
		DayOfWeek:       dow,
		MealTime:        meal,
		ScheduledDate:   date,
		Status:          status,
		MateriallyValid: true,
	}
}

func TestGroupByDayOrdersAndExcludes(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	d1 := day(2026, 3, 2)
	d2 := day(2026, 3, 3)
	d3 := day(2026, 3, 4)

	empty := mealSlot(d3, 1, 3, "snack", domain.StatusScheduled)
	empty.MateriallyValid = false

	slots := []domain.MealSlot{
		mealSlot(d2, 1, 2, domain.MealLunch, domain.StatusScheduled),
		mealSlot(d1, 1, 1, domain.MealDinner, domain.StatusScheduled),
		mealSlot(d1, 1, 1, domain.MealBreakfast, domain.StatusScheduled),
		mealSlot(d1, 1, 1, domain.MealLunch, domain.StatusScheduled),
		empty,
	}

	days := GroupByDay(slots, now)
	if len(days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(days))
	}
	if days[0].DayOfWeek != 1 || days[1].DayOfWeek != 2 {
		t.Fatalf("days out of order: %d, %d", days[0].DayOfWeek, days[1].DayOfWeek)
	}

	wantOrder := []domain.MealTime{domain.MealBreakfast, domain.MealLunch, domain.MealDinner}
	for i, want := range wantOrder {
		if got := days[0].MealSlots[i].MealTime; got != want {
			t.Fatalf("slot %d = %q, want %q", i, got, want)
		}
	}

	if days[0].DayType != domain.DayCurrent || days[1].DayType != domain.DayFuture {
		t.Fatalf("unexpected day types: %q, %q", days[0].DayType, days[1].DayType)
	}
}

func TestAllReady(t *testing.T) {
	d := day(2026, 3, 2)

	if AllReady(nil) {
		t.Fatalf("empty day must not be ready")
	}

	ready := []domain.MealSlot{
		mealSlot(d, 1, 1, domain.MealBreakfast, domain.StatusReady),
		mealSlot(d, 1, 1, domain.MealLunch, domain.StatusReady),
	}
	if !AllReady(ready) {
		t.Fatalf("expected all ready")
	}

	ready[1].Status = domain.StatusDelivered
	if AllReady(ready) {
		t.Fatalf("delivered is not ready")
	}
}

func TestSummarizePercentageConsistency(t *testing.T) {
	past := day(2026, 3, 1)
	today := day(2026, 3, 2)
	future := day(2026, 3, 3)

	statuses := []domain.Status{
		domain.StatusDelivered,
		domain.StatusReady,
		domain.StatusPreparing,
		domain.StatusScheduled,
		domain.StatusCancelled,
	}
	dates := []time.Time{past, today, future}

	for n := 1; n <= 9; n++ {
		slots := make([]domain.MealSlot, 0, n)
		for i := 0; i < n; i++ {
			s := mealSlot(dates[i%3], 1, i%3+1, domain.MealLunch, statuses[i%len(statuses)])
			s.DayType = ClassifyDay(s, today)
			slots = append(slots, s)
		}

		p := Summarize(slots)
		if p.ProgressPercentage != Percentage(p.CompletedSteps, p.TotalSteps) {
			t.Fatalf("n=%d: percentage %d inconsistent with %d/%d", n, p.ProgressPercentage, p.CompletedSteps, p.TotalSteps)
		}
		if p.CompletedSteps+p.InProgressSteps+p.RemainingSteps != p.TotalSteps {
			t.Fatalf("n=%d: steps do not add up: %+v", n, p)
		}
	}
}

func TestSummarizePhases(t *testing.T) {
	past := day(2026, 3, 1)
	today := day(2026, 3, 2)

	if p := Summarize(nil); p.CurrentPhase != domain.PhaseActive || p.ProgressPercentage != 0 {
		t.Fatalf("empty summary: %+v", p)
	}

	done := []domain.MealSlot{
		mealSlot(past, 1, 1, domain.MealLunch, domain.StatusDelivered),
		mealSlot(past, 1, 1, domain.MealDinner, domain.StatusReady),
	}
	for i := range done {
		done[i].DayType = domain.DayPast
	}
	if p := Summarize(done); p.CurrentPhase != domain.PhaseCompleted || p.ProgressPercentage != 100 {
		t.Fatalf("completed summary: %+v", p)
	}

	mixed := []domain.MealSlot{
		mealSlot(past, 1, 1, domain.MealLunch, domain.StatusDelivered),
		mealSlot(today, 1, 2, domain.MealLunch, domain.StatusPreparing),
		mealSlot(today, 1, 2, domain.MealDinner, domain.StatusScheduled),
	}
	mixed[0].DayType = domain.DayPast
	mixed[1].DayType = domain.DayCurrent
	mixed[2].DayType = domain.DayCurrent

	p := Summarize(mixed)
	if p.CompletedSteps != 1 || p.InProgressSteps != 2 || p.RemainingSteps != 0 {
		t.Fatalf("mixed summary: %+v", p)
	}
	if p.ProgressPercentage != 33 || p.CurrentPhase != domain.PhaseInProgress {
		t.Fatalf("mixed summary: %+v", p)
	}
}

func TestGroupByWeek(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	slots := []domain.MealSlot{
		mealSlot(day(2026, 3, 2), 1, 1, domain.MealLunch, domain.StatusScheduled),
		mealSlot(day(2026, 3, 3), 1, 2, domain.MealLunch, domain.StatusScheduled),
		mealSlot(day(2026, 3, 9), 2, 1, domain.MealLunch, domain.StatusScheduled),
	}

	weeks := GroupByWeek(GroupByDay(slots, now))
	if len(weeks) != 2 {
		t.Fatalf("expected 2 weeks, got %d", len(weeks))
	}
	if len(weeks[0].Days) != 2 || len(weeks[1].Days) != 1 {
		t.Fatalf("unexpected week sizes: %d, %d", len(weeks[0].Days), len(weeks[1].Days))
	}
	if weeks[1].Progress.TotalSteps != 1 {
		t.Fatalf("week 2 total = %d, want 1", weeks[1].Progress.TotalSteps)
	}
}

func TestBuildTimelineCountsOnlyPublishedSlots(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	hidden := mealSlot(day(2026, 3, 3), 1, 2, "", domain.StatusScheduled)
	hidden.MateriallyValid = false

	proj := domain.Projection{
		SubscriptionID: "sub-1",
		Authoritative:  true,
		Slots: []domain.MealSlot{
			mealSlot(day(2026, 3, 2), 1, 1, domain.MealLunch, domain.StatusScheduled),
			hidden,
		},
	}

	tl := BuildTimeline(proj, now)
	if len(tl.Days) != 1 {
		t.Fatalf("expected 1 published day, got %d", len(tl.Days))
	}
	if tl.Progress.TotalSteps != 1 {
		t.Fatalf("totalSteps = %d, want 1", tl.Progress.TotalSteps)
	}
}
