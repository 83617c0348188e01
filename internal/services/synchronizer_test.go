package services

import (
	"errors"
	"testing"
	"time"

	"github.com/Endgame-Tech/choma-sub014/internal/domain"
	"github.com/Endgame-Tech/choma-sub014/internal/ports"
)

func TestPrecedenceDelegationFirst(t *testing.T) {
	sig := ports.SlotSignals{
		DelegationStatus: "ready",
		OrderStatus:      "preparing",
		DeliveryStatus:   "pending",
	}

	m, err := Normalize(sig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.From.Source != SourceDelegation || m.Status != domain.StatusReady {
		t.Fatalf("unexpected mapping: %+v", m)
	}

	sig.DelegationStatus = ""
	m, _ = Normalize(sig)
	if m.From.Source != SourceOrder || m.Status != domain.StatusPreparing {
		t.Fatalf("unexpected mapping: %+v", m)
	}
}

func TestNormalizeTokens(t *testing.T) {
	tests := []struct {
		sig  ports.SlotSignals
		want domain.Status
	}{
		{ports.SlotSignals{DeliveryStatus: "Out-For-Delivery"}, domain.StatusOutForDelivery},
		{ports.SlotSignals{DeliveryStatus: " in transit "}, domain.StatusOutForDelivery},
		{ports.SlotSignals{OrderStatus: "Completed"}, domain.StatusDelivered},
		{ports.SlotSignals{DelegationStatus: "completed"}, domain.StatusReady},
		{ports.SlotSignals{}, domain.StatusScheduled},
	}

	for _, tt := range tests {
		m, err := Normalize(tt.sig)
		if err != nil {
			t.Fatalf("Normalize(%+v): unexpected error: %v", tt.sig, err)
		}
		if m.Status != tt.want {
			t.Errorf("Normalize(%+v) = %q, want %q", tt.sig, m.Status, tt.want)
		}
	}
}

func TestNormalizeUnknownFallsBackToScheduled(t *testing.T) {
	m, err := Normalize(ports.SlotSignals{OrderStatus: "teleported"})

	var unk *domain.UnknownStatusError
	if !errors.As(err, &unk) {
		t.Fatalf("expected UnknownStatusError, got %v", err)
	}
	if m.Status != domain.StatusScheduled {
		t.Fatalf("status = %q, want %q", m.Status, domain.StatusScheduled)
	}
}

func TestReconcileNeverRegressesOnStaleUpstream(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	slot := mealSlot(day(2026, 3, 2), 1, 1, domain.MealLunch, domain.StatusReady)

	res := Reconcile([]domain.MealSlot{slot}, []ports.SlotSignals{
		{Key: slot.Key, OrderStatus: "preparing"},
	}, nil, now)

	if res.Slots[0].Status != domain.StatusReady {
		t.Fatalf("status = %q, want %q", res.Slots[0].Status, domain.StatusReady)
	}
	if len(res.Changes) != 0 {
		t.Fatalf("expected no changes, got %d", len(res.Changes))
	}
}

func TestReconcileAdvancesAndResets(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	d := day(2026, 3, 2)

	advancing := mealSlot(d, 1, 1, domain.MealBreakfast, domain.StatusPreparing)
	failed := mealSlot(d, 1, 1, domain.MealLunch, domain.StatusPreparing)
	delivered := mealSlot(d, 1, 1, domain.MealDinner, domain.StatusDelivered)

	res := Reconcile(
		[]domain.MealSlot{advancing, failed, delivered},
		[]ports.SlotSignals{
			{Key: advancing.Key, DeliveryStatus: "delivered", OrderID: "ord-9"},
			{Key: failed.Key, DelegationStatus: "failed"},
			{Key: delivered.Key, OrderStatus: "failed"},
		},
		nil,
		now,
	)

	if got := res.Slots[0]; got.Status != domain.StatusDelivered || got.OrderID != "ord-9" || got.DayType != domain.DayPast {
		t.Fatalf("advancing slot: %+v", got)
	}
	if got := res.Slots[1]; got.Status != domain.StatusScheduled {
		t.Fatalf("reset slot status = %q, want %q", got.Status, domain.StatusScheduled)
	}
	if got := res.Slots[2]; got.Status != domain.StatusDelivered {
		t.Fatalf("terminal slot status = %q, want %q", got.Status, domain.StatusDelivered)
	}

	if len(res.Changes) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(res.Changes))
	}
	if !res.Changes[1].Reset {
		t.Fatalf("expected reset change: %+v", res.Changes[1])
	}
}

func TestReconcileResetFiresOncePerUpstreamValue(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	slot := mealSlot(day(2026, 3, 2), 1, 1, domain.MealLunch, domain.StatusPreparing)
	signals := []ports.SlotSignals{{Key: slot.Key, DelegationStatus: "failed"}}

	seen := map[domain.SlotKey]domain.SlotState{
		slot.Key: {Key: slot.Key, Status: domain.StatusPreparing, DelegationStatus: "failed"},
	}
	res := Reconcile([]domain.MealSlot{slot}, signals, seen, now)
	if res.Slots[0].Status != domain.StatusPreparing {
		t.Fatalf("status = %q, want %q", res.Slots[0].Status, domain.StatusPreparing)
	}
	if len(res.Changes) != 0 {
		t.Fatalf("expected no changes, got %d", len(res.Changes))
	}

	seen[slot.Key] = domain.SlotState{Key: slot.Key, Status: domain.StatusPreparing, DelegationStatus: "accepted"}
	res = Reconcile([]domain.MealSlot{slot}, signals, seen, now)
	if res.Slots[0].Status != domain.StatusScheduled {
		t.Fatalf("status = %q, want %q", res.Slots[0].Status, domain.StatusScheduled)
	}
}

func TestReconcileUnknownIsWarning(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	slot := mealSlot(day(2026, 3, 2), 1, 1, domain.MealLunch, domain.StatusPreparing)

	res := Reconcile([]domain.MealSlot{slot}, []ports.SlotSignals{
		{Key: slot.Key, DelegationStatus: "lost-in-space"},
	}, nil, now)

	if len(res.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(res.Warnings))
	}
	if res.Slots[0].Status != domain.StatusPreparing {
		t.Fatalf("status = %q, want unchanged", res.Slots[0].Status)
	}
}

func TestMergeIsStableForUnchangedUpstream(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	d := day(2026, 3, 2)

	slots := []domain.MealSlot{
		mealSlot(d, 1, 1, domain.MealBreakfast, domain.StatusScheduled),
		mealSlot(d, 1, 1, domain.MealLunch, domain.StatusPreparing),
	}
	for i := range slots {
		slots[i].DayType = ClassifyDay(slots[i], d)
	}
	signals := []ports.SlotSignals{
		{Key: slots[0].Key, OrderStatus: "in_progress", OrderID: "ord-1"},
		{Key: slots[1].Key, DelegationStatus: "ready"},
	}

	first := Reconcile(slots, signals, nil, now)
	m1 := Merge(slots, first.Slots)
	if len(m1.Replaced) != 2 {
		t.Fatalf("first pass replaced %d, want 2", len(m1.Replaced))
	}

	second := Reconcile(m1.Slots, signals, nil, now)
	m2 := Merge(m1.Slots, second.Slots)
	if m2.Changed() {
		t.Fatalf("second pass changed records: %+v", m2)
	}
}

func TestMergeTracksAddedAndRemoved(t *testing.T) {
	d := day(2026, 3, 2)
	a := mealSlot(d, 1, 1, domain.MealBreakfast, domain.StatusScheduled)
	b := mealSlot(d, 1, 1, domain.MealLunch, domain.StatusScheduled)
	c := mealSlot(d, 1, 1, domain.MealDinner, domain.StatusScheduled)

	m := Merge([]domain.MealSlot{a, b}, []domain.MealSlot{b, c})
	if len(m.Added) != 1 || m.Added[0] != c.Key {
		t.Fatalf("added = %v", m.Added)
	}
	if len(m.Removed) != 1 || m.Removed[0] != a.Key {
		t.Fatalf("removed = %v", m.Removed)
	}
	if len(m.Replaced) != 0 {
		t.Fatalf("replaced = %v", m.Replaced)
	}
}
