package timelineclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Endgame-Tech/choma-sub014/internal/domain"
	"github.com/Endgame-Tech/choma-sub014/internal/services"
)

// DefaultPollInterval is how often Run refreshes a view.
const DefaultPollInterval = 30 * time.Second

// View holds one subscription's slots on the client.
//
// Refreshes are silent: unchanged records are kept as they are and a
// refresh response older than the latest applied one is discarded. Status
// writes are applied optimistically and rolled back to the last
// server-confirmed status when the service refuses them.
type View struct {
	client         *Client
	subscriptionID string
	lookaheadDays  int
	logger         *slog.Logger

	// OnChange, when set, is called with a copy of the slots after every change.
	OnChange func([]domain.MealSlot)

	mu        sync.Mutex
	slots     []domain.MealSlot
	confirmed map[domain.SlotKey]domain.Status
	pending   map[domain.SlotKey]int
	issued    uint64
	applied   uint64
}

func NewView(client *Client, subscriptionID string, lookaheadDays int, logger *slog.Logger) *View {
	if logger == nil {
		logger = slog.Default()
	}
	return &View{
		client:         client,
		subscriptionID: subscriptionID,
		lookaheadDays:  lookaheadDays,
		logger:         logger,
		confirmed:      make(map[domain.SlotKey]domain.Status),
		pending:        make(map[domain.SlotKey]int),
	}
}

// Slots returns a copy of the held slots in timeline order.
func (v *View) Slots() []domain.MealSlot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.slots)
}

// Slot returns the held slot for key.
func (v *View) Slot(key domain.SlotKey) (domain.MealSlot, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	i := v.indexOf(key)
	if i < 0 {
		return domain.MealSlot{}, false
	}
	return v.slots[i], true
}

// Refresh fetches the timeline and merges it into the held slots.
func (v *View) Refresh(ctx context.Context) error {
	v.mu.Lock()
	v.issued++
	seq := v.issued
	v.mu.Unlock()

	t, err := v.client.Timeline(ctx, v.subscriptionID, v.lookaheadDays)
	if err != nil {
		return err
	}

	v.mu.Lock()
	if seq <= v.applied {
		v.mu.Unlock()
		v.logger.Debug("discarding stale timeline response", "subscription_id", v.subscriptionID, "seq", seq)
		return nil
	}
	v.applied = seq

	fresh := t.Slots()
	for i, s := range fresh {
		v.confirmed[s.Key] = s.Status
		// A write in flight owns its slot's displayed status.
		if v.pending[s.Key] > 0 {
			if j := v.indexOf(s.Key); j >= 0 {
				fresh[i].Status = v.slots[j].Status
			}
		}
	}

	merged := services.Merge(v.slots, fresh)
	v.slots = merged.Slots
	snapshot := v.snapshotIf(merged.Changed())
	v.mu.Unlock()

	v.notify(snapshot)
	return nil
}

// Run refreshes the view every interval until ctx is done.
// Failures are logged and retried on the next tick.
func (v *View) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	if err := v.Refresh(ctx); err != nil && ctx.Err() == nil {
		v.logger.Warn("timeline refresh failed", "subscription_id", v.subscriptionID, "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := v.Refresh(ctx); err != nil && ctx.Err() == nil {
				v.logger.Warn("timeline refresh failed", "subscription_id", v.subscriptionID, "error", err)
			}
		}
	}
}

// SetSlotStatus moves one slot to target.
//
// The request is checked against the held slot before any network call:
// a missing date or a backward move fails locally. The slot shows target
// immediately and returns to its last confirmed status if the service
// refuses the change.
func (v *View) SetSlotStatus(ctx context.Context, date string, mealTime domain.MealTime, target string, notes string) (domain.Status, error) {
	key, err := domain.NewSlotKey(v.subscriptionID, date, mealTime)
	if err != nil {
		return "", err
	}
	next, err := domain.ParseStatus(target)
	if err != nil {
		return "", err
	}

	v.mu.Lock()
	i := v.indexOf(key)
	if i < 0 {
		v.mu.Unlock()
		return "", fmt.Errorf("set slot status %s: %w", key, domain.ErrSlotNotFound)
	}
	if _, err := services.AttemptTransition(key, v.slots[i].Status, next); err != nil {
		v.mu.Unlock()
		return "", err
	}
	v.begin(key)
	v.slots[i].Status = next
	snapshot := v.snapshotIf(true)
	v.mu.Unlock()
	v.notify(snapshot)

	res, err := v.client.UpdateSlotStatus(ctx, key, next, notes)

	v.mu.Lock()
	v.end(key)
	var applied domain.Status
	if err != nil {
		v.rollback(key)
	} else {
		applied = domain.Status(res.AppliedStatus)
		v.confirm(key, applied)
	}
	snapshot = v.snapshotIf(true)
	v.mu.Unlock()
	v.notify(snapshot)

	return applied, err
}

// SetDayStatus moves every meal of a day to target. Slots the local state
// machine would skip or reject are left untouched until the service answers.
func (v *View) SetDayStatus(ctx context.Context, date string, target string) (*DayResult, error) {
	if date == "" {
		return nil, &domain.MissingScheduleDateError{SubscriptionID: v.subscriptionID}
	}
	if _, err := time.Parse(domain.DateLayout, date); err != nil {
		return nil, fmt.Errorf("set day status: invalid date %q: %w", date, err)
	}
	next, err := domain.ParseStatus(target)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	var touched []domain.SlotKey
	for i, s := range v.slots {
		if s.Key.Date != date {
			continue
		}
		if services.PlanSlotUpdate(s, next).Outcome != domain.OutcomeApplied {
			continue
		}
		v.begin(s.Key)
		v.slots[i].Status = next
		touched = append(touched, s.Key)
	}
	if len(touched) == 0 && !v.hasDate(date) {
		v.mu.Unlock()
		return nil, fmt.Errorf("set day status %s: %w", date, domain.ErrDayNotFound)
	}
	snapshot := v.snapshotIf(len(touched) > 0)
	v.mu.Unlock()
	v.notify(snapshot)

	res, err := v.client.UpdateDayStatus(ctx, v.subscriptionID, date, next)

	v.mu.Lock()
	for _, k := range touched {
		v.end(k)
		if err != nil {
			v.rollback(k)
		}
	}
	var out *DayResult
	if err == nil {
		out = &DayResult{Applied: res.Applied, Summary: res.Summary}
		for _, o := range res.PerSlotOutcomes {
			key := domain.SlotKey{SubscriptionID: v.subscriptionID, Date: date, MealTime: domain.MealTime(o.MealTime)}
			v.confirm(key, domain.Status(o.To))
			out.Outcomes = append(out.Outcomes, domain.SlotOutcome{
				Key:      key,
				MealTime: key.MealTime,
				Outcome:  domain.Outcome(o.Outcome),
				From:     domain.Status(o.From),
				To:       domain.Status(o.To),
				Reason:   o.Reason,
			})
		}
	}
	snapshot = v.snapshotIf(true)
	v.mu.Unlock()
	v.notify(snapshot)

	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && len(apiErr.Outcomes) > 0 {
			v.logger.Info("day status not applied", "subscription_id", v.subscriptionID, "date", date, "error", apiErr.Message)
		}
		return nil, err
	}
	return out, nil
}

// DayResult is the service's report for a day update.
type DayResult struct {
	Applied  int
	Summary  string
	Outcomes []domain.SlotOutcome
}

// Invariants for the helpers below: v.mu is held.

func (v *View) indexOf(key domain.SlotKey) int {
	return slices.IndexFunc(v.slots, func(s domain.MealSlot) bool { return s.Key == key })
}

func (v *View) hasDate(date string) bool {
	return slices.ContainsFunc(v.slots, func(s domain.MealSlot) bool { return s.Key.Date == date })
}

func (v *View) begin(key domain.SlotKey) {
	v.pending[key]++
}

func (v *View) end(key domain.SlotKey) {
	if v.pending[key]--; v.pending[key] <= 0 {
		delete(v.pending, key)
	}
}

func (v *View) rollback(key domain.SlotKey) {
	i := v.indexOf(key)
	if i < 0 {
		return
	}
	if st, ok := v.confirmed[key]; ok {
		v.slots[i].Status = st
	}
}

// confirm records a server-confirmed status. Refreshes issued before it are
// now stale and will be discarded.
func (v *View) confirm(key domain.SlotKey, st domain.Status) {
	v.confirmed[key] = st
	v.applied = v.issued
	if i := v.indexOf(key); i >= 0 {
		v.slots[i].Status = st
	}
}

func (v *View) snapshotIf(changed bool) []domain.MealSlot {
	if !changed || v.OnChange == nil {
		return nil
	}
	return slices.Clone(v.slots)
}

func (v *View) notify(snapshot []domain.MealSlot) {
	if snapshot != nil && v.OnChange != nil {
		v.OnChange(snapshot)
	}
}
