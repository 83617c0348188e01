package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Endgame-Tech/choma-sub014/internal/domain"
	"github.com/Endgame-Tech/choma-sub014/internal/platform/obs"
	"github.com/Endgame-Tech/choma-sub014/internal/ports"
	"github.com/google/uuid"
)

// maxCommitAttempts bounds compare-and-set retries for one slot key.
const maxCommitAttempts = 3

// TimelineService runs the read and write paths over the ports.
// Upstream, Cache, Events and Drivers are optional.
type TimelineService struct {
	Subs     ports.SubscriptionRepository
	Store    ports.SlotStatusStore
	Upstream ports.UpstreamStatusSource
	Cache    ports.TimelineCache
	Events   ports.EventPublisher
	Drivers  ports.DriverAssigner
	Logger   *slog.Logger

	// Now is the clock; its location defines calendar days.
	Now func() time.Time
}

type UpdateSlotRequest struct {
	SubscriptionID string
	Date           string
	MealTime       domain.MealTime
	Target         string
	Notes          string
}

type SlotUpdateResult struct {
	Key                    domain.SlotKey
	AppliedStatus          domain.Status
	DailyWorkloadCompleted *bool
	DriverAssignment       *ports.DriverAssignment
}

type SyncResult struct {
	SubscriptionID string
	Replaced       int
	Warnings       int
}

func (s *TimelineService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *TimelineService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Authorize checks that caller may act on the subscription.
func (s *TimelineService) Authorize(ctx context.Context, caller domain.Caller, subscriptionID string) error {
	sub, err := s.Subs.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("authorize %q: %w", subscriptionID, err)
	}
	if !caller.IsPartyTo(sub) {
		return fmt.Errorf("authorize %q: %w", subscriptionID, domain.ErrNotSubscriptionParty)
	}
	return nil
}

// Timeline returns the aggregated timeline of a subscription, served from the
// cache while fresh.
func (s *TimelineService) Timeline(ctx context.Context, subscriptionID string) (_ *domain.Timeline, err error) {
	defer obs.Time(ctx, "timeline.Get")(&err)

	now := s.now()
	cacheKey := TimelineCacheKey(subscriptionID, now)

	if s.Cache != nil {
		t, ok, err := s.Cache.Get(ctx, cacheKey)
		if err != nil {
			s.logger().Warn("timeline cache read failed", "subscription_id", subscriptionID, "error", err)
		} else if ok {
			return t, nil
		}
	}

	_, _, proj, err := s.project(ctx, subscriptionID, now)
	if err != nil {
		return nil, err
	}
	t := BuildTimeline(proj, now)

	if s.Cache != nil {
		if err := s.Cache.Put(ctx, cacheKey, t); err != nil {
			s.logger().Warn("timeline cache write failed", "subscription_id", subscriptionID, "error", err)
		}
	}

	return t, nil
}

// TimelineCacheKey scopes cached timelines to the calendar day they were built on,
// since day types change at midnight.
func TimelineCacheKey(subscriptionID string, now time.Time) string {
	return fmt.Sprintf("timeline:%s:%s", subscriptionID, now.Format(domain.DateLayout))
}

// FilterLookahead keeps days up to today+lookaheadDays. A non-positive
// lookahead returns the timeline unchanged.
func FilterLookahead(t *domain.Timeline, now time.Time, lookaheadDays int) *domain.Timeline {
	if t == nil || lookaheadDays <= 0 {
		return t
	}

	limit := midnight(now, now.Location()).AddDate(0, 0, lookaheadDays)
	days := make([]domain.DayGroup, 0, len(t.Days))
	for _, d := range t.Days {
		if midnight(d.ScheduledDate, now.Location()).After(limit) {
			continue
		}
		days = append(days, d)
	}

	out := *t
	out.Days = days
	out.Weeks = GroupByWeek(days)
	return &out
}

func (s *TimelineService) project(
	ctx context.Context,
	subscriptionID string,
	now time.Time,
) (*domain.Subscription, map[domain.SlotKey]domain.SlotState, domain.Projection, error) {
	if strings.TrimSpace(subscriptionID) == "" {
		return nil, nil, domain.Projection{}, domain.ErrSubscriptionNotFound
	}

	sub, err := s.Subs.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, nil, domain.Projection{}, fmt.Errorf("project timeline: get subscription %q: %w", subscriptionID, err)
	}

	states, err := s.Store.ListSlotStates(ctx, subscriptionID)
	if err != nil {
		return nil, nil, domain.Projection{}, fmt.Errorf("project timeline: list slot states %q: %w", subscriptionID, err)
	}

	proj := ProjectSchedule(sub, states, now)
	if !proj.Authoritative {
		s.logger().Warn("meal plan snapshot missing, using synthetic schedule",
			"subscription_id", subscriptionID, "slots", len(proj.Slots))
	} else if dropped := len(sub.Snapshot.MealSchedule) - len(proj.Slots); dropped > 0 {
		s.logger().Warn("meal plan definitions dropped",
			"subscription_id", subscriptionID, "dropped", dropped)
	}

	return sub, states, proj, nil
}

// loadSlot projects the subscription and returns the current slot for key
// together with its persisted state, if any.
func (s *TimelineService) loadSlot(
	ctx context.Context,
	key domain.SlotKey,
	now time.Time,
) (*domain.Subscription, domain.MealSlot, domain.SlotState, error) {
	sub, err := s.Subs.GetSubscription(ctx, key.SubscriptionID)
	if err != nil {
		return nil, domain.MealSlot{}, domain.SlotState{}, fmt.Errorf("load slot %s: %w", key, err)
	}

	states, err := s.Store.ListSlotStates(ctx, key.SubscriptionID)
	if err != nil {
		return nil, domain.MealSlot{}, domain.SlotState{}, fmt.Errorf("load slot %s: list states: %w", key, err)
	}

	proj := ProjectSchedule(sub, states, now)
	for _, slot := range proj.Slots {
		if slot.Key == key {
			st, ok := states[key]
			if !ok {
				st = domain.SlotState{Key: key, DeliveryStatus: slot.DeliveryStatus}
			}
			st.OrderID = slot.OrderID
			return sub, slot, st, nil
		}
	}

	return nil, domain.MealSlot{}, domain.SlotState{}, fmt.Errorf("load slot %s: %w", key, domain.ErrSlotNotFound)
}

// UpdateSlotStatus moves one slot to a new canonical status.
//
// The transition is validated before the write and committed with a
// compare-and-set; a lost race reloads the slot and validates again, so
// concurrent writers converge on the highest legal status.
func (s *TimelineService) UpdateSlotStatus(
	ctx context.Context,
	caller domain.Caller,
	req UpdateSlotRequest,
) (_ *SlotUpdateResult, err error) {
	defer obs.Time(ctx, "timeline.UpdateSlotStatus")(&err)

	key, err := domain.NewSlotKey(req.SubscriptionID, req.Date, req.MealTime)
	if err != nil {
		return nil, err
	}

	target, err := domain.ParseStatus(req.Target)
	if err != nil {
		return nil, err
	}
	if !caller.Role.CanTarget(target) {
		return nil, &domain.ForbiddenTargetError{Role: string(caller.Role), Target: target}
	}

	var (
		sub  *domain.Subscription
		slot domain.MealSlot
		next domain.Status
	)

	for attempt := 1; ; attempt++ {
		now := s.now()

		var st domain.SlotState
		sub, slot, st, err = s.loadSlot(ctx, key, now)
		if err != nil {
			return nil, err
		}

		if !caller.IsPartyTo(sub) {
			return nil, fmt.Errorf("update slot status %s: %w", key, domain.ErrNotSubscriptionParty)
		}

		next, err = AttemptTransitionAs(caller.Role, key, slot.Status, target)
		if err != nil {
			return nil, err
		}

		expected := st.Status
		st.Key = key
		st.Status = next
		st.UpdatedAt = now
		if req.Notes != "" {
			st.Notes = req.Notes
		}
		if next == domain.StatusDelivered && st.DeliveryStatus == "" {
			st.DeliveryStatus = string(domain.StatusDelivered)
		}

		err = s.Store.CompareAndSetStatus(ctx, expected, st)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrConflict) || attempt >= maxCommitAttempts {
			return nil, fmt.Errorf("update slot status %s: %w", key, err)
		}
		s.logger().Info("slot status changed concurrently, retrying", "slot", key.String(), "attempt", attempt)
	}

	s.invalidate(ctx, key.SubscriptionID)
	s.logger().Info("slot status updated",
		"slot", key.String(), "from", slot.Status, "to", next, "role", caller.Role, "subject", caller.Subject)

	res := &SlotUpdateResult{Key: key, AppliedStatus: next}

	if closesWorkload(slot.Status, next) {
		done := s.checkDailyWorkload(ctx, sub, key.Date)
		res.DailyWorkloadCompleted = &done
	}

	if next == domain.StatusReady {
		if slot.OrderID != "" && s.Drivers != nil {
			assignment, err := s.Drivers.RequestAssignment(ctx, slot.OrderID)
			if err != nil {
				s.logger().Warn("driver assignment request failed", "slot", key.String(), "order_id", slot.OrderID, "error", err)
			} else {
				res.DriverAssignment = assignment
			}
		}
	}

	return res, nil
}

// UpdateDayStatus applies one target status to every slot of a day.
//
// Outcomes are planned for all slots before anything is written. Applied
// outcomes are then committed per slot key; a slot that loses a race is
// planned again against its fresh status.
func (s *TimelineService) UpdateDayStatus(
	ctx context.Context,
	caller domain.Caller,
	subscriptionID string,
	date string,
	targetRaw string,
) (_ domain.BatchResult, err error) {
	defer obs.Time(ctx, "timeline.UpdateDayStatus")(&err)

	if strings.TrimSpace(date) == "" {
		return domain.BatchResult{}, &domain.MissingScheduleDateError{SubscriptionID: subscriptionID}
	}
	if _, err := time.Parse(domain.DateLayout, date); err != nil {
		return domain.BatchResult{}, fmt.Errorf("update day status: invalid date %q: %w", date, err)
	}

	target, err := domain.ParseStatus(targetRaw)
	if err != nil {
		return domain.BatchResult{}, err
	}

	now := s.now()
	sub, _, proj, err := s.project(ctx, subscriptionID, now)
	if err != nil {
		return domain.BatchResult{}, err
	}

	if !caller.IsPartyTo(sub) {
		return domain.BatchResult{}, fmt.Errorf("update day status %s: %w", subscriptionID, domain.ErrNotSubscriptionParty)
	}

	day, ok := BuildTimeline(proj, now).Day(date)
	if !ok {
		return domain.BatchResult{}, fmt.Errorf("update day status %s/%s: %w", subscriptionID, date, domain.ErrDayNotFound)
	}

	res, err := PlanDayUpdate(subscriptionID, day, target, caller.Role)
	if err != nil {
		return res, err
	}

	for i, o := range res.Outcomes {
		if o.Outcome != domain.OutcomeApplied {
			continue
		}
		res.Outcomes[i] = s.commitOutcome(ctx, o, target)
	}

	s.invalidate(ctx, subscriptionID)

	if res.Applied() == 0 {
		return res, &domain.NoApplicableSlotsError{
			SubscriptionID: subscriptionID,
			Date:           date,
			Target:         target,
			Outcomes:       res.Outcomes,
		}
	}

	for _, o := range res.Outcomes {
		if o.Outcome == domain.OutcomeApplied && closesWorkload(o.From, o.To) {
			s.checkDailyWorkload(ctx, sub, date)
			break
		}
	}

	s.logger().Info("day status updated",
		"subscription_id", subscriptionID, "date", date, "target", target,
		"applied", res.Applied(), "total", len(res.Outcomes), "role", caller.Role)

	return res, nil
}

// commitOutcome persists one planned outcome, re-planning on lost races.
func (s *TimelineService) commitOutcome(ctx context.Context, o domain.SlotOutcome, target domain.Status) domain.SlotOutcome {
	for attempt := 1; ; attempt++ {
		now := s.now()
		_, slot, st, err := s.loadSlot(ctx, o.Key, now)
		if err != nil {
			o.Outcome = domain.OutcomeRejected
			o.To = o.From
			o.Reason = err.Error()
			return o
		}

		o = PlanSlotUpdate(slot, target)
		if o.Outcome != domain.OutcomeApplied {
			return o
		}

		expected := st.Status
		st.Key = o.Key
		st.Status = o.To
		st.UpdatedAt = now
		err = s.Store.CompareAndSetStatus(ctx, expected, st)
		if err == nil {
			return o
		}
		if !errors.Is(err, domain.ErrConflict) || attempt >= maxCommitAttempts {
			s.logger().Error("commit day outcome failed", "slot", o.Key.String(), "error", err)
			o.Outcome = domain.OutcomeRejected
			o.To = o.From
			o.Reason = "could not save status"
			return o
		}
	}
}

// closesWorkload reports whether a move from one status to another can be the
// last step of a chef's day: a meal reaching ready, or a still-pending meal
// leaving the day through a side-state.
func closesWorkload(from, to domain.Status) bool {
	if to == domain.StatusReady {
		return true
	}
	return to.IsSideState() && !from.IsSideState() && !from.AtLeast(domain.StatusReady)
}

// checkDailyWorkload reports whether every active meal the subscription's chef
// owns on date has reached ready or beyond, and publishes the completion event.
// Side-state meals are not counted. Callers only invoke it right after a move
// that closesWorkload accepts, so a true result is the false-to-true edge.
func (s *TimelineService) checkDailyWorkload(ctx context.Context, sub *domain.Subscription, date string) bool {
	if sub == nil {
		return false
	}

	subs := []*domain.Subscription{sub}
	if sub.ChefID != "" {
		chefSubs, err := s.Subs.ListSubscriptionsByChef(ctx, sub.ChefID)
		if err != nil {
			s.logger().Warn("list chef subscriptions failed", "chef_id", sub.ChefID, "error", err)
			return false
		}
		if len(chefSubs) > 0 {
			subs = chefSubs
		}
	}

	now := s.now()
	meals := 0
	for _, cs := range subs {
		states, err := s.Store.ListSlotStates(ctx, cs.ID)
		if err != nil {
			s.logger().Warn("list slot states failed", "subscription_id", cs.ID, "error", err)
			return false
		}
		for _, slot := range ProjectSchedule(cs, states, now).Slots {
			if slot.Key.Date != date || slot.Status.IsSideState() {
				continue
			}
			meals++
			if !slot.Status.AtLeast(domain.StatusReady) {
				return false
			}
		}
	}

	if meals == 0 {
		return false
	}

	if s.Events != nil && sub.ChefID != "" {
		evt := ports.DailyWorkloadCompleted{
			EventID:     uuid.NewString(),
			ChefID:      sub.ChefID,
			Date:        date,
			MealCount:   meals,
			CompletedAt: now,
		}
		if err := s.Events.PublishDailyWorkloadCompleted(ctx, evt); err != nil {
			s.logger().Warn("publish daily workload completed failed", "chef_id", sub.ChefID, "date", date, "error", err)
		}
	}

	return true
}

// Sync pulls upstream signals for a subscription and persists every slot whose
// canonical status or raw delivery fields changed.
func (s *TimelineService) Sync(ctx context.Context, subscriptionID string) (_ SyncResult, err error) {
	defer obs.Time(ctx, "timeline.Sync")(&err)

	res := SyncResult{SubscriptionID: subscriptionID}
	if s.Upstream == nil {
		return res, nil
	}

	signals, err := s.Upstream.FetchSignals(ctx, subscriptionID)
	if err != nil {
		return res, fmt.Errorf("sync %q: fetch upstream signals: %w", subscriptionID, err)
	}

	now := s.now()
	_, states, proj, err := s.project(ctx, subscriptionID, now)
	if err != nil {
		return res, fmt.Errorf("sync %q: %w", subscriptionID, err)
	}

	rec := Reconcile(proj.Slots, signals, states, now)
	for _, w := range rec.Warnings {
		s.logger().Warn("upstream status not recognized, treated as scheduled", "subscription_id", subscriptionID, "error", w)
	}
	res.Warnings = len(rec.Warnings)

	merged := Merge(proj.Slots, rec.Slots)

	before := make(map[domain.SlotKey]domain.MealSlot, len(proj.Slots))
	for _, sl := range proj.Slots {
		before[sl.Key] = sl
	}
	sigByKey := make(map[domain.SlotKey]ports.SlotSignals, len(signals))
	for _, sg := range signals {
		sigByKey[sg.Key] = sg
	}

	for _, sl := range merged.Slots {
		prev, ok := before[sl.Key]
		if !ok {
			continue
		}
		sig := sigByKey[sl.Key]
		st := states[sl.Key]
		live := !liveFieldsEqual(prev, sl)
		// Raw values are recorded even when the canonical status holds so a
		// reset signal is applied once and not on every later pass.
		if !live && !rawSignalsChanged(st, sig) {
			continue
		}
		expected := st.Status
		st.Key = sl.Key
		st.Status = sl.Status
		st.DeliveryStatus = sl.DeliveryStatus
		st.OrderID = sl.OrderID
		st.UpdatedAt = now
		if sig.OrderStatus != "" {
			st.OrderStatus = sig.OrderStatus
		}
		if sig.DelegationStatus != "" {
			st.DelegationStatus = sig.DelegationStatus
		}
		if err := s.Store.CompareAndSetStatus(ctx, expected, st); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				s.logger().Info("slot changed during sync, left for next pass", "slot", sl.Key.String())
				continue
			}
			return res, fmt.Errorf("sync %q: persist %s: %w", subscriptionID, sl.Key, err)
		}
		if live {
			res.Replaced++
		}
	}

	if res.Replaced > 0 {
		s.invalidate(ctx, subscriptionID)
	}
	return res, nil
}

func rawSignalsChanged(st domain.SlotState, sig ports.SlotSignals) bool {
	return (sig.OrderStatus != "" && sig.OrderStatus != st.OrderStatus) ||
		(sig.DelegationStatus != "" && sig.DelegationStatus != st.DelegationStatus)
}

func (s *TimelineService) invalidate(ctx context.Context, subscriptionID string) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Invalidate(ctx, subscriptionID); err != nil {
		s.logger().Warn("timeline cache invalidate failed", "subscription_id", subscriptionID, "error", err)
	}
}
