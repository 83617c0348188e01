package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Endgame-Tech/choma-sub014/internal/domain"
	"github.com/Endgame-Tech/choma-sub014/internal/ports"
)

type memSubs struct {
	subs map[string]*domain.Subscription
}

func (m *memSubs) GetSubscription(_ context.Context, id string) (*domain.Subscription, error) {
	s, ok := m.subs[id]
	if !ok {
		return nil, domain.ErrSubscriptionNotFound
	}
	return s, nil
}

func (m *memSubs) ListActiveSubscriptions(_ context.Context) ([]*domain.Subscription, error) {
	out := make([]*domain.Subscription, 0, len(m.subs))
	for _, s := range m.subs {
		out = append(out, s)
	}
	return out, nil
}

func (m *memSubs) ListSubscriptionsByChef(_ context.Context, chefID string) ([]*domain.Subscription, error) {
	out := make([]*domain.Subscription, 0)
	for _, s := range m.subs {
		if s.ChefID == chefID {
			out = append(out, s)
		}
	}
	return out, nil
}

type memStore struct {
	mu     sync.Mutex
	states map[domain.SlotKey]domain.SlotState
	writes int

	// race runs once before the next compare-and-set, simulating another writer.
	race func(states map[domain.SlotKey]domain.SlotState)
}

func newMemStore() *memStore {
	return &memStore{states: make(map[domain.SlotKey]domain.SlotState)}
}

func (m *memStore) ListSlotStates(_ context.Context, subscriptionID string) (map[domain.SlotKey]domain.SlotState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[domain.SlotKey]domain.SlotState)
	for k, v := range m.states {
		if k.SubscriptionID == subscriptionID {
			out[k] = v
		}
	}
	return out, nil
}

func (m *memStore) CompareAndSetStatus(_ context.Context, expected domain.Status, next domain.SlotState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.race != nil {
		race := m.race
		m.race = nil
		race(m.states)
	}

	if m.states[next.Key].Status != expected {
		return domain.ErrConflict
	}
	m.states[next.Key] = next
	m.writes++
	return nil
}

type recordingPublisher struct {
	events []ports.DailyWorkloadCompleted
}

func (r *recordingPublisher) PublishDailyWorkloadCompleted(_ context.Context, evt ports.DailyWorkloadCompleted) error {
	r.events = append(r.events, evt)
	return nil
}

type stubAssigner struct {
	calls []string
}

func (s *stubAssigner) RequestAssignment(_ context.Context, orderID string) (*ports.DriverAssignment, error) {
	s.calls = append(s.calls, orderID)
	return &ports.DriverAssignment{OrderID: orderID, DriverID: "drv-1"}, nil
}

type stubUpstream struct {
	signals []ports.SlotSignals
}

func (s *stubUpstream) FetchSignals(_ context.Context, _ string) ([]ports.SlotSignals, error) {
	return s.signals, nil
}

type mapCache struct {
	entries map[string]*domain.Timeline
	hits    int
}

func (c *mapCache) Get(_ context.Context, key string) (*domain.Timeline, bool, error) {
	t, ok := c.entries[key]
	if ok {
		c.hits++
	}
	return t, ok, nil
}

func (c *mapCache) Put(_ context.Context, key string, t *domain.Timeline) error {
	c.entries[key] = t
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, _ string) error {
	clear(c.entries)
	return nil
}

var testNow = time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)

func testSubscription(id, chefID string) *domain.Subscription {
	start := day(2026, 3, 2)
	return &domain.Subscription{
		ID:        id,
		ChefID:    chefID,
		Status:    domain.SubscriptionActive,
		StartDate: &start,
		Snapshot: &domain.MealPlanSnapshot{
			MealSchedule: []domain.MealSlotDefinition{
				{WeekNumber: 1, DayOfWeek: 1, MealTime: domain.MealBreakfast, CustomTitle: "Akara"},
				{WeekNumber: 1, DayOfWeek: 1, MealTime: domain.MealLunch, CustomTitle: "Jollof"},
				{WeekNumber: 1, DayOfWeek: 2, MealTime: domain.MealLunch, CustomTitle: "Ofada"},
			},
		},
	}
}

func newTestService(subs ...*domain.Subscription) (*TimelineService, *memStore) {
	repo := &memSubs{subs: make(map[string]*domain.Subscription)}
	for _, s := range subs {
		repo.subs[s.ID] = s
	}
	store := newMemStore()
	svc := &TimelineService{
		Subs:   repo,
		Store:  store,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:    func() time.Time { return testNow },
	}
	return svc, store
}

var chef = domain.Caller{Subject: "chef-1", Role: domain.RoleChef}

func TestUpdateSlotStatusPersistsForwardMove(t *testing.T) {
	svc, store := newTestService(testSubscription("sub-1", "chef-1"))
	ctx := context.Background()

	res, err := svc.UpdateSlotStatus(ctx, chef, UpdateSlotRequest{
		SubscriptionID: "sub-1",
		Date:           "2026-03-02",
		MealTime:       "Lunch",
		Target:         "PREPARING",
		Notes:          "started early",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.AppliedStatus != domain.StatusPreparing {
		t.Fatalf("applied = %q, want %q", res.AppliedStatus, domain.StatusPreparing)
	}
	if res.DailyWorkloadCompleted != nil {
		t.Fatalf("workload flag only reported for ready")
	}

	key := domain.SlotKey{SubscriptionID: "sub-1", Date: "2026-03-02", MealTime: domain.MealLunch}
	st := store.states[key]
	if st.Status != domain.StatusPreparing || st.Notes != "started early" {
		t.Fatalf("stored state: %+v", st)
	}
}

func TestUpdatesRejectCallerOutsideSubscription(t *testing.T) {
	svc, store := newTestService(testSubscription("sub-1", "chef-1"))
	other := domain.Caller{Subject: "chef-2", Role: domain.RoleChef}
	ctx := context.Background()

	_, err := svc.UpdateSlotStatus(ctx, other, UpdateSlotRequest{
		SubscriptionID: "sub-1",
		Date:           "2026-03-02",
		MealTime:       domain.MealLunch,
		Target:         "preparing",
	})
	if !errors.Is(err, domain.ErrNotSubscriptionParty) {
		t.Fatalf("slot update err = %v, want ErrNotSubscriptionParty", err)
	}

	_, err = svc.UpdateDayStatus(ctx, other, "sub-1", "2026-03-02", "preparing")
	if !errors.Is(err, domain.ErrNotSubscriptionParty) {
		t.Fatalf("day update err = %v, want ErrNotSubscriptionParty", err)
	}
	if store.writes != 0 {
		t.Fatalf("writes = %d, want 0", store.writes)
	}
}

func TestAuthorize(t *testing.T) {
	sub := testSubscription("sub-1", "chef-1")
	sub.CustomerID = "cus-1"
	svc, _ := newTestService(sub)
	ctx := context.Background()

	if err := svc.Authorize(ctx, domain.Caller{Subject: "cus-1", Role: domain.RoleCustomer}, "sub-1"); err != nil {
		t.Fatalf("owner: unexpected error: %v", err)
	}
	err := svc.Authorize(ctx, domain.Caller{Subject: "cus-2", Role: domain.RoleCustomer}, "sub-1")
	if !errors.Is(err, domain.ErrNotSubscriptionParty) {
		t.Fatalf("stranger: err = %v, want ErrNotSubscriptionParty", err)
	}
	err = svc.Authorize(ctx, chef, "sub-404")
	if !errors.Is(err, domain.ErrSubscriptionNotFound) {
		t.Fatalf("missing: err = %v, want ErrSubscriptionNotFound", err)
	}
}

func TestUpdateSlotStatusRejectsRegression(t *testing.T) {
	svc, store := newTestService(testSubscription("sub-1", "chef-1"))
	key := domain.SlotKey{SubscriptionID: "sub-1", Date: "2026-03-02", MealTime: domain.MealLunch}
	store.states[key] = domain.SlotState{Key: key, Status: domain.StatusReady}

	_, err := svc.UpdateSlotStatus(context.Background(), chef, UpdateSlotRequest{
		SubscriptionID: "sub-1",
		Date:           "2026-03-02",
		MealTime:       domain.MealLunch,
		Target:         "preparing",
	})

	var regErr *domain.RegressionError
	if !errors.As(err, &regErr) {
		t.Fatalf("expected RegressionError, got %v", err)
	}
	if store.states[key].Status != domain.StatusReady {
		t.Fatalf("status changed to %q", store.states[key].Status)
	}
}

func TestUpdateSlotStatusValidatesInput(t *testing.T) {
	svc, _ := newTestService(testSubscription("sub-1", "chef-1"))
	ctx := context.Background()

	_, err := svc.UpdateSlotStatus(ctx, chef, UpdateSlotRequest{SubscriptionID: "sub-1", MealTime: domain.MealLunch, Target: "ready"})
	var missing *domain.MissingScheduleDateError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingScheduleDateError, got %v", err)
	}

	_, err = svc.UpdateSlotStatus(ctx, chef, UpdateSlotRequest{SubscriptionID: "sub-1", Date: "2026-03-02", MealTime: domain.MealLunch, Target: "plated"})
	var unk *domain.UnknownStatusError
	if !errors.As(err, &unk) {
		t.Fatalf("expected UnknownStatusError, got %v", err)
	}

	_, err = svc.UpdateSlotStatus(ctx, chef, UpdateSlotRequest{SubscriptionID: "sub-1", Date: "2026-03-02", MealTime: domain.MealLunch, Target: "delivered"})
	var forbidden *domain.ForbiddenTargetError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenTargetError, got %v", err)
	}

	_, err = svc.UpdateSlotStatus(ctx, chef, UpdateSlotRequest{SubscriptionID: "sub-1", Date: "2026-03-05", MealTime: domain.MealLunch, Target: "ready"})
	if !errors.Is(err, domain.ErrSlotNotFound) {
		t.Fatalf("expected ErrSlotNotFound, got %v", err)
	}

	_, err = svc.UpdateSlotStatus(ctx, chef, UpdateSlotRequest{SubscriptionID: "nope", Date: "2026-03-02", MealTime: domain.MealLunch, Target: "ready"})
	if !errors.Is(err, domain.ErrSubscriptionNotFound) {
		t.Fatalf("expected ErrSubscriptionNotFound, got %v", err)
	}
}

func TestUpdateSlotStatusRetriesAfterConflict(t *testing.T) {
	svc, store := newTestService(testSubscription("sub-1", "chef-1"))
	key := domain.SlotKey{SubscriptionID: "sub-1", Date: "2026-03-02", MealTime: domain.MealLunch}

	store.race = func(states map[domain.SlotKey]domain.SlotState) {
		states[key] = domain.SlotState{Key: key, Status: domain.StatusChefAssigned}
	}

	res, err := svc.UpdateSlotStatus(context.Background(), chef, UpdateSlotRequest{
		SubscriptionID: "sub-1",
		Date:           "2026-03-02",
		MealTime:       domain.MealLunch,
		Target:         "preparing",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.AppliedStatus != domain.StatusPreparing || store.states[key].Status != domain.StatusPreparing {
		t.Fatalf("applied = %q, stored = %q", res.AppliedStatus, store.states[key].Status)
	}
}

func TestUpdateSlotStatusLosesRaceToHigherStatus(t *testing.T) {
	svc, store := newTestService(testSubscription("sub-1", "chef-1"))
	key := domain.SlotKey{SubscriptionID: "sub-1", Date: "2026-03-02", MealTime: domain.MealLunch}

	store.race = func(states map[domain.SlotKey]domain.SlotState) {
		states[key] = domain.SlotState{Key: key, Status: domain.StatusReady}
	}

	_, err := svc.UpdateSlotStatus(context.Background(), chef, UpdateSlotRequest{
		SubscriptionID: "sub-1",
		Date:           "2026-03-02",
		MealTime:       domain.MealLunch,
		Target:         "preparing",
	})

	var regErr *domain.RegressionError
	if !errors.As(err, &regErr) {
		t.Fatalf("expected RegressionError, got %v", err)
	}
	if store.states[key].Status != domain.StatusReady {
		t.Fatalf("stored = %q, want ready", store.states[key].Status)
	}
}

func TestUpdateSlotStatusReadyCompletesChefWorkload(t *testing.T) {
	svc, store := newTestService(
		testSubscription("sub-1", "chef-1"),
		testSubscription("sub-2", "chef-1"),
	)
	pub := &recordingPublisher{}
	drivers := &stubAssigner{}
	svc.Events = pub
	svc.Drivers = drivers

	for _, id := range []string{"sub-1", "sub-2"} {
		for _, meal := range []domain.MealTime{domain.MealBreakfast, domain.MealLunch} {
			k := domain.SlotKey{SubscriptionID: id, Date: "2026-03-02", MealTime: meal}
			store.states[k] = domain.SlotState{Key: k, Status: domain.StatusReady}
		}
	}
	last := domain.SlotKey{SubscriptionID: "sub-2", Date: "2026-03-02", MealTime: domain.MealLunch}
	store.states[last] = domain.SlotState{Key: last, Status: domain.StatusPreparing, OrderID: "ord-42"}

	res, err := svc.UpdateSlotStatus(context.Background(), chef, UpdateSlotRequest{
		SubscriptionID: "sub-2",
		Date:           "2026-03-02",
		MealTime:       domain.MealLunch,
		Target:         "ready",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.DailyWorkloadCompleted == nil || !*res.DailyWorkloadCompleted {
		t.Fatalf("expected dailyWorkloadCompleted=true")
	}
	if len(pub.events) != 1 {
		t.Fatalf("events = %d, want 1", len(pub.events))
	}
	if evt := pub.events[0]; evt.ChefID != "chef-1" || evt.Date != "2026-03-02" || evt.MealCount != 4 {
		t.Fatalf("unexpected event: %+v", evt)
	}

	if len(drivers.calls) != 1 || drivers.calls[0] != "ord-42" {
		t.Fatalf("driver calls = %v", drivers.calls)
	}
	if res.DriverAssignment == nil || res.DriverAssignment.DriverID != "drv-1" {
		t.Fatalf("driver assignment = %+v", res.DriverAssignment)
	}
	if store.states[last].OrderID != "ord-42" {
		t.Fatalf("order id lost on write")
	}
}

func TestCancellingLastPendingMealCompletesChefWorkload(t *testing.T) {
	svc, store := newTestService(testSubscription("sub-1", "chef-1"))
	pub := &recordingPublisher{}
	svc.Events = pub

	breakfast := domain.SlotKey{SubscriptionID: "sub-1", Date: "2026-03-02", MealTime: domain.MealBreakfast}
	lunch := domain.SlotKey{SubscriptionID: "sub-1", Date: "2026-03-02", MealTime: domain.MealLunch}
	store.states[breakfast] = domain.SlotState{Key: breakfast, Status: domain.StatusReady}
	store.states[lunch] = domain.SlotState{Key: lunch, Status: domain.StatusPreparing}

	res, err := svc.UpdateSlotStatus(context.Background(), chef, UpdateSlotRequest{
		SubscriptionID: "sub-1",
		Date:           "2026-03-02",
		MealTime:       domain.MealLunch,
		Target:         "cancelled",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.DailyWorkloadCompleted == nil || !*res.DailyWorkloadCompleted {
		t.Fatalf("expected dailyWorkloadCompleted=true")
	}
	if len(pub.events) != 1 {
		t.Fatalf("events = %d, want 1", len(pub.events))
	}
	if got := pub.events[0].MealCount; got != 1 {
		t.Fatalf("meal count = %d, want 1", got)
	}
}

func TestCancellingReadyMealDoesNotRepeatWorkloadEvent(t *testing.T) {
	svc, store := newTestService(testSubscription("sub-1", "chef-1"))
	pub := &recordingPublisher{}
	svc.Events = pub

	for _, meal := range []domain.MealTime{domain.MealBreakfast, domain.MealLunch} {
		k := domain.SlotKey{SubscriptionID: "sub-1", Date: "2026-03-02", MealTime: meal}
		store.states[k] = domain.SlotState{Key: k, Status: domain.StatusReady}
	}

	res, err := svc.UpdateSlotStatus(context.Background(), chef, UpdateSlotRequest{
		SubscriptionID: "sub-1",
		Date:           "2026-03-02",
		MealTime:       domain.MealLunch,
		Target:         "skipped",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.DailyWorkloadCompleted != nil {
		t.Fatalf("workload already complete before the move")
	}
	if len(pub.events) != 0 {
		t.Fatalf("events = %d, want 0", len(pub.events))
	}
}

func TestCancellingWholeDayPublishesNothing(t *testing.T) {
	svc, _ := newTestService(testSubscription("sub-1", "chef-1"))
	pub := &recordingPublisher{}
	svc.Events = pub

	admin := domain.Caller{Subject: "ops", Role: domain.RoleAdmin}
	if _, err := svc.UpdateDayStatus(context.Background(), admin, "sub-1", "2026-03-02", "cancelled"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.events) != 0 {
		t.Fatalf("events = %d, want 0", len(pub.events))
	}
}

func TestUpdateSlotStatusReadyWithPendingMeals(t *testing.T) {
	svc, _ := newTestService(testSubscription("sub-1", "chef-1"))
	pub := &recordingPublisher{}
	svc.Events = pub

	res, err := svc.UpdateSlotStatus(context.Background(), chef, UpdateSlotRequest{
		SubscriptionID: "sub-1",
		Date:           "2026-03-02",
		MealTime:       domain.MealLunch,
		Target:         "ready",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.DailyWorkloadCompleted == nil || *res.DailyWorkloadCompleted {
		t.Fatalf("expected dailyWorkloadCompleted=false")
	}
	if len(pub.events) != 0 {
		t.Fatalf("events = %d, want 0", len(pub.events))
	}
}

func TestUpdateDayStatusMixedDayAndIdempotence(t *testing.T) {
	sub := testSubscription("sub-1", "chef-1")
	sub.Snapshot.MealSchedule = append(sub.Snapshot.MealSchedule,
		domain.MealSlotDefinition{WeekNumber: 1, DayOfWeek: 1, MealTime: domain.MealDinner, CustomTitle: "Egusi"})
	svc, store := newTestService(sub)
	ctx := context.Background()

	keys := map[domain.MealTime]domain.SlotKey{}
	for _, m := range []domain.MealTime{domain.MealBreakfast, domain.MealLunch, domain.MealDinner} {
		keys[m] = domain.SlotKey{SubscriptionID: "sub-1", Date: "2026-03-02", MealTime: m}
	}
	store.states[keys[domain.MealBreakfast]] = domain.SlotState{Key: keys[domain.MealBreakfast], Status: domain.StatusPreparing}
	store.states[keys[domain.MealLunch]] = domain.SlotState{Key: keys[domain.MealLunch], Status: domain.StatusReady}
	store.states[keys[domain.MealDinner]] = domain.SlotState{Key: keys[domain.MealDinner], Status: domain.StatusCancelled}

	res, err := svc.UpdateDayStatus(ctx, chef, "sub-1", "2026-03-02", "ready")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Applied() != 1 {
		t.Fatalf("applied = %d, want 1", res.Applied())
	}
	if store.states[keys[domain.MealBreakfast]].Status != domain.StatusReady {
		t.Fatalf("breakfast not committed")
	}
	if store.states[keys[domain.MealDinner]].Status != domain.StatusCancelled {
		t.Fatalf("dinner changed")
	}

	again, err := svc.UpdateDayStatus(ctx, chef, "sub-1", "2026-03-02", "ready")
	var none *domain.NoApplicableSlotsError
	if !errors.As(err, &none) {
		t.Fatalf("expected NoApplicableSlotsError, got %v", err)
	}
	for _, o := range again.Outcomes {
		if o.Outcome != domain.OutcomeSkipped {
			t.Fatalf("second call outcome = %q, want skipped", o.Outcome)
		}
	}
}

func TestUpdateDayStatusUnknownDay(t *testing.T) {
	svc, _ := newTestService(testSubscription("sub-1", "chef-1"))

	_, err := svc.UpdateDayStatus(context.Background(), chef, "sub-1", "2026-04-01", "ready")
	if !errors.Is(err, domain.ErrDayNotFound) {
		t.Fatalf("expected ErrDayNotFound, got %v", err)
	}
}

func TestSyncPersistsChangesOnce(t *testing.T) {
	svc, store := newTestService(testSubscription("sub-1", "chef-1"))
	lunch := domain.SlotKey{SubscriptionID: "sub-1", Date: "2026-03-02", MealTime: domain.MealLunch}
	breakfast := domain.SlotKey{SubscriptionID: "sub-1", Date: "2026-03-02", MealTime: domain.MealBreakfast}

	svc.Upstream = &stubUpstream{signals: []ports.SlotSignals{
		{Key: lunch, DelegationStatus: "cooking", OrderStatus: "confirmed", OrderID: "ord-7"},
		{Key: breakfast, OrderStatus: "wormhole"},
	}}
	ctx := context.Background()

	res, err := svc.Sync(ctx, "sub-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Replaced != 1 || res.Warnings != 1 {
		t.Fatalf("first sync: %+v", res)
	}
	st := store.states[lunch]
	if st.Status != domain.StatusPreparing || st.OrderID != "ord-7" || st.DelegationStatus != "cooking" {
		t.Fatalf("stored state: %+v", st)
	}

	res, err = svc.Sync(ctx, "sub-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Replaced != 0 {
		t.Fatalf("second sync replaced %d, want 0", res.Replaced)
	}
}

func TestSyncDoesNotReapplyHandledReset(t *testing.T) {
	svc, store := newTestService(testSubscription("sub-1", "chef-1"))
	lunch := domain.SlotKey{SubscriptionID: "sub-1", Date: "2026-03-02", MealTime: domain.MealLunch}
	store.states[lunch] = domain.SlotState{Key: lunch, Status: domain.StatusReady}
	svc.Upstream = &stubUpstream{signals: []ports.SlotSignals{
		{Key: lunch, DelegationStatus: "failed"},
	}}
	ctx := context.Background()

	res, err := svc.Sync(ctx, "sub-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Replaced != 1 || store.states[lunch].Status != domain.StatusScheduled {
		t.Fatalf("reset sync: %+v, stored %+v", res, store.states[lunch])
	}

	if _, err := svc.UpdateSlotStatus(ctx, chef, UpdateSlotRequest{
		SubscriptionID: "sub-1", Date: "2026-03-02", MealTime: domain.MealLunch, Target: "preparing",
	}); err != nil {
		t.Fatalf("restart after reset: %v", err)
	}

	res, err = svc.Sync(ctx, "sub-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Replaced != 0 {
		t.Fatalf("replaced = %d, want 0", res.Replaced)
	}
	if got := store.states[lunch].Status; got != domain.StatusPreparing {
		t.Fatalf("status = %q, want %q", got, domain.StatusPreparing)
	}
}

func TestSyncRecordsResetSeenOnScheduledSlot(t *testing.T) {
	svc, store := newTestService(testSubscription("sub-1", "chef-1"))
	lunch := domain.SlotKey{SubscriptionID: "sub-1", Date: "2026-03-02", MealTime: domain.MealLunch}
	svc.Upstream = &stubUpstream{signals: []ports.SlotSignals{
		{Key: lunch, DelegationStatus: "failed"},
	}}
	ctx := context.Background()

	if _, err := svc.Sync(ctx, "sub-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := store.states[lunch].DelegationStatus; got != "failed" {
		t.Fatalf("delegation status = %q, want %q", got, "failed")
	}

	if _, err := svc.UpdateSlotStatus(ctx, chef, UpdateSlotRequest{
		SubscriptionID: "sub-1", Date: "2026-03-02", MealTime: domain.MealLunch, Target: "preparing",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Sync(ctx, "sub-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := store.states[lunch].Status; got != domain.StatusPreparing {
		t.Fatalf("status = %q, want %q", got, domain.StatusPreparing)
	}
}

func TestTimelineUsesCacheUntilWrite(t *testing.T) {
	svc, _ := newTestService(testSubscription("sub-1", "chef-1"))
	cache := &mapCache{entries: make(map[string]*domain.Timeline)}
	svc.Cache = cache
	ctx := context.Background()

	first, err := svc.Timeline(ctx, "sub-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first.Days) != 2 {
		t.Fatalf("days = %d, want 2", len(first.Days))
	}

	if _, err := svc.Timeline(ctx, "sub-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cache.hits != 1 {
		t.Fatalf("cache hits = %d, want 1", cache.hits)
	}

	if _, err := svc.UpdateSlotStatus(ctx, chef, UpdateSlotRequest{
		SubscriptionID: "sub-1", Date: "2026-03-02", MealTime: domain.MealLunch, Target: "chef_assigned",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cache.entries) != 0 {
		t.Fatalf("cache not invalidated")
	}

	tl, err := svc.Timeline(ctx, "sub-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lunch, _ := tl.Day("2026-03-02")
	if lunch.MealSlots[1].Status != domain.StatusChefAssigned {
		t.Fatalf("lunch status = %q", lunch.MealSlots[1].Status)
	}
}

func TestFilterLookahead(t *testing.T) {
	svc, _ := newTestService(testSubscription("sub-1", "chef-1"))

	tl, err := svc.Timeline(context.Background(), "sub-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := FilterLookahead(tl, testNow, 0); len(got.Days) != 2 {
		t.Fatalf("unbounded days = %d, want 2", len(got.Days))
	}

	filtered := FilterLookahead(tl, testNow, 1)
	if len(filtered.Days) != 2 {
		t.Fatalf("1-day lookahead days = %d, want 2", len(filtered.Days))
	}

	start := testNow.AddDate(0, 0, -1)
	filtered = FilterLookahead(tl, start, 1)
	if len(filtered.Days) != 1 {
		t.Fatalf("lookahead from yesterday days = %d, want 1", len(filtered.Days))
	}
	if len(tl.Days) != 2 {
		t.Fatalf("source timeline modified")
	}
}
