package services

import (
	"strings"
	"time"

	"github.com/Endgame-Tech/choma-sub014/internal/domain"
	"github.com/Endgame-Tech/choma-sub014/internal/ports"
)

// Upstream writer that produced a raw status value.
type UpstreamSource string

const (
	SourceNone       UpstreamSource = ""
	SourceDelegation UpstreamSource = "delegation"
	SourceOrder      UpstreamSource = "order"
	SourceDelivery   UpstreamSource = "delivery"
)

// UpstreamStatus is one raw value tagged with the writer that produced it.
type UpstreamStatus struct {
	Source UpstreamSource
	Value  string
}

// Mapping is the canonical reading of a slot's upstream signals.
// Reset marks an explicit reset-for-retry that may move a slot backwards.
type Mapping struct {
	Status domain.Status
	From   UpstreamStatus
	Reset  bool
}

type tableEntry struct {
	status domain.Status
	reset  bool
}

// Static lookup tables, one per source.
var (
	delegationTable = map[string]tableEntry{
		"pending":          {status: domain.StatusScheduled},
		"scheduled":        {status: domain.StatusScheduled},
		"assigned":         {status: domain.StatusChefAssigned},
		"accepted":         {status: domain.StatusChefAssigned},
		"chef_assigned":    {status: domain.StatusChefAssigned},
		"in_progress":      {status: domain.StatusPreparing},
		"preparing":        {status: domain.StatusPreparing},
		"cooking":          {status: domain.StatusPreparing},
		"ready":            {status: domain.StatusReady},
		"ready_for_pickup": {status: domain.StatusReady},
		"completed":        {status: domain.StatusReady},
		"cancelled":        {status: domain.StatusCancelled},
		"canceled":         {status: domain.StatusCancelled},
		"rejected":         {status: domain.StatusScheduled, reset: true},
		"failed":           {status: domain.StatusScheduled, reset: true},
	}

	orderTable = map[string]tableEntry{
		"pending":          {status: domain.StatusScheduled},
		"placed":           {status: domain.StatusScheduled},
		"confirmed":        {status: domain.StatusScheduled},
		"scheduled":        {status: domain.StatusScheduled},
		"assigned":         {status: domain.StatusChefAssigned},
		"chef_assigned":    {status: domain.StatusChefAssigned},
		"in_progress":      {status: domain.StatusPreparing},
		"preparing":        {status: domain.StatusPreparing},
		"ready":            {status: domain.StatusReady},
		"ready_for_pickup": {status: domain.StatusReady},
		"picked_up":        {status: domain.StatusOutForDelivery},
		"out_for_delivery": {status: domain.StatusOutForDelivery},
		"in_transit":       {status: domain.StatusOutForDelivery},
		"delivered":        {status: domain.StatusDelivered},
		"completed":        {status: domain.StatusDelivered},
		"cancelled":        {status: domain.StatusCancelled},
		"canceled":         {status: domain.StatusCancelled},
		"skipped":          {status: domain.StatusSkipped},
		"failed":           {status: domain.StatusScheduled, reset: true},
	}

	deliveryTable = map[string]tableEntry{
		"pending":          {status: domain.StatusScheduled},
		"scheduled":        {status: domain.StatusScheduled},
		"ready_for_pickup": {status: domain.StatusReady},
		"picked_up":        {status: domain.StatusOutForDelivery},
		"out_for_delivery": {status: domain.StatusOutForDelivery},
		"in_transit":       {status: domain.StatusOutForDelivery},
		"en_route":         {status: domain.StatusOutForDelivery},
		"delivered":        {status: domain.StatusDelivered},
		"cancelled":        {status: domain.StatusCancelled},
		"canceled":         {status: domain.StatusCancelled},
		"skipped":          {status: domain.StatusSkipped},
		"failed":           {status: domain.StatusScheduled, reset: true},
	}
)

func tableFor(src UpstreamSource) map[string]tableEntry {
	switch src {
	case SourceDelegation:
		return delegationTable
	case SourceOrder:
		return orderTable
	case SourceDelivery:
		return deliveryTable
	default:
		return nil
	}
}

// Precedence picks the upstream value that decides the slot's status:
// delegation, then order, then delivery.
func Precedence(sig ports.SlotSignals) UpstreamStatus {
	candidates := []UpstreamStatus{
		{Source: SourceDelegation, Value: sig.DelegationStatus},
		{Source: SourceOrder, Value: sig.OrderStatus},
		{Source: SourceDelivery, Value: sig.DeliveryStatus},
	}
	for _, c := range candidates {
		if strings.TrimSpace(c.Value) != "" {
			return c
		}
	}
	return UpstreamStatus{Source: SourceNone}
}

// Normalize maps a slot's upstream signals onto exactly one canonical status.
//
// Unknown values map to scheduled and return an *domain.UnknownStatusError
// alongside the mapping; callers log it and carry on.
func Normalize(sig ports.SlotSignals) (Mapping, error) {
	up := Precedence(sig)
	if up.Source == SourceNone {
		return Mapping{Status: domain.StatusScheduled, From: up}, nil
	}

	entry, ok := tableFor(up.Source)[canonicalToken(up.Value)]
	if !ok {
		return Mapping{Status: domain.StatusScheduled, From: up},
			&domain.UnknownStatusError{Source: string(up.Source), Value: up.Value}
	}
	return Mapping{Status: entry.status, From: up, Reset: entry.reset}, nil
}

func canonicalToken(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", "_")
	return strings.Join(strings.Fields(s), "_")
}

// SlotChange records a canonical status change produced by reconciliation.
type SlotChange struct {
	Key   domain.SlotKey
	From  domain.Status
	To    domain.Status
	Reset bool
}

type ReconcileResult struct {
	Slots    []domain.MealSlot
	Changes  []SlotChange
	Warnings []error
}

// Reconcile applies upstream signals to projected slots.
//
// A stale upstream value never regresses a slot: non-reset mappings are only
// taken when the state machine allows them. Explicit resets move non-terminal
// slots back to scheduled, but only on the pass where the raw value first
// differs from what seen recorded for that source. A reset that was already
// applied does not fire again. The input slice is not modified.
func Reconcile(slots []domain.MealSlot, signals []ports.SlotSignals, seen map[domain.SlotKey]domain.SlotState, now time.Time) ReconcileResult {
	byKey := make(map[domain.SlotKey]ports.SlotSignals, len(signals))
	for _, s := range signals {
		byKey[s.Key] = s
	}

	today := midnight(now, now.Location())
	res := ReconcileResult{Slots: make([]domain.MealSlot, 0, len(slots))}

	for _, slot := range slots {
		sig, ok := byKey[slot.Key]
		if !ok {
			res.Slots = append(res.Slots, slot)
			continue
		}

		next := slot
		if sig.DeliveryStatus != "" {
			next.DeliveryStatus = sig.DeliveryStatus
		}
		if sig.OrderID != "" {
			next.OrderID = sig.OrderID
		}

		m, err := Normalize(sig)
		if err != nil {
			res.Warnings = append(res.Warnings, err)
		}

		switch {
		case m.From.Source == SourceNone, err != nil:
		case m.Reset:
			if alreadySeen(seen[slot.Key], m.From) {
				break
			}
			if !slot.Status.IsTerminal() && slot.Status != m.Status {
				next.Status = m.Status
			}
		case CanTransition(slot.Status, m.Status):
			next.Status = m.Status
		}

		if next.Status != slot.Status {
			res.Changes = append(res.Changes, SlotChange{
				Key:   slot.Key,
				From:  slot.Status,
				To:    next.Status,
				Reset: m.Reset,
			})
		}

		next.DayType = ClassifyDay(next, today)
		res.Slots = append(res.Slots, next)
	}

	return res
}

// alreadySeen reports whether up is the raw value last recorded for its source.
func alreadySeen(st domain.SlotState, up UpstreamStatus) bool {
	var last string
	switch up.Source {
	case SourceDelegation:
		last = st.DelegationStatus
	case SourceOrder:
		last = st.OrderStatus
	case SourceDelivery:
		last = st.DeliveryStatus
	default:
		return false
	}
	return last != "" && canonicalToken(last) == canonicalToken(up.Value)
}

// MergeResult describes a differential merge of a fresh slot set into a held one.
type MergeResult struct {
	Slots    []domain.MealSlot
	Replaced []domain.SlotKey
	Added    []domain.SlotKey
	Removed  []domain.SlotKey
}

// Changed reports whether the merge touched any record.
func (m MergeResult) Changed() bool {
	return len(m.Replaced) > 0 || len(m.Added) > 0 || len(m.Removed) > 0
}

// Merge performs the silent update: held records whose live fields are
// unchanged are kept as they are, only changed records are replaced.
// The result follows fresh's order.
func Merge(held, fresh []domain.MealSlot) MergeResult {
	prev := make(map[domain.SlotKey]domain.MealSlot, len(held))
	for _, s := range held {
		prev[s.Key] = s
	}

	res := MergeResult{Slots: make([]domain.MealSlot, 0, len(fresh))}
	seen := make(map[domain.SlotKey]struct{}, len(fresh))

	for _, f := range fresh {
		seen[f.Key] = struct{}{}
		h, ok := prev[f.Key]
		switch {
		case !ok:
			res.Added = append(res.Added, f.Key)
			res.Slots = append(res.Slots, f)
		case liveFieldsEqual(h, f):
			res.Slots = append(res.Slots, h)
		default:
			res.Replaced = append(res.Replaced, f.Key)
			res.Slots = append(res.Slots, f)
		}
	}

	for _, h := range held {
		if _, ok := seen[h.Key]; !ok {
			res.Removed = append(res.Removed, h.Key)
		}
	}

	return res
}

func liveFieldsEqual(a, b domain.MealSlot) bool {
	return a.Status == b.Status &&
		a.DeliveryStatus == b.DeliveryStatus &&
		a.OrderID == b.OrderID &&
		a.DayType == b.DayType
}
