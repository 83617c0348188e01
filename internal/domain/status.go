package domain

import "strings"

// Canonical fulfillment status of a single meal slot.
type Status string

const (
	StatusScheduled      Status = "scheduled"
	StatusChefAssigned   Status = "chef_assigned"
	StatusPreparing      Status = "preparing"
	StatusReady          Status = "ready"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
	StatusSkipped        Status = "skipped"
)

// forwardOrder lists the non-absorbing lifecycle in strict order.
var forwardOrder = []Status{
	StatusScheduled,
	StatusChefAssigned,
	StatusPreparing,
	StatusReady,
	StatusOutForDelivery,
	StatusDelivered,
}

// AllStatuses returns every canonical status in wire order.
func AllStatuses() []Status {
	out := make([]Status, 0, len(forwardOrder)+2)
	out = append(out, forwardOrder...)
	return append(out, StatusCancelled, StatusSkipped)
}

// ParseStatus converts a wire string into a canonical Status.
// Matching is case-insensitive and tolerates surrounding whitespace.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", &UnknownStatusError{Value: raw}
	}
	return s, nil
}

// Valid reports whether s is one of the canonical values.
func (s Status) Valid() bool {
	if s.IsSideState() {
		return true
	}
	return s.Index() >= 0
}

// Index returns the position of s in the forward order, or -1 for
// side-states and unknown values.
func (s Status) Index() int {
	for i, f := range forwardOrder {
		if f == s {
			return i
		}
	}
	return -1
}

// IsSideState reports whether s is one of the absorbing side-states.
func (s Status) IsSideState() bool {
	return s == StatusCancelled || s == StatusSkipped
}

// IsTerminal reports whether no further transition can leave s.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s.IsSideState()
}

// IsDeliveryOwned reports whether s is normally produced only by the delivery subsystem.
func (s Status) IsDeliveryOwned() bool {
	return s == StatusOutForDelivery || s == StatusDelivered
}

// AtLeast reports whether s has reached target in the forward order.
// Side-states never compare as reached.
func (s Status) AtLeast(target Status) bool {
	si, ti := s.Index(), target.Index()
	if si < 0 || ti < 0 {
		return false
	}
	return si >= ti
}

// Label returns a human readable form used in user-facing messages.
func (s Status) Label() string {
	return strings.ReplaceAll(string(s), "_", " ")
}
