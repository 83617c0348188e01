package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrSlotNotFound         = errors.New("meal slot not found")
	ErrDayNotFound          = errors.New("day not found in timeline")
	ErrNotSubscriptionParty = errors.New("caller is not a party to this subscription")

	// ErrConflict is returned by stores when a compare-and-set lost a race.
	ErrConflict = errors.New("slot status changed concurrently")
)

// RegressionError rejects a transition that does not move a slot forward.
type RegressionError struct {
	Key  SlotKey
	From Status
	To   Status
}

func (e *RegressionError) Error() string {
	if e.From.IsTerminal() {
		return fmt.Sprintf("slot %s: status %s is final, cannot move to %s", e.Key, e.From, e.To)
	}
	return fmt.Sprintf("slot %s: status already passed %s (currently %s), cannot revert", e.Key, e.To, e.From)
}

// UnknownStatusError reports an unrecognized raw status value.
type UnknownStatusError struct {
	Source string
	Value  string
}

func (e *UnknownStatusError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("unknown %s status %q", e.Source, e.Value)
	}
	return fmt.Sprintf("unknown status %q", e.Value)
}

// MissingScheduleDateError is raised before any network call when a slot has no resolvable date.
type MissingScheduleDateError struct {
	SubscriptionID string
	MealTime       MealTime
}

func (e *MissingScheduleDateError) Error() string {
	return fmt.Sprintf("%s for subscription %s has no scheduled delivery date", e.MealTime.Label(), e.SubscriptionID)
}

// ForbiddenTargetError rejects a target status the caller's role may not set.
type ForbiddenTargetError struct {
	Role   string
	Target Status
}

func (e *ForbiddenTargetError) Error() string {
	return fmt.Sprintf("role %q may not set status %s", e.Role, e.Target)
}

// NoApplicableSlotsError is returned when a day batch could not move any slot.
// Outcomes carries the per-slot reasons.
type NoApplicableSlotsError struct {
	SubscriptionID string
	Date           string
	Target         Status
	Outcomes       []SlotOutcome
}

func (e *NoApplicableSlotsError) Error() string {
	reasons := make([]string, 0, len(e.Outcomes))
	for _, o := range e.Outcomes {
		reasons = append(reasons, fmt.Sprintf("%s %s", o.MealTime.Label(), o.Reason))
	}
	return fmt.Sprintf("no meal on %s can move to %s: %s", e.Date, e.Target.Label(), strings.Join(reasons, "; "))
}

// NetworkError wraps a transient transport failure.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// MalformedResponseError is returned when a payload at the system boundary
// does not match the expected shape.
type MalformedResponseError struct {
	Source string
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed %s response: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed %s response: %s", e.Source, e.Reason)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
