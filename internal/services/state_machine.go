package services

import (
	"github.com/Endgame-Tech/choma-sub014/internal/domain"
)

// CanTransition reports whether a slot may move from current to target.
//
// A move is legal when target is strictly later in the forward order, or when
// target is an absorbing side-state and current is not terminal.
func CanTransition(current, target domain.Status) bool {
	if !current.Valid() || !target.Valid() {
		return false
	}
	if current.IsTerminal() {
		return false
	}
	if target.IsSideState() {
		return true
	}
	return target.Index() > current.Index()
}

// AttemptTransition validates a single slot move and returns the committed status.
// It never mutates anything; callers persist the returned status.
func AttemptTransition(key domain.SlotKey, current, target domain.Status) (domain.Status, error) {
	if !current.Valid() {
		return current, &domain.UnknownStatusError{Source: "current", Value: string(current)}
	}
	if !target.Valid() {
		return current, &domain.UnknownStatusError{Source: "target", Value: string(target)}
	}
	if !CanTransition(current, target) {
		return current, &domain.RegressionError{Key: key, From: current, To: target}
	}
	return target, nil
}

// AttemptTransitionAs additionally enforces the caller's role.
func AttemptTransitionAs(role domain.Role, key domain.SlotKey, current, target domain.Status) (domain.Status, error) {
	if target.Valid() && !role.CanTarget(target) {
		return current, &domain.ForbiddenTargetError{Role: string(role), Target: target}
	}
	return AttemptTransition(key, current, target)
}
