package sessions

import (
	"errors"
	"fmt"

	"coaching-billing/internal/domain/users"
)

type Status string

const (
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusDenied      Status = "denied"
	StatusBilled      Status = "billed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusUnderReview, StatusApproved, StatusDenied, StatusBilled:
		return true
	}
	return false
}

type Action string

const (
	ActionApprove  Action = "approve"
	ActionDeny     Action = "deny"
	ActionRevert   Action = "revert"
	ActionUndoDeny Action = "undo_deny"
	ActionBill     Action = "bill"
	// ActionUndoBill is a status correction only. The processor-side charge
	// is left untouched; refunds happen outside this system.
	ActionUndoBill Action = "undo_bill"
)

var (
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrUnknownAction     = errors.New("unknown session action")
	ErrNotPermitted      = errors.New("role may not perform this action")
)

type edge struct {
	from   Status
	action Action
}

var transitions = map[edge]Status{
	{StatusUnderReview, ActionApprove}: StatusApproved,
	{StatusUnderReview, ActionDeny}:    StatusDenied,
	{StatusApproved, ActionRevert}:     StatusUnderReview,
	{StatusApproved, ActionBill}:       StatusBilled,
	{StatusDenied, ActionUndoDeny}:     StatusUnderReview,
	{StatusBilled, ActionUndoBill}:     StatusApproved,
}

func ParseAction(s string) (Action, error) {
	a := Action(s)
	switch a {
	case ActionApprove, ActionDeny, ActionRevert, ActionUndoDeny, ActionBill, ActionUndoBill:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// Transition returns the status reached by applying action to from.
func Transition(from Status, action Action) (Status, error) {
	next, ok := transitions[edge{from, action}]
	if !ok {
		return from, fmt.Errorf("%w: cannot %s a session that is %s", ErrInvalidTransition, action, from)
	}
	return next, nil
}

// CanPerform reports whether role may request action through the review
// workflow. Billing is never requested directly; it is the charge engine's
// transition.
func CanPerform(role string, action Action) bool {
	switch action {
	case ActionApprove, ActionDeny, ActionRevert, ActionUndoDeny:
		return role == users.RoleAdmin
	case ActionUndoBill:
		return role == users.RoleBilling || role == users.RoleAdmin
	default:
		return false
	}
}

// CanArchive: billed sessions stay visible for audit.
func CanArchive(role string, s *Session) bool {
	if role != users.RoleAdmin && role != users.RoleBilling {
		return false
	}
	return s.Status != StatusBilled
}
