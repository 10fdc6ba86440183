package model

import "strings"

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusClosed     Status = "closed"
)

// Allowed next states per current state. Approved and rejected may only be
// closed; closed accepts nothing. No state leads back to pending.
var transitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusApproved, StatusRejected, StatusClosed},
	StatusInProgress: {StatusApproved, StatusRejected, StatusClosed},
	StatusApproved:   {StatusClosed},
	StatusRejected:   {StatusClosed},
	StatusClosed:     {},
}

// Statuses lists every defined status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusPending, StatusInProgress, StatusApproved, StatusRejected, StatusClosed}
}

func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := transitions[st]; !ok {
		return "", false
	}
	return st, true
}

// NextStates returns a copy of the states reachable from s.
func (s Status) NextStates() []Status {
	return append([]Status(nil), transitions[s]...)
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, candidate := range transitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}
