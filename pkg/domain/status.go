package domain

import dErrors "txgate/pkg/domain-errors"

// Status is the review queue item state machine:
//
//	pending → in_progress → {approved, rejected, escalated}
//
// approved and rejected may return to in_progress via an explicit admin
// rollback, so no status is truly terminal. pending → approved/rejected is
// also legal (fast-track decision without a prior claim).
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusEscalated  Status = "escalated"
)

// validTransitions is the single source of truth for the state machine.
var validTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusInProgress: true,
		StatusApproved:   true, // fast-track
		StatusRejected:   true, // fast-track
	},
	StatusInProgress: {
		StatusApproved:  true,
		StatusRejected:  true,
		StatusEscalated: true,
	},
	StatusApproved: {
		StatusInProgress: true, // rollback, admin only
	},
	StatusRejected: {
		StatusInProgress: true, // rollback, admin only
	},
	StatusEscalated: {},
}

// ParseStatus constructs a Status from external input.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid status %q", s)
	}
	return st, nil
}

// IsValid checks the status is one of the supported enum values.
func (s Status) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

// CanTransitionTo reports whether the state machine permits s → next.
func (s Status) CanTransitionTo(next Status) bool {
	return validTransitions[s][next]
}

// IsDecided reports whether the status counts as a decision for reporting
// purposes (absent a later rollback).
func (s Status) IsDecided() bool {
	return s == StatusApproved || s == StatusRejected
}

func (s Status) String() string { return string(s) }
