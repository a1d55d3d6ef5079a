package audit

import (
	"time"

	id "txgate/pkg/domain"
)

// Action names the state change an audit entry records. The trail is the
// authoritative history of a queue item: every successful transition appends
// exactly one entry.
type Action string

const (
	ActionAutoApproved Action = "auto_approved"
	ActionQueued       Action = "queued"
	ActionAssigned     Action = "assigned"
	ActionApproved     Action = "approved"
	ActionRejected     Action = "rejected"
	ActionEscalated    Action = "escalated"
	ActionRolledBack   Action = "rolled_back"
)

// Entry is an immutable audit record. Entries are append-only; nothing in the
// system updates or deletes one after it is written.
type Entry struct {
	ItemID         id.ItemID
	TransactionID  id.TransactionID
	OrganizationID id.OrganizationID
	Action         Action
	ActorID        string
	Timestamp      time.Time
	BeforeStatus   id.Status
	AfterStatus    id.Status
	RequestID      string
	// Details carries action-specific context, e.g. the decision reason for
	// a queued entry or the reviewer note for a rejection.
	Details map[string]string
}
