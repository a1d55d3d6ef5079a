package queue

import (
	"time"

	id "txgate/pkg/domain"
)

// SLA deadlines by priority, measured from enqueue time. An item past its
// deadline is overdue; it stays in the queue but is surfaced by filters and
// the stats rollup.
var slaByPriority = map[id.Priority]time.Duration{
	id.PriorityCritical: 2 * time.Hour,
	id.PriorityHigh:     8 * time.Hour,
	id.PriorityMedium:   24 * time.Hour,
	id.PriorityLow:      72 * time.Hour,
}

// SLAFor returns the review deadline duration for a priority. Unknown
// priorities get the low-priority deadline.
func SLAFor(p id.Priority) time.Duration {
	if d, ok := slaByPriority[p]; ok {
		return d
	}
	return slaByPriority[id.PriorityLow]
}

// Item is one entry in the review queue. Transaction is a snapshot taken at
// decision time: later changes to configs or profiles never alter what the
// reviewer sees.
//
// Version implements optimistic concurrency. Every successful transition
// increments it; writers supply the version they read and lose with a
// conflict when it moved.
type Item struct {
	ID          id.ItemID
	Transaction id.TransactionContext
	Reason      id.Reason
	Priority    id.Priority
	Status      id.Status
	// MatchedCases are the mandatory case kinds that fired at decision time.
	MatchedCases  []id.CaseKind
	ConfigVersion int64

	AssignedTo   id.ReviewerID // zero until assigned
	ReviewedBy   id.ReviewerID // zero until decided
	ReviewerNote string

	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	SLADeadline time.Time
	DecidedAt   time.Time // zero until decided
}

// Overdue reports whether the item has passed its SLA deadline without a
// decision.
func (i *Item) Overdue(now time.Time) bool {
	return !i.Status.IsDecided() && now.After(i.SLADeadline)
}

// Clone returns a deep copy so stores can hand out items without aliasing
// their internal state.
func (i *Item) Clone() *Item {
	next := *i
	next.Transaction = i.Transaction.WithScores(i.Transaction.RiskScore, i.Transaction.FraudConfidence)
	next.MatchedCases = append([]id.CaseKind(nil), i.MatchedCases...)
	return &next
}

// ListFilter narrows a queue listing. Zero fields match everything.
type ListFilter struct {
	OrganizationID id.OrganizationID
	Status         id.Status
	Priority       id.Priority
	AssignedTo     id.ReviewerID
	OverdueOnly    bool
	Now            time.Time // reference time for OverdueOnly
	Limit          int
	Offset         int
}

// ReviewerLoad summarizes a reviewer's open work, used by auto-assignment.
type ReviewerLoad struct {
	Open           int
	LastAssignedAt time.Time
}

// StatsSnapshot is the raw per-organization aggregate the stats service
// derives its rollups from. Durations sum over decided items only.
type StatsSnapshot struct {
	ByStatus   map[id.Status]int
	ByPriority map[id.Priority]int
	ByReason   map[id.Reason]int

	ApprovedCount     int
	RejectedCount     int
	SumTimeToDecision time.Duration
	OverdueCount      int
}
