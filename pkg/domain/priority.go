package domain

import dErrors "txgate/pkg/domain-errors"

// Priority orders review queue items. Dequeue order is critical > high >
// medium > low, FIFO within the same priority.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// priorityRank is the single source of truth for dequeue ordering. Lower rank
// dequeues first.
var priorityRank = map[Priority]int{
	PriorityCritical: 0,
	PriorityHigh:     1,
	PriorityMedium:   2,
	PriorityLow:      3,
}

// ParsePriority constructs a Priority from external input.
func ParsePriority(s string) (Priority, error) {
	p := Priority(s)
	if !p.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid priority %q", s)
	}
	return p, nil
}

// IsValid checks the priority is one of the supported enum values.
func (p Priority) IsValid() bool {
	_, ok := priorityRank[p]
	return ok
}

// Rank returns the dequeue rank; lower dequeues first. Unknown priorities
// rank last so a corrupt record can never jump the queue.
func (p Priority) Rank() int {
	if rank, ok := priorityRank[p]; ok {
		return rank
	}
	return len(priorityRank)
}

func (p Priority) String() string { return string(p) }
