// Package stats derives reporting rollups from the review queue: volume by
// status, priority, and reason, approval rate, average time to decision, and
// the overdue backlog.
package stats

import (
	"context"
	"log/slog"
	"time"

	"txgate/internal/queue"
	id "txgate/pkg/domain"
	"txgate/pkg/requestcontext"
)

// Rollup is the derived per-organization report.
type Rollup struct {
	ByStatus   map[id.Status]int
	ByPriority map[id.Priority]int
	ByReason   map[id.Reason]int

	// Decided counts approved plus rejected items.
	Decided int
	// ApprovalRate is approved / decided, 0 when nothing is decided.
	ApprovalRate float64
	// AvgTimeToDecision averages enqueue-to-decision over decided items.
	AvgTimeToDecision time.Duration
	// Overdue counts undecided items past their SLA deadline.
	Overdue int

	GeneratedAt time.Time
}

// Source is the slice of the queue store the rollup needs.
type Source interface {
	Stats(ctx context.Context, orgID id.OrganizationID, now time.Time) (queue.StatsSnapshot, error)
}

type Service struct {
	source Source
	logger *slog.Logger
}

func NewService(source Source, logger *slog.Logger) *Service {
	return &Service{source: source, logger: logger}
}

// Rollup computes the report for one organization as of the request time.
func (s *Service) Rollup(ctx context.Context, orgID id.OrganizationID) (Rollup, error) {
	now := requestcontext.Now(ctx)
	snap, err := s.source.Stats(ctx, orgID, now)
	if err != nil {
		return Rollup{}, err
	}

	rollup := Rollup{
		ByStatus:    snap.ByStatus,
		ByPriority:  snap.ByPriority,
		ByReason:    snap.ByReason,
		Decided:     snap.ApprovedCount + snap.RejectedCount,
		Overdue:     snap.OverdueCount,
		GeneratedAt: now,
	}
	if rollup.Decided > 0 {
		rollup.ApprovalRate = float64(snap.ApprovedCount) / float64(rollup.Decided)
		rollup.AvgTimeToDecision = snap.SumTimeToDecision / time.Duration(rollup.Decided)
	}
	return rollup, nil
}
