// Package profile persists the historical signals the rule and behavioral
// risk layers read: submission velocity and per-submitter spending profiles.
package profile

import (
	"context"
	"time"

	id "txgate/pkg/domain"
	dErrors "txgate/pkg/domain-errors"
)

// ErrNoProfile means the submitter has no recorded history.
var ErrNoProfile = dErrors.New(dErrors.CodeNotFound, "no profile recorded")

// Profile summarizes a submitter's transaction history within one
// organization. Amounts are minor units.
type Profile struct {
	TransactionCount int64
	TotalAmount      int64
	MaxAmount        int64
	AvgAmount        int64
}

// Store reads and updates spending profiles.
type Store interface {
	// SubmitterProfile returns the submitter's history, ErrNoProfile when
	// none exists.
	SubmitterProfile(ctx context.Context, orgID id.OrganizationID, submitterID id.ReviewerID) (Profile, error)

	// RecordTransaction folds a processed transaction into the profile.
	// Called after a transaction is auto-approved or review-approved, never
	// for rejected ones.
	RecordTransaction(ctx context.Context, orgID id.OrganizationID, submitterID id.ReviewerID, amount int64) error
}

// VelocityStore counts recent submissions per submitter using a sliding
// window.
type VelocityStore interface {
	// RecordAndCount records one submission and returns the number of
	// submissions within the window, including this one.
	RecordAndCount(ctx context.Context, orgID id.OrganizationID, submitterID id.ReviewerID, window time.Duration) (int, error)
}
