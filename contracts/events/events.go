// Package events defines the wire schema for events published by the
// transaction decision engine. Downstream consumers (notification services,
// reporting pipelines) import this module instead of the engine internals, so
// changes here are breaking changes for every subscriber.
package events

import "time"

// Type identifies the kind of event on the wire.
type Type string

const (
	TypeDecisionAutoApproved Type = "decision.auto_approved"
	TypeDecisionQueued       Type = "decision.queued"
	TypeReviewAssigned       Type = "review.assigned"
	TypeReviewApproved       Type = "review.approved"
	TypeReviewRejected       Type = "review.rejected"
	TypeReviewEscalated      Type = "review.escalated"
	TypeReviewRolledBack     Type = "review.rolled_back"
)

// Envelope is the versioned wrapper for every published event. The payload is
// flattened into the envelope rather than nested so consumers can filter on
// any field without a second decode.
type Envelope struct {
	SchemaVersion int       `json:"schema_version"`
	EventID       string    `json:"event_id"`
	Type          Type      `json:"type"`
	OccurredAt    time.Time `json:"occurred_at"`

	OrganizationID string `json:"organization_id"`
	TransactionID  string `json:"transaction_id"`
	ItemID         string `json:"item_id,omitempty"`

	// Decision fields, set for decision.* events.
	Reason          string `json:"reason,omitempty"`
	Priority        string `json:"priority,omitempty"`
	RiskScore       int    `json:"risk_score,omitempty"`
	FraudConfidence int    `json:"fraud_confidence,omitempty"`
	ConfigVersion   int64  `json:"config_version,omitempty"`

	// Review fields, set for review.* events.
	ActorID      string `json:"actor_id,omitempty"`
	FromStatus   string `json:"from_status,omitempty"`
	ToStatus     string `json:"to_status,omitempty"`
	ItemVersion  int64  `json:"item_version,omitempty"`
	ReviewerNote string `json:"reviewer_note,omitempty"`
}

// SchemaVersion is the current envelope schema version. Bump on any change
// that is not strictly additive.
const SchemaVersion = 1
