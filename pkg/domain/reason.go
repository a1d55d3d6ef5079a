package domain

import dErrors "txgate/pkg/domain-errors"

// Reason is the closed set of decision rationales. It replaces free-form
// detail blobs: anything machine-readable goes here, anything else goes into
// the structured details map on the queue item or audit entry.
type Reason string

const (
	ReasonAutoApproved           Reason = "auto_approved"
	ReasonAutoProcessingDisabled Reason = "auto_processing_disabled"
	ReasonMandatoryCase          Reason = "mandatory_case"
	ReasonAmountExceeded         Reason = "amount_exceeded"
	ReasonHighRisk               Reason = "high_risk"
	ReasonHighFraudConfidence    Reason = "high_fraud_confidence"
	ReasonRoleRestricted         Reason = "role_restricted"
	ReasonScoringUnavailable     Reason = "scoring_unavailable"
)

var validReasons = map[Reason]bool{
	ReasonAutoApproved:           true,
	ReasonAutoProcessingDisabled: true,
	ReasonMandatoryCase:          true,
	ReasonAmountExceeded:         true,
	ReasonHighRisk:               true,
	ReasonHighFraudConfidence:    true,
	ReasonRoleRestricted:         true,
	ReasonScoringUnavailable:     true,
}

// ParseReason constructs a Reason from external input.
func ParseReason(s string) (Reason, error) {
	r := Reason(s)
	if !validReasons[r] {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid reason %q", s)
	}
	return r, nil
}

// IsValid checks the reason is one of the supported enum values.
func (r Reason) IsValid() bool { return validReasons[r] }

func (r Reason) String() string { return string(r) }
