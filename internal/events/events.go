// Package events publishes decision and review lifecycle events to Kafka.
// Emission is fire and forget: a broker outage must never fail or delay the
// decision path, so envelopes are buffered through a worker and dropped with
// a counter when the buffer is full.
package events

import (
	"time"

	"github.com/google/uuid"

	contracts "txgate/contracts/events"
)

// NewEnvelope stamps a fresh envelope with identity and schema fields. The
// caller fills the type-specific payload fields.
func NewEnvelope(eventType contracts.Type, occurredAt time.Time) contracts.Envelope {
	return contracts.Envelope{
		SchemaVersion: contracts.SchemaVersion,
		EventID:       uuid.NewString(),
		Type:          eventType,
		OccurredAt:    occurredAt,
	}
}
