package domain

import (
	"github.com/google/uuid"

	dErrors "txgate/pkg/domain-errors"
)

// Typed IDs prevent cross-type assignment at compile time. An ItemID can never
// be passed where a TransactionID is expected, which matters in a system where
// both flow through the same handlers.
//
// Invariant: IDs must be valid, non-empty, non-nil UUIDs. Construct via the
// ParseXxx functions at trust boundaries; direct conversion bypasses
// validation and is reserved for internal code that already holds a uuid.
type (
	// OrganizationID scopes configs, queue items, and statistics.
	OrganizationID uuid.UUID

	// BranchID optionally narrows a config scope below the organization.
	BranchID uuid.UUID

	// TransactionID identifies the financial transaction under decision.
	TransactionID uuid.UUID

	// ItemID identifies a review queue item.
	ItemID uuid.UUID

	// ReviewerID identifies the human actor performing queue operations.
	ReviewerID uuid.UUID
)

func parseUUID(s string, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be empty", field)
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s must be a valid UUID", field)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be the nil UUID", field)
	}
	return parsed, nil
}

// ParseOrganizationID constructs an OrganizationID from external input.
func ParseOrganizationID(s string) (OrganizationID, error) {
	parsed, err := parseUUID(s, "organization_id")
	return OrganizationID(parsed), err
}

// ParseBranchID constructs a BranchID from external input.
func ParseBranchID(s string) (BranchID, error) {
	parsed, err := parseUUID(s, "branch_id")
	return BranchID(parsed), err
}

// ParseTransactionID constructs a TransactionID from external input.
func ParseTransactionID(s string) (TransactionID, error) {
	parsed, err := parseUUID(s, "transaction_id")
	return TransactionID(parsed), err
}

// ParseItemID constructs an ItemID from external input.
func ParseItemID(s string) (ItemID, error) {
	parsed, err := parseUUID(s, "item_id")
	return ItemID(parsed), err
}

// ParseReviewerID constructs a ReviewerID from external input.
func ParseReviewerID(s string) (ReviewerID, error) {
	parsed, err := parseUUID(s, "reviewer_id")
	return ReviewerID(parsed), err
}

func (id OrganizationID) String() string { return uuid.UUID(id).String() }
func (id BranchID) String() string       { return uuid.UUID(id).String() }
func (id TransactionID) String() string  { return uuid.UUID(id).String() }
func (id ItemID) String() string         { return uuid.UUID(id).String() }
func (id ReviewerID) String() string     { return uuid.UUID(id).String() }

func (id OrganizationID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id BranchID) IsZero() bool       { return uuid.UUID(id) == uuid.Nil }
func (id TransactionID) IsZero() bool  { return uuid.UUID(id) == uuid.Nil }
func (id ItemID) IsZero() bool         { return uuid.UUID(id) == uuid.Nil }
func (id ReviewerID) IsZero() bool     { return uuid.UUID(id) == uuid.Nil }

// NewItemID mints a fresh ItemID for a newly enqueued review item.
func NewItemID() ItemID { return ItemID(uuid.New()) }

// IDs marshal as canonical UUID strings so stored snapshots stay readable.
// Unlike the ParseXxx constructors, unmarshalling accepts the nil UUID: an
// unset optional ID (a zero BranchID, say) must survive a roundtrip.

func unmarshalUUID(text []byte) (uuid.UUID, error) {
	if len(text) == 0 {
		return uuid.Nil, nil
	}
	return uuid.Parse(string(text))
}

func (id OrganizationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id BranchID) MarshalText() ([]byte, error)       { return []byte(id.String()), nil }
func (id TransactionID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }
func (id ItemID) MarshalText() ([]byte, error)         { return []byte(id.String()), nil }
func (id ReviewerID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }

func (id *OrganizationID) UnmarshalText(text []byte) error {
	parsed, err := unmarshalUUID(text)
	*id = OrganizationID(parsed)
	return err
}

func (id *BranchID) UnmarshalText(text []byte) error {
	parsed, err := unmarshalUUID(text)
	*id = BranchID(parsed)
	return err
}

func (id *TransactionID) UnmarshalText(text []byte) error {
	parsed, err := unmarshalUUID(text)
	*id = TransactionID(parsed)
	return err
}

func (id *ItemID) UnmarshalText(text []byte) error {
	parsed, err := unmarshalUUID(text)
	*id = ItemID(parsed)
	return err
}

func (id *ReviewerID) UnmarshalText(text []byte) error {
	parsed, err := unmarshalUUID(text)
	*id = ReviewerID(parsed)
	return err
}
