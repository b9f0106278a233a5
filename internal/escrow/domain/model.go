package domain

import "time"

type EscrowStatus string

const (
	StatusPending           EscrowStatus = "pending"
	StatusPartiallyReleased EscrowStatus = "partially_released"
	StatusFullyReleased     EscrowStatus = "fully_released"
	StatusRefunded          EscrowStatus = "refunded"
	StatusDisputed          EscrowStatus = "disputed"
)

// Terminal reports whether no further transition is permitted.
func (s EscrowStatus) Terminal() bool {
	return s == StatusFullyReleased || s == StatusRefunded
}

// Escrow holds funds in trust against exactly one operation.
// Amounts are minor currency units (cents); currency is immutable after creation.
type Escrow struct {
	ID             string       `json:"id"`
	ProjectID      string       `json:"project_id"`
	ClientID       string       `json:"client_id"`
	Amount         int64        `json:"amount"`
	ReleasedAmount int64        `json:"released_amount"`
	Currency       string       `json:"currency"`
	Disputed       bool         `json:"disputed"`
	Refunded       bool         `json:"refunded"`
	Status         EscrowStatus `json:"status"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// DeriveStatus computes the status from the funds position and flags.
// The stored status is always equal to the derived one.
func DeriveStatus(amount, released int64, disputed, refunded bool) EscrowStatus {
	switch {
	case refunded:
		return StatusRefunded
	case released == amount:
		return StatusFullyReleased
	case disputed:
		return StatusDisputed
	case released > 0:
		return StatusPartiallyReleased
	default:
		return StatusPending
	}
}

// Recompute refreshes Status from the current funds position.
func (e *Escrow) Recompute() {
	e.Status = DeriveStatus(e.Amount, e.ReleasedAmount, e.Disputed, e.Refunded)
}

// Release is the audit record of a single funds release. RequestID is the
// caller-supplied idempotency key: a replayed key returns the stored outcome
// without re-applying the release.
type Release struct {
	ID        string    `json:"id"`
	EscrowID  string    `json:"escrow_id"`
	RequestID string    `json:"request_id"`
	ActorID   string    `json:"actor_id"`
	Amount    int64     `json:"amount"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"-"`
}

// ReleaseKeyTTL bounds how long a release request id is remembered.
const ReleaseKeyTTL = 7 * 24 * time.Hour

type DisputeOutcome string

const (
	OutcomeRelease DisputeOutcome = "release"
	OutcomeRefund  DisputeOutcome = "refund"
)

func ParseOutcome(s string) (DisputeOutcome, bool) {
	switch DisputeOutcome(s) {
	case OutcomeRelease, OutcomeRefund:
		return DisputeOutcome(s), true
	}
	return "", false
}

// OperationState is the subset of the owning operation that escrow checks
// read inside the same transaction as an escrow mutation.
type OperationState struct {
	ID         string
	ClientID   string
	ProviderID string
	Status     string
	Currency   string
}

// Event types published on lifecycle changes.
const (
	EventCreated         = "escrow.created"
	EventReleased        = "escrow.released"
	EventRefunded        = "escrow.refunded"
	EventDisputed        = "escrow.disputed"
	EventDisputeResolved = "escrow.dispute_resolved"
)
