package domain

import "context"

// Tx is the unit of work for a single escrow mutation. Every mutating
// operation reads and writes through one Tx so that the cross-entity check
// against the operation and the escrow update commit or fail together.
type Tx interface {
	// EscrowForUpdate locks the escrow row for the rest of the transaction.
	EscrowForUpdate(ctx context.Context, id string) (*Escrow, error)
	ActiveEscrowForProject(ctx context.Context, projectID string) (*Escrow, error)
	InsertEscrow(ctx context.Context, e *Escrow) error
	UpdateEscrow(ctx context.Context, e *Escrow) error

	Operation(ctx context.Context, id string) (*OperationState, error)

	ReleaseByRequestID(ctx context.Context, escrowID, requestID string) (*Release, error)
	InsertRelease(ctx context.Context, rel *Release) error
}

type Store interface {
	// InTx runs fn inside a transaction; a serialization failure surfaces
	// as ErrConflictRetry.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	EscrowByID(ctx context.Context, id string) (*Escrow, error)
	EscrowForProject(ctx context.Context, projectID string) (*Escrow, error)
}
