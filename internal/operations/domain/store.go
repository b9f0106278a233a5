package domain

import (
	"context"

	escrowdomain "github.com/worklane/worklane-backend/internal/escrow/domain"
)

// Tx is the unit of work for an operation mutation. Cancellation and
// completion read and write the operation's escrows inside the same
// transaction, so settlement checks and implicit refunds are atomic with
// the status change.
type Tx interface {
	OperationForUpdate(ctx context.Context, id string) (*Operation, error)
	InsertOperation(ctx context.Context, op *Operation) error
	UpdateOperation(ctx context.Context, op *Operation) error

	// EscrowsForOperation locks the operation's escrow rows.
	EscrowsForOperation(ctx context.Context, operationID string) ([]*escrowdomain.Escrow, error)
	UpdateEscrow(ctx context.Context, e *escrowdomain.Escrow) error
}

type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error

	OperationByID(ctx context.Context, id string) (*Operation, error)
	ListForUser(ctx context.Context, userID string) ([]Operation, error)
}
