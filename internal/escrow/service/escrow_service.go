package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/worklane/worklane-backend/internal/escrow/domain"
	"github.com/worklane/worklane-backend/internal/notifications"
	opdomain "github.com/worklane/worklane-backend/internal/operations/domain"
)

// maxConflictRetries bounds internal retries on ErrConflictRetry before the
// failure surfaces to the caller as transient.
const maxConflictRetries = 3

const RoleAdmin = "admin"

// Publisher receives lifecycle events after a mutation commits.
type Publisher interface {
	Publish(ctx context.Context, ev notifications.Event)
}

// Identity is the acting user as established by the auth layer.
type Identity struct {
	UserID string
	Role   string
}

// EscrowService owns the authoritative state of funds held against an
// operation. All validation happens before any write; every mutation runs
// inside a single store transaction.
type EscrowService struct {
	store  domain.Store
	events Publisher
}

func NewEscrowService(store domain.Store, events Publisher) *EscrowService {
	return &EscrowService{store: store, events: events}
}

type CreateInput struct {
	ProjectID string
	Amount    int64
	Currency  string
}

// Create opens a new escrow in pending state with nothing released.
func (s *EscrowService) Create(ctx context.Context, actor Identity, in CreateInput) (*domain.Escrow, error) {
	if in.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if len(currency) != 3 {
		return nil, domain.ErrInvalidCurrency
	}

	var created *domain.Escrow
	err := s.retryConflicts(ctx, func() error {
		return s.store.InTx(ctx, func(tx domain.Tx) error {
			op, err := tx.Operation(ctx, in.ProjectID)
			if err != nil {
				return err
			}
			if op.ClientID != actor.UserID {
				return domain.ErrForbidden
			}
			switch opdomain.OperationStatus(op.Status) {
			case opdomain.StatusCancelled:
				return domain.ErrOperationCancelled
			case opdomain.StatusCompleted:
				return domain.ErrInvalidState
			}
			if op.Currency != currency {
				return domain.ErrCurrencyMismatch
			}

			if existing, err := tx.ActiveEscrowForProject(ctx, in.ProjectID); err != nil {
				return err
			} else if existing != nil {
				return domain.ErrDuplicateEscrow
			}

			now := time.Now().UTC()
			created = &domain.Escrow{
				ID:        uuid.New().String(),
				ProjectID: in.ProjectID,
				ClientID:  op.ClientID,
				Amount:    in.Amount,
				Currency:  currency,
				Status:    domain.StatusPending,
				CreatedAt: now,
				UpdatedAt: now,
			}
			return tx.InsertEscrow(ctx, created)
		})
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, notifications.Event{
		Type:       domain.EventCreated,
		EntityID:   created.ID,
		ActorID:    actor.UserID,
		Recipients: []string{created.ClientID},
		Payload:    map[string]interface{}{"project_id": created.ProjectID, "amount": created.Amount, "currency": created.Currency},
	})
	return created, nil
}

type ReleaseInput struct {
	Amount    int64
	Reason    string
	RequestID string
}

// ReleaseFunds moves part of the held amount to the provider. A replayed
// RequestID returns the current escrow with replayed=true and applies
// nothing.
func (s *EscrowService) ReleaseFunds(ctx context.Context, actor Identity, escrowID string, in ReleaseInput) (esc *domain.Escrow, replayed bool, err error) {
	if in.RequestID == "" {
		return nil, false, domain.ErrMissingRequestID
	}
	if in.Amount <= 0 {
		return nil, false, domain.ErrInvalidAmount
	}

	var provider string
	err = s.retryConflicts(ctx, func() error {
		esc, replayed = nil, false
		return s.store.InTx(ctx, func(tx domain.Tx) error {
			e, err := tx.EscrowForUpdate(ctx, escrowID)
			if err != nil {
				return err
			}
			if e.ClientID != actor.UserID {
				return domain.ErrForbidden
			}

			if prior, err := tx.ReleaseByRequestID(ctx, escrowID, in.RequestID); err != nil {
				return err
			} else if prior != nil {
				if prior.Amount != in.Amount {
					return domain.ErrRequestIDReused
				}
				esc, replayed = e, true
				return nil
			}

			if e.Status.Terminal() || e.Disputed {
				return domain.ErrInvalidState
			}

			op, err := tx.Operation(ctx, e.ProjectID)
			if err != nil {
				return err
			}
			if opdomain.OperationStatus(op.Status) == opdomain.StatusCancelled {
				return domain.ErrOperationCancelled
			}
			provider = op.ProviderID

			// subtraction form: both sides are within [0, amount], so this
			// cannot overflow for any caller-supplied in.Amount
			if in.Amount > e.Amount-e.ReleasedAmount {
				return fmt.Errorf("%w: %d exceeds remaining %d of %d held",
					domain.ErrInsufficientHeldFunds, in.Amount, e.Amount-e.ReleasedAmount, e.Amount)
			}

			now := time.Now().UTC()
			e.ReleasedAmount += in.Amount
			e.Recompute()
			e.UpdatedAt = now
			if err := tx.UpdateEscrow(ctx, e); err != nil {
				return err
			}
			if err := tx.InsertRelease(ctx, &domain.Release{
				ID:        uuid.New().String(),
				EscrowID:  e.ID,
				RequestID: in.RequestID,
				ActorID:   actor.UserID,
				Amount:    in.Amount,
				Reason:    in.Reason,
				CreatedAt: now,
				ExpiresAt: now.Add(domain.ReleaseKeyTTL),
			}); err != nil {
				return err
			}
			esc = e
			return nil
		})
	})
	if err != nil {
		return nil, false, err
	}

	if !replayed {
		s.events.Publish(ctx, notifications.Event{
			Type:       domain.EventReleased,
			EntityID:   esc.ID,
			ActorID:    actor.UserID,
			Recipients: []string{esc.ClientID, provider},
			Payload: map[string]interface{}{
				"amount":          in.Amount,
				"released_amount": esc.ReleasedAmount,
				"status":          esc.Status,
				"reason":          in.Reason,
			},
		})
	}
	return esc, replayed, nil
}

// Refund returns the unreleased remainder to the payer and terminates the
// escrow. Disallowed once fully released, and while a dispute is open
// (resolution is the only path from disputed to refunded).
func (s *EscrowService) Refund(ctx context.Context, actor Identity, escrowID, reason string) (*domain.Escrow, error) {
	var esc *domain.Escrow
	err := s.retryConflicts(ctx, func() error {
		return s.store.InTx(ctx, func(tx domain.Tx) error {
			e, err := tx.EscrowForUpdate(ctx, escrowID)
			if err != nil {
				return err
			}
			if e.ClientID != actor.UserID && actor.Role != RoleAdmin {
				return domain.ErrForbidden
			}
			if e.Status.Terminal() || e.Disputed {
				return domain.ErrInvalidState
			}
			e.Refunded = true
			e.Recompute()
			e.UpdatedAt = time.Now().UTC()
			if err := tx.UpdateEscrow(ctx, e); err != nil {
				return err
			}
			esc = e
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, notifications.Event{
		Type:       domain.EventRefunded,
		EntityID:   esc.ID,
		ActorID:    actor.UserID,
		Recipients: []string{esc.ClientID},
		Payload:    map[string]interface{}{"reason": reason, "released_amount": esc.ReleasedAmount},
	})
	return esc, nil
}

// Dispute freezes further releases until resolved. Either party to the
// operation may raise it.
func (s *EscrowService) Dispute(ctx context.Context, actor Identity, escrowID string) (*domain.Escrow, error) {
	var esc *domain.Escrow
	err := s.retryConflicts(ctx, func() error {
		return s.store.InTx(ctx, func(tx domain.Tx) error {
			e, err := tx.EscrowForUpdate(ctx, escrowID)
			if err != nil {
				return err
			}
			op, err := tx.Operation(ctx, e.ProjectID)
			if err != nil {
				return err
			}
			if actor.UserID != op.ClientID && actor.UserID != op.ProviderID {
				return domain.ErrForbidden
			}
			if e.Status.Terminal() || e.Disputed {
				return domain.ErrInvalidState
			}
			e.Disputed = true
			e.Recompute()
			e.UpdatedAt = time.Now().UTC()
			if err := tx.UpdateEscrow(ctx, e); err != nil {
				return err
			}
			esc = e
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, notifications.Event{
		Type:       domain.EventDisputed,
		EntityID:   esc.ID,
		ActorID:    actor.UserID,
		Recipients: []string{esc.ClientID},
	})
	return esc, nil
}

// ResolveDispute closes an open dispute. Outcome "release" returns the
// escrow to the releasing path; "refund" forces a refund. Admin only.
func (s *EscrowService) ResolveDispute(ctx context.Context, actor Identity, escrowID string, outcome domain.DisputeOutcome) (*domain.Escrow, error) {
	if actor.Role != RoleAdmin {
		return nil, domain.ErrForbidden
	}

	var esc *domain.Escrow
	err := s.retryConflicts(ctx, func() error {
		return s.store.InTx(ctx, func(tx domain.Tx) error {
			e, err := tx.EscrowForUpdate(ctx, escrowID)
			if err != nil {
				return err
			}
			if !e.Disputed {
				return domain.ErrInvalidState
			}
			e.Disputed = false
			if outcome == domain.OutcomeRefund {
				e.Refunded = true
			}
			e.Recompute()
			e.UpdatedAt = time.Now().UTC()
			if err := tx.UpdateEscrow(ctx, e); err != nil {
				return err
			}
			esc = e
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, notifications.Event{
		Type:       domain.EventDisputeResolved,
		EntityID:   esc.ID,
		ActorID:    actor.UserID,
		Recipients: []string{esc.ClientID},
		Payload:    map[string]interface{}{"outcome": outcome, "status": esc.Status},
	})
	return esc, nil
}

// Get returns the escrow when the caller is a party to it or an admin.
func (s *EscrowService) Get(ctx context.Context, actor Identity, escrowID string) (*domain.Escrow, error) {
	e, err := s.store.EscrowByID(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if actor.Role == RoleAdmin || e.ClientID == actor.UserID {
		return e, nil
	}
	op, err := s.operationFor(ctx, e.ProjectID)
	if err == nil && op != nil && op.ProviderID == actor.UserID {
		return e, nil
	}
	return nil, domain.ErrForbidden
}

// GetForProject returns the escrow attached to an operation.
func (s *EscrowService) GetForProject(ctx context.Context, actor Identity, projectID string) (*domain.Escrow, error) {
	e, err := s.store.EscrowForProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, actor, e.ID)
}

func (s *EscrowService) operationFor(ctx context.Context, projectID string) (*domain.OperationState, error) {
	var op *domain.OperationState
	err := s.store.InTx(ctx, func(tx domain.Tx) error {
		var err error
		op, err = tx.Operation(ctx, projectID)
		return err
	})
	return op, err
}

func (s *EscrowService) retryConflicts(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = fn()
		if !errors.Is(err, domain.ErrConflictRetry) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}
