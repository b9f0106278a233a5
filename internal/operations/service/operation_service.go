package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	escrowdomain "github.com/worklane/worklane-backend/internal/escrow/domain"
	"github.com/worklane/worklane-backend/internal/notifications"
	"github.com/worklane/worklane-backend/internal/operations/domain"
)

const maxConflictRetries = 3

type Publisher interface {
	Publish(ctx context.Context, ev notifications.Event)
}

// OperationService drives the job state machine. Completion and
// cancellation are transactional with the operation's escrows: completion
// requires every escrow settled, cancellation refunds the active escrow or
// aborts.
type OperationService struct {
	store  domain.Store
	events Publisher
}

func NewOperationService(store domain.Store, events Publisher) *OperationService {
	return &OperationService{store: store, events: events}
}

type CreateInput struct {
	Title          string
	Description    string
	BudgetAmount   int64
	BudgetCurrency string
}

func (s *OperationService) Create(ctx context.Context, clientID string, in CreateInput) (*domain.Operation, error) {
	if in.BudgetAmount < 0 {
		return nil, domain.ErrInvalidBudget
	}
	currency := strings.ToUpper(strings.TrimSpace(in.BudgetCurrency))
	if len(currency) != 3 {
		return nil, domain.ErrInvalidCurrency
	}

	now := time.Now().UTC()
	op := &domain.Operation{
		ID:             uuid.New().String(),
		ClientID:       clientID,
		Provider:       domain.Unassigned(),
		Title:          in.Title,
		Description:    in.Description,
		BudgetAmount:   in.BudgetAmount,
		BudgetCurrency: currency,
		Status:         domain.StatusOpen,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := s.store.InTx(ctx, func(tx domain.Tx) error {
		return tx.InsertOperation(ctx, op)
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, notifications.Event{
		Type:       domain.EventCreated,
		EntityID:   op.ID,
		ActorID:    clientID,
		Recipients: []string{clientID},
		Payload:    map[string]interface{}{"title": op.Title, "budget_amount": op.BudgetAmount},
	})
	return op, nil
}

// Assign sets the provider exactly once and moves open → assigned.
func (s *OperationService) Assign(ctx context.Context, actorID, operationID, providerID string) (*domain.Operation, error) {
	if providerID == "" {
		return nil, domain.ErrForbidden
	}

	var op *domain.Operation
	err := s.retryConflicts(ctx, func() error {
		return s.store.InTx(ctx, func(tx domain.Tx) error {
			o, err := tx.OperationForUpdate(ctx, operationID)
			if err != nil {
				return err
			}
			if o.ClientID != actorID {
				return domain.ErrForbidden
			}
			if o.Provider.Assigned() {
				return domain.ErrAlreadyAssigned
			}
			if !domain.CanTransition(o.Status, domain.StatusAssigned) {
				return domain.ErrInvalidState
			}
			o.Provider = domain.AssignedTo(providerID)
			o.Status = domain.StatusAssigned
			o.UpdatedAt = time.Now().UTC()
			if err := tx.UpdateOperation(ctx, o); err != nil {
				return err
			}
			op = o
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, notifications.Event{
		Type:       domain.EventAssigned,
		EntityID:   op.ID,
		ActorID:    actorID,
		Recipients: []string{op.ClientID, providerID},
	})
	return op, nil
}

// Start moves assigned → in_progress; only the assigned provider may start.
func (s *OperationService) Start(ctx context.Context, actorID, operationID string) (*domain.Operation, error) {
	var op *domain.Operation
	err := s.retryConflicts(ctx, func() error {
		return s.store.InTx(ctx, func(tx domain.Tx) error {
			o, err := tx.OperationForUpdate(ctx, operationID)
			if err != nil {
				return err
			}
			provider, ok := o.Provider.ProviderID()
			if !ok || provider != actorID {
				return domain.ErrForbidden
			}
			if !domain.CanTransition(o.Status, domain.StatusInProgress) {
				return domain.ErrInvalidState
			}
			o.Status = domain.StatusInProgress
			o.UpdatedAt = time.Now().UTC()
			if err := tx.UpdateOperation(ctx, o); err != nil {
				return err
			}
			op = o
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, notifications.Event{
		Type:       domain.EventStarted,
		EntityID:   op.ID,
		ActorID:    actorID,
		Recipients: []string{op.ClientID},
	})
	return op, nil
}

// Complete moves in_progress → completed once every escrow for the
// operation is fully released or refunded.
func (s *OperationService) Complete(ctx context.Context, actorID, operationID string) (*domain.Operation, error) {
	var op *domain.Operation
	err := s.retryConflicts(ctx, func() error {
		return s.store.InTx(ctx, func(tx domain.Tx) error {
			o, err := tx.OperationForUpdate(ctx, operationID)
			if err != nil {
				return err
			}
			if o.ClientID != actorID {
				return domain.ErrForbidden
			}
			if !domain.CanTransition(o.Status, domain.StatusCompleted) {
				return domain.ErrInvalidState
			}

			escrows, err := tx.EscrowsForOperation(ctx, o.ID)
			if err != nil {
				return err
			}
			for _, e := range escrows {
				if !e.Status.Terminal() {
					return domain.ErrEscrowNotSettled
				}
			}

			o.Status = domain.StatusCompleted
			o.UpdatedAt = time.Now().UTC()
			if err := tx.UpdateOperation(ctx, o); err != nil {
				return err
			}
			op = o
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	recipients := []string{op.ClientID}
	if provider, ok := op.Provider.ProviderID(); ok {
		recipients = append(recipients, provider)
	}
	s.events.Publish(ctx, notifications.Event{
		Type:       domain.EventCompleted,
		EntityID:   op.ID,
		ActorID:    actorID,
		Recipients: recipients,
	})
	return op, nil
}

// Cancel terminates the operation. An active escrow is refunded in the same
// transaction; a refund that the escrow state machine disallows (open
// dispute) aborts the cancellation.
func (s *OperationService) Cancel(ctx context.Context, actorID, operationID string) (*domain.Operation, error) {
	var op *domain.Operation
	var refundedEscrows []*escrowdomain.Escrow
	err := s.retryConflicts(ctx, func() error {
		refundedEscrows = nil
		return s.store.InTx(ctx, func(tx domain.Tx) error {
			o, err := tx.OperationForUpdate(ctx, operationID)
			if err != nil {
				return err
			}
			if o.ClientID != actorID {
				return domain.ErrForbidden
			}
			if !domain.CanTransition(o.Status, domain.StatusCancelled) {
				return domain.ErrInvalidState
			}

			escrows, err := tx.EscrowsForOperation(ctx, o.ID)
			if err != nil {
				return err
			}
			for _, e := range escrows {
				if e.Status.Terminal() {
					continue
				}
				if e.Disputed {
					// refund from disputed only via dispute resolution
					return domain.ErrEscrowNotSettled
				}
				e.Refunded = true
				e.Recompute()
				e.UpdatedAt = time.Now().UTC()
				if err := tx.UpdateEscrow(ctx, e); err != nil {
					return err
				}
				refundedEscrows = append(refundedEscrows, e)
			}

			o.Status = domain.StatusCancelled
			o.UpdatedAt = time.Now().UTC()
			if err := tx.UpdateOperation(ctx, o); err != nil {
				return err
			}
			op = o
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, notifications.Event{
		Type:       domain.EventCancelled,
		EntityID:   op.ID,
		ActorID:    actorID,
		Recipients: []string{op.ClientID},
	})
	for _, e := range refundedEscrows {
		s.events.Publish(ctx, notifications.Event{
			Type:       escrowdomain.EventRefunded,
			EntityID:   e.ID,
			ActorID:    actorID,
			Recipients: []string{e.ClientID},
			Payload:    map[string]interface{}{"reason": "operation cancelled"},
		})
	}
	return op, nil
}

func (s *OperationService) Get(ctx context.Context, operationID string) (*domain.Operation, error) {
	return s.store.OperationByID(ctx, operationID)
}

func (s *OperationService) ListForUser(ctx context.Context, userID string) ([]domain.Operation, error) {
	return s.store.ListForUser(ctx, userID)
}

func (s *OperationService) retryConflicts(ctx context.Context, fn func() error) error {
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
