package domain

import "errors"

var (
	ErrNotFound         = errors.New("operation not found")
	ErrInvalidBudget    = errors.New("budget must not be negative")
	ErrInvalidCurrency  = errors.New("currency must be a three-letter ISO code")
	ErrInvalidState     = errors.New("operation state does not permit this transition")
	ErrAlreadyAssigned  = errors.New("operation already has a provider")
	ErrEscrowNotSettled = errors.New("operation has an unsettled escrow")
	ErrForbidden        = errors.New("caller may not act on this operation")
	ErrConflictRetry    = errors.New("concurrent write conflict")
)
