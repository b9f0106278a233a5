package domain

import "errors"

var (
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrInvalidCurrency       = errors.New("currency must be a three-letter ISO code")
	ErrCurrencyMismatch      = errors.New("escrow currency must match operation budget currency")
	ErrDuplicateEscrow       = errors.New("an active escrow already exists for this operation")
	ErrInsufficientHeldFunds = errors.New("release exceeds held funds")
	ErrInvalidState          = errors.New("escrow state does not permit this transition")
	ErrOperationCancelled    = errors.New("operation is cancelled")
	ErrMissingRequestID      = errors.New("request id required")
	ErrRequestIDReused       = errors.New("request id was already used with a different amount")
	ErrForbidden             = errors.New("caller may not act on this escrow")
	ErrNotFound              = errors.New("escrow not found")
	ErrConflictRetry         = errors.New("concurrent write conflict")
)
