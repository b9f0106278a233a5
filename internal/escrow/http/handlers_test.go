package http

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/worklane/worklane-backend/internal/escrow/domain"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrInvalidAmount, http.StatusBadRequest},
		{domain.ErrInvalidCurrency, http.StatusBadRequest},
		{domain.ErrMissingRequestID, http.StatusBadRequest},
		{domain.ErrInsufficientHeldFunds, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: 700 exceeds remaining 600 of 1000 held", domain.ErrInsufficientHeldFunds), http.StatusUnprocessableEntity},
		{domain.ErrDuplicateEscrow, http.StatusConflict},
		{domain.ErrInvalidState, http.StatusConflict},
		{domain.ErrOperationCancelled, http.StatusConflict},
		{domain.ErrCurrencyMismatch, http.StatusConflict},
		{domain.ErrRequestIDReused, http.StatusConflict},
		{domain.ErrConflictRetry, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), "error %v", tc.err)
	}
}
