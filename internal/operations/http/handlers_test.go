package http

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	escrowdomain "github.com/worklane/worklane-backend/internal/escrow/domain"
	"github.com/worklane/worklane-backend/internal/operations/domain"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{escrowdomain.ErrNotFound, http.StatusNotFound},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrInvalidBudget, http.StatusBadRequest},
		{domain.ErrInvalidCurrency, http.StatusBadRequest},
		{domain.ErrInvalidState, http.StatusConflict},
		{domain.ErrAlreadyAssigned, http.StatusConflict},
		{domain.ErrEscrowNotSettled, http.StatusConflict},
		{domain.ErrConflictRetry, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), "error %v", tc.err)
	}
}
