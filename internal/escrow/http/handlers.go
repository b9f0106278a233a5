package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/worklane/worklane-backend/internal/auth"
	"github.com/worklane/worklane-backend/internal/escrow/domain"
	"github.com/worklane/worklane-backend/internal/escrow/service"
)

type Handler struct {
	svc *service.EscrowService
}

func New(svc *service.EscrowService) *Handler {
	return &Handler{svc: svc}
}

func actor(c *gin.Context) service.Identity {
	return service.Identity{UserID: auth.UserDBID(c), Role: auth.UserRole(c)}
}

func (h *Handler) create(c *gin.Context) {
	var req createEscrowReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	e, err := h.svc.Create(c.Request.Context(), actor(c), service.CreateInput{
		ProjectID: req.ProjectID,
		Amount:    req.Amount,
		Currency:  req.Currency,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, escrowResp{OK: true, Escrow: e})
}

func (h *Handler) get(c *gin.Context) {
	e, err := h.svc.Get(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, escrowResp{OK: true, Escrow: e})
}

func (h *Handler) release(c *gin.Context) {
	var req releaseFundsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	if req.RequestID == "" {
		req.RequestID = c.GetHeader("X-Request-Id")
	}

	e, replayed, err := h.svc.ReleaseFunds(c.Request.Context(), actor(c), c.Param("id"), service.ReleaseInput{
		Amount:    req.Amount,
		Reason:    req.Reason,
		RequestID: req.RequestID,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, escrowResp{OK: true, Escrow: e, Replayed: replayed})
}

func (h *Handler) refund(c *gin.Context) {
	var req refundReq
	_ = c.ShouldBindJSON(&req) // body optional

	e, err := h.svc.Refund(c.Request.Context(), actor(c), c.Param("id"), req.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, escrowResp{OK: true, Escrow: e})
}

func (h *Handler) dispute(c *gin.Context) {
	e, err := h.svc.Dispute(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, escrowResp{OK: true, Escrow: e})
}

func (h *Handler) resolve(c *gin.Context) {
	var req resolveDisputeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	outcome, ok := domain.ParseOutcome(req.Outcome)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "outcome must be release or refund"})
		return
	}

	e, err := h.svc.ResolveDispute(c.Request.Context(), actor(c), c.Param("id"), outcome)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, escrowResp{OK: true, Escrow: e})
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"ok": false, "error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidCurrency),
		errors.Is(err, domain.ErrMissingRequestID):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientHeldFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrDuplicateEscrow),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrOperationCancelled),
		errors.Is(err, domain.ErrCurrencyMismatch),
		errors.Is(err, domain.ErrRequestIDReused):
		return http.StatusConflict
	case errors.Is(err, domain.ErrConflictRetry):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
