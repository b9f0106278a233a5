package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/worklane/worklane-backend/internal/auth"
	escrowdomain "github.com/worklane/worklane-backend/internal/escrow/domain"
	"github.com/worklane/worklane-backend/internal/operations/domain"
	"github.com/worklane/worklane-backend/internal/operations/service"
)

type Handler struct {
	svc *service.OperationService
}

func New(svc *service.OperationService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) create(c *gin.Context) {
	var req createOperationReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	op, err := h.svc.Create(c.Request.Context(), auth.UserDBID(c), service.CreateInput{
		Title:          strings.TrimSpace(req.Title),
		Description:    req.Description,
		BudgetAmount:   req.BudgetAmount,
		BudgetCurrency: req.BudgetCurrency,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, operationResp{OK: true, Operation: op})
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.svc.ListForUser(c.Request.Context(), auth.UserDBID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "operations": items})
}

func (h *Handler) get(c *gin.Context) {
	op, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, operationResp{OK: true, Operation: op})
}

func (h *Handler) assign(c *gin.Context) {
	var req assignReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	op, err := h.svc.Assign(c.Request.Context(), auth.UserDBID(c), c.Param("id"), req.ProviderID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, operationResp{OK: true, Operation: op})
}

func (h *Handler) start(c *gin.Context) {
	op, err := h.svc.Start(c.Request.Context(), auth.UserDBID(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, operationResp{OK: true, Operation: op})
}

func (h *Handler) complete(c *gin.Context) {
	op, err := h.svc.Complete(c.Request.Context(), auth.UserDBID(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, operationResp{OK: true, Operation: op})
}

func (h *Handler) cancel(c *gin.Context) {
	op, err := h.svc.Cancel(c.Request.Context(), auth.UserDBID(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, operationResp{OK: true, Operation: op})
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"ok": false, "error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, escrowdomain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidBudget), errors.Is(err, domain.ErrInvalidCurrency):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrAlreadyAssigned),
		errors.Is(err, domain.ErrEscrowNotSettled):
		return http.StatusConflict
	case errors.Is(err, domain.ErrConflictRetry):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
