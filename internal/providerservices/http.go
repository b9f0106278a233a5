package providerservices

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/worklane/worklane-backend/internal/auth"
)

type Handler struct {
	repo *Repo
}

func Register(rg *gin.RouterGroup, repo *Repo) {
	h := &Handler{repo: repo}

	rg.POST("", h.create)
	rg.GET("", h.listMine)
	rg.GET("/provider/:provider_id", h.listForProvider)
	rg.PATCH("/:id/active", h.setActive)
	rg.PUT("/availability", h.replaceWindows)
	rg.GET("/availability/:provider_id", h.listWindows)
}

type createReq struct {
	Title        string `json:"title" binding:"required"`
	Description  string `json:"description,omitempty"`
	RateAmount   int64  `json:"rate_amount" binding:"required"`
	RateCurrency string `json:"rate_currency" binding:"required"`
}

func (h *Handler) create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	s, err := h.repo.Create(c.Request.Context(), auth.UserDBID(c),
		strings.TrimSpace(req.Title), req.Description, req.RateAmount, strings.ToUpper(req.RateCurrency))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "service": s})
}

func (h *Handler) listMine(c *gin.Context) {
	h.list(c, auth.UserDBID(c))
}

func (h *Handler) listForProvider(c *gin.Context) {
	h.list(c, c.Param("provider_id"))
}

func (h *Handler) list(c *gin.Context, providerID string) {
	items, err := h.repo.ListForProvider(c.Request.Context(), providerID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "services": items})
}

type setActiveReq struct {
	Active bool `json:"active"`
}

func (h *Handler) setActive(c *gin.Context) {
	var req setActiveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	s, err := h.repo.SetActive(c.Request.Context(), auth.UserDBID(c), c.Param("id"), req.Active)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "service": s})
}

type replaceWindowsReq struct {
	Windows []Window `json:"windows"`
}

func (h *Handler) replaceWindows(c *gin.Context) {
	var req replaceWindowsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	if err := h.repo.ReplaceWindows(c.Request.Context(), auth.UserDBID(c), req.Windows); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) listWindows(c *gin.Context) {
	items, err := h.repo.ListWindows(c.Request.Context(), c.Param("provider_id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "windows": items})
}

func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, ErrInvalidRate), errors.Is(err, ErrInvalidWindow):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
	}
}
