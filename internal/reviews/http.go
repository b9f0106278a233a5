package reviews

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/worklane/worklane-backend/internal/auth"
)

type Handler struct {
	repo *Repo
}

func Register(rg *gin.RouterGroup, repo *Repo) {
	h := &Handler{repo: repo}

	rg.POST("", h.create)
	rg.GET("/user/:user_id", h.listForUser)
}

type createReq struct {
	OperationID string `json:"operation_id" binding:"required"`
	Rating      int    `json:"rating" binding:"required"`
	Comment     string `json:"comment,omitempty"`
}

func (h *Handler) create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	rev, err := h.repo.Create(c.Request.Context(), auth.UserDBID(c), req.OperationID, req.Rating, req.Comment)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "review": rev})
}

func (h *Handler) listForUser(c *gin.Context) {
	targetID := c.Param("user_id")

	items, err := h.repo.ListForUser(c.Request.Context(), targetID)
	if err != nil {
		fail(c, err)
		return
	}
	summary, err := h.repo.SummaryForUser(c.Request.Context(), targetID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "reviews": items, "summary": summary})
}

func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, ErrInvalidRating):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, ErrNotCompleted), errors.Is(err, ErrAlreadyReviewed):
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
	}
}
