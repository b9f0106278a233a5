package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/worklane/worklane-backend/internal/storage/postgres"
)

type Handler struct {
	stats *postgres.StatsStore
}

// Register wires the admin endpoints; the caller guards the group with
// auth.RequireRole("admin").
func Register(rg *gin.RouterGroup, stats *postgres.StatsStore) {
	h := &Handler{stats: stats}

	rg.GET("/stats", h.platformStats)
}

func (h *Handler) platformStats(c *gin.Context) {
	stats, err := h.stats.PlatformStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "stats": stats})
}
