package http

import "github.com/gin-gonic/gin"

func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("", h.create)
	rg.GET("/:id", h.get)
	rg.POST("/:id/release", h.release)
	rg.POST("/:id/refund", h.refund)
	rg.POST("/:id/dispute", h.dispute)
	rg.POST("/:id/resolve", h.resolve)
}
