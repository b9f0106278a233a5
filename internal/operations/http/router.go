package http

import "github.com/gin-gonic/gin"

func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("", h.create)
	rg.GET("", h.list)
	rg.GET("/:id", h.get)
	rg.POST("/:id/assign", h.assign)
	rg.POST("/:id/start", h.start)
	rg.POST("/:id/complete", h.complete)
	rg.POST("/:id/cancel", h.cancel)
}
