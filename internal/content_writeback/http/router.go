package http

import "github.com/gin-gonic/gin"

// Register attaches the planning and review routes to the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/plans", h.plan)

	rg.POST("/sessions", h.createSession)
	rg.GET("/sessions", h.listSessions)
	rg.GET("/sessions/:id", h.getSession)
	rg.POST("/sessions/:id/approve", h.approveSession)
	rg.POST("/sessions/:id/apply", h.applySession)

	rg.GET("/applies", h.listApplies)
}
