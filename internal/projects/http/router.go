package http

import "github.com/gin-gonic/gin"

// Register attaches project routes to the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("", h.create)
	rg.GET("", h.list)
	rg.GET("/:id", h.get)
	rg.PATCH("/:id/status", h.transition)
	rg.PUT("/:id/designer", h.assignDesigner)
	rg.POST("/:id/hours", h.logHours)

	rg.GET("/:id/messages", h.listMessages)
	rg.POST("/:id/messages", h.sendMessage)
	rg.POST("/:id/messages/read", h.markRead)
	rg.GET("/:id/messages/unread", h.unreadCount)
	rg.GET("/:id/stream", h.stream)

	rg.GET("/:id/files", h.listFiles)
	rg.POST("/:id/files", h.registerFile)
	rg.DELETE("/:id/files/:file_id", h.deleteFile)
}

// RegisterProfiles attaches the profile lookup used to label messages.
func (h *Handler) RegisterProfiles(rg *gin.RouterGroup) {
	rg.GET("", h.profilesLookup)
}
