package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/domain"
)

func (h *Handler) listMessages(c *gin.Context) {
	var after *domain.Cursor
	if raw := strings.TrimSpace(c.Query("after_created_at")); raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid after_created_at"})
			return
		}
		after = &domain.Cursor{CreatedAt: ts.UTC(), ID: c.Query("after_id")}
	}

	items, err := h.chat.ListMessages(c.Request.Context(), actor(c), c.Param("id"), after)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "messages": items})
}

func (h *Handler) sendMessage(c *gin.Context) {
	var req sendReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c)
		return
	}

	res, err := h.chat.Send(c.Request.Context(), actor(c), c.Param("id"), domain.SendMessageInput{
		ID:      strings.TrimSpace(req.ID),
		Content: req.Content,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	code := http.StatusCreated
	if res.Duplicate {
		code = http.StatusOK
	}
	c.JSON(code, gin.H{
		"ok":        true,
		"message":   res.Message,
		"duplicate": res.Duplicate,
		"resync":    res.Resync,
	})
}

func (h *Handler) markRead(c *gin.Context) {
	n, err := h.chat.MarkRead(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "marked": n})
}

func (h *Handler) unreadCount(c *gin.Context) {
	n, err := h.chat.UnreadCount(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "unread": n})
}
