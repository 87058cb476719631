package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/domain"
)

func (h *Handler) listFiles(c *gin.Context) {
	items, err := h.files.List(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "files": items})
}

func (h *Handler) registerFile(c *gin.Context) {
	var req fileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c)
		return
	}
	f, err := h.files.Register(c.Request.Context(), actor(c), c.Param("id"), domain.RegisterFileInput{
		FileName:      req.FileName,
		FileSizeBytes: req.FileSizeBytes,
		FileURL:       req.FileURL,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "file": f})
}

func (h *Handler) deleteFile(c *gin.Context) {
	if err := h.files.Delete(c.Request.Context(), actor(c), c.Param("id"), c.Param("file_id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
