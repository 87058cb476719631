package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/domain"
)

func (h *Handler) create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		badBody(c)
		return
	}

	p, err := h.projects.Create(c.Request.Context(), actor(c), domain.CreateProjectInput{
		Name:        req.Name,
		Type:        req.Type,
		Description: req.Description,
		Deadline:    req.Deadline,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "project": p})
}

func (h *Handler) list(c *gin.Context) {
	f := domain.ProjectFilter{SearchText: c.Query("q")}

	if raw := c.Query("status"); raw != "" && raw != "all" {
		s, err := domain.ParseStatus(raw)
		if err != nil {
			h.fail(c, err)
			return
		}
		f.Status = &s
	}
	key, err := domain.ParseSortKey(c.Query("sort"))
	if err != nil {
		h.fail(c, err)
		return
	}
	f.SortKey = key

	items, err := h.projects.List(c.Request.Context(), actor(c), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "projects": items})
}

func (h *Handler) get(c *gin.Context) {
	p, err := h.projects.Get(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "project": p})
}

func (h *Handler) transition(c *gin.Context) {
	var req statusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c)
		return
	}
	next, err := domain.ParseStatus(req.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	var expected *domain.Status
	if req.ExpectedStatus != nil {
		s, err := domain.ParseStatus(*req.ExpectedStatus)
		if err != nil {
			h.fail(c, err)
			return
		}
		expected = &s
	}

	p, err := h.lifecycle.Transition(c.Request.Context(), actor(c), c.Param("id"), next, expected)
	var conflict *domain.ConflictError
	if errors.As(err, &conflict) {
		// The write landed; the caller learns which status it replaced.
		c.JSON(http.StatusConflict, gin.H{
			"ok":          false,
			"error":       err.Error(),
			"project":     p,
			"overwritten": conflict.Overwritten,
		})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "project": p})
}

func (h *Handler) assignDesigner(c *gin.Context) {
	var req designerReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.DesignerID) == "" {
		badBody(c)
		return
	}
	p, err := h.projects.AssignDesigner(c.Request.Context(), actor(c), c.Param("id"), strings.TrimSpace(req.DesignerID))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "project": p})
}

func (h *Handler) logHours(c *gin.Context) {
	var req hoursReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Hours == nil {
		badBody(c)
		return
	}
	p, err := h.projects.LogHours(c.Request.Context(), actor(c), c.Param("id"), *req.Hours)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "project": p})
}

func (h *Handler) profilesLookup(c *gin.Context) {
	var ids []string
	for _, part := range strings.Split(c.Query("ids"), ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 || h.profiles == nil {
		c.JSON(http.StatusOK, gin.H{"ok": true, "profiles": gin.H{}})
		return
	}

	profiles, err := h.profiles.GetProfiles(c.Request.Context(), ids)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "profiles": profiles})
}
