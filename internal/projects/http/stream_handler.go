package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/viewer"
)

// stream pushes a project's channel to the caller as Server-Sent Events: one
// snapshot event, then message, status and resync events as they happen.
func (h *Handler) stream(c *gin.Context) {
	projectID := c.Param("id")
	ctx := c.Request.Context()

	p, err := h.projects.Get(ctx, actor(c), projectID)
	if err != nil {
		h.fail(c, err)
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "streaming unsupported"})
		return
	}

	v, err := viewer.Open(ctx, h.chat, actor(c), projectID, h.log)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer v.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	write := func(event string, payload any) bool {
		data, err := json.Marshal(payload)
		if err != nil {
			h.log.Error().Err(err).Str("event", event).Msg("encode stream event")
			return true
		}
		if _, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !write("snapshot", gin.H{"project": p, "messages": v.Messages()}) {
		return
	}

	keepAlive := time.NewTicker(h.keepAlive)
	defer keepAlive.Stop()

	// Catches events the bus never delivered, such as a publish that failed
	// in another process.
	poll := time.NewTicker(h.resyncEvery)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-keepAlive.C:
			if _, err := fmt.Fprint(c.Writer, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-poll.C:
			if err := v.Resync(ctx); err != nil && ctx.Err() == nil {
				h.log.Warn().Err(err).Str("project_id", projectID).Msg("stream resync failed")
			}

		case <-v.Notify():
			for _, u := range v.Drain() {
				if !write(string(u.Kind), u) {
					return
				}
			}
		}
	}
}
