package auth

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/domain"
)

const (
	CtxFirebaseUID = "firebase_uid"

	HeaderDeviceID   = "X-Device-Id"
	HeaderViewerRole = "X-Viewer-Role"
	HeaderViewerName = "X-Viewer-Name"
)

// Session is the verified identity behind a request in durable mode.
type Session struct {
	UID         string
	Email       string
	DisplayName string
	Role        domain.Role
}

type sessionKey struct{}
type deviceKey struct{}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the session stored in ctx, if any.
func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	if !ok || s.UID == "" {
		return Session{}, false
	}
	return s, true
}

// WithDevice stores the local-mode device id in ctx.
func WithDevice(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, deviceKey{}, deviceID)
}

// DeviceFrom returns the local-mode device id stored in ctx.
func DeviceFrom(ctx context.Context) string {
	id, _ := ctx.Value(deviceKey{}).(string)
	return id
}

// UserFirebaseUID extracts the Firebase UID from the Gin context.
func UserFirebaseUID(c *gin.Context) string {
	return strings.TrimSpace(c.GetString(CtxFirebaseUID))
}
