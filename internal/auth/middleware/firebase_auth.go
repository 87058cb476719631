package middleware

import (
	"context"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	collabauth "github.com/GoSim-25-26J-441/studio-collab-backend/internal/auth"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/domain"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/users"
)

// TokenVerifier is the part of *auth.Client the middleware needs.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// UserRecorder persists the identity behind a verified token and returns the
// role stored for it.
type UserRecorder interface {
	EnsureUser(ctx context.Context, u users.UpsertUser) (domain.Role, error)
}

// OptionalSession attaches a durable-mode session when the request carries a
// valid Firebase ID token and leaves it in local mode otherwise. A token that
// is present but invalid is rejected rather than silently downgraded.
// verifier and recorder may be nil.
func OptionalSession(verifier TokenVerifier, recorder UserRecorder, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if device := strings.TrimSpace(c.GetHeader(collabauth.HeaderDeviceID)); device != "" {
			ctx = collabauth.WithDevice(ctx, device)
		}

		token := extractToken(c)
		if token != "" && verifier != nil {
			decoded, err := verifier.VerifyIDToken(ctx, token)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "invalid token"})
				c.Abort()
				return
			}

			session, hasRole := sessionFromToken(decoded)
			if recorder != nil {
				u := users.UpsertUser{
					FirebaseUID: session.UID,
					Email:       session.Email,
					DisplayName: session.DisplayName,
					PhotoURL:    claimString(decoded.Claims, "picture"),
				}
				// Without a role claim the stored role stands.
				if hasRole {
					u.Role = session.Role
				}
				stored, err := recorder.EnsureUser(ctx, u)
				if err != nil {
					log.Error().Err(err).Str("uid", session.UID).Msg("ensure user failed")
					c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "ensure user: " + err.Error()})
					c.Abort()
					return
				}
				if !hasRole && stored != "" {
					session.Role = stored
				}
			}

			ctx = collabauth.WithSession(ctx, session)
			c.Set(collabauth.CtxFirebaseUID, session.UID)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func sessionFromToken(t *auth.Token) (collabauth.Session, bool) {
	raw := make(map[string]any, len(t.Claims)+1)
	for k, v := range t.Claims {
		raw[k] = v
	}
	raw["id"] = t.UID

	p := users.Normalize(raw)
	_, hasRole := users.RoleClaim(raw)
	return collabauth.Session{
		UID:         t.UID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		Role:        p.Role,
	}, hasRole
}

func claimString(claims map[string]interface{}, key string) string {
	s, _ := claims[key].(string)
	return s
}

// extractToken extracts the Bearer token from the Authorization header
func extractToken(c *gin.Context) string {
	bearerToken := c.GetHeader("Authorization")
	if len(bearerToken) > 7 && strings.HasPrefix(bearerToken, "Bearer ") {
		return strings.TrimSpace(bearerToken[7:])
	}
	return ""
}
