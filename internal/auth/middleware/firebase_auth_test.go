package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	collabauth "github.com/GoSim-25-26J-441/studio-collab-backend/internal/auth"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/domain"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/users"
)

type fakeVerifier struct {
	tokens map[string]*auth.Token
}

func (f fakeVerifier) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	if t, ok := f.tokens[idToken]; ok {
		return t, nil
	}
	return nil, errors.New("bad token")
}

type fakeRecorder struct {
	got    []users.UpsertUser
	stored domain.Role
	err    error
}

func (f *fakeRecorder) EnsureUser(_ context.Context, u users.UpsertUser) (domain.Role, error) {
	f.got = append(f.got, u)
	if u.Role != "" {
		return u.Role, f.err
	}
	return f.stored, f.err
}

type seen struct {
	session collabauth.Session
	ok      bool
	device  string
}

func newTestRouter(v TokenVerifier, rec UserRecorder, out *seen) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(OptionalSession(v, rec, zerolog.Nop()))
	r.GET("/whoami", func(c *gin.Context) {
		out.session, out.ok = collabauth.SessionFrom(c.Request.Context())
		out.device = collabauth.DeviceFrom(c.Request.Context())
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestOptionalSession(t *testing.T) {
	verifier := fakeVerifier{tokens: map[string]*auth.Token{
		"good": {UID: "uid-1", Claims: map[string]interface{}{
			"email": "ada@example.com",
			"name":  "Ada",
			"role":  "designer",
		}},
		"plain": {UID: "uid-2", Claims: map[string]interface{}{
			"email": "dan@example.com",
		}},
	}}

	t.Run("valid token attaches a session", func(t *testing.T) {
		var out seen
		rec := &fakeRecorder{}
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer good")

		newTestRouter(verifier, rec, &out).ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		require.True(t, out.ok)
		assert.Equal(t, "uid-1", out.session.UID)
		assert.Equal(t, "Ada", out.session.DisplayName)
		assert.Equal(t, domain.RoleDesigner, out.session.Role)
		require.Len(t, rec.got, 1)
		assert.Equal(t, "uid-1", rec.got[0].FirebaseUID)
	})

	t.Run("token without a role claim keeps the stored role", func(t *testing.T) {
		var out seen
		rec := &fakeRecorder{stored: domain.RoleAdmin}
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer plain")

		newTestRouter(verifier, rec, &out).ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		require.Len(t, rec.got, 1)
		assert.Empty(t, rec.got[0].Role)
		require.True(t, out.ok)
		assert.Equal(t, domain.RoleAdmin, out.session.Role)
		assert.Equal(t, "dan", out.session.DisplayName)
	})

	t.Run("token without a role claim and no recorder acts as client", func(t *testing.T) {
		var out seen
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer plain")

		newTestRouter(verifier, nil, &out).ServeHTTP(w, req)

		require.True(t, out.ok)
		assert.Equal(t, domain.RoleClient, out.session.Role)
	})

	t.Run("no token stays in local mode with device id", func(t *testing.T) {
		var out seen
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set(collabauth.HeaderDeviceID, "device-1")

		newTestRouter(verifier, nil, &out).ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.False(t, out.ok)
		assert.Equal(t, "device-1", out.device)
	})

	t.Run("invalid token is rejected", func(t *testing.T) {
		var out seen
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer nope")

		newTestRouter(verifier, nil, &out).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"ok":false,"error":"invalid token"}`, w.Body.String())
	})

	t.Run("tokens are ignored without a verifier", func(t *testing.T) {
		var out seen
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer good")

		newTestRouter(nil, nil, &out).ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.False(t, out.ok)
	})

	t.Run("recorder failure aborts", func(t *testing.T) {
		var out seen
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer good")

		newTestRouter(verifier, &fakeRecorder{err: errors.New("db down")}, &out).ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
