package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)

	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("refused") }

	cases := []struct {
		name      string
		db, redis Pinger
		status    string
		dbStatus  string
	}{
		{"nothing configured", nil, nil, "healthy", "disabled"},
		{"all up", ok, ok, "healthy", "up"},
		{"db down", down, ok, "degraded", "down"},
		{"redis down", ok, down, "degraded", "up"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			NewHealthHandler("svc", "1.2.3", tc.db, tc.redis).RegisterRoutes(r)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			require.Equal(t, http.StatusOK, w.Code)

			var resp HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tc.status, resp.Status)
			assert.Equal(t, tc.dbStatus, resp.DB)
			assert.Equal(t, "svc", resp.Service)
			assert.Equal(t, "1.2.3", resp.Version)
		})
	}
}
