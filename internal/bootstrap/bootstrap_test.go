package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/studio-collab-backend/config"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/auth"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/fanout"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: "0", AllowedOrigins: []string{"http://localhost:3000"}},
		Local:  config.LocalConfig{Dir: t.TempDir(), IdleTimeout: time.Minute},
		App:    config.AppConfig{Environment: "test", Version: "test"},
		Limits: config.LimitsConfig{SendRatePerSec: 5, SendBurst: 5, ProfileTTL: time.Minute},
		Redis:  config.RedisConfig{StreamMaxLen: 100, Block: 50 * time.Millisecond},
	}
}

func TestNewApp_LocalOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app, err := NewApp(context.Background(), testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.DB)
	assert.Nil(t, app.Redis)
	assert.IsType(t, fanout.NoopBus{}, app.Bus)

	r := app.Router()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "disabled", health["db"])
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	body, _ := json.Marshal(gin.H{"name": "Poster"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(auth.HeaderDeviceID, "laptop-1")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	tasks := app.MaintenanceTasks()
	assert.Nil(t, tasks.Streams)
	assert.Nil(t, tasks.Profiles)
	assert.NotNil(t, tasks.SendLimiter)
}

func TestNewApp_WithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Redis.URL = "redis://" + mr.Addr()

	app, err := NewApp(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer app.Close()

	assert.IsType(t, &fanout.RedisBus{}, app.Bus)
	tasks := app.MaintenanceTasks()
	assert.NotNil(t, tasks.Streams)
	assert.EqualValues(t, 100, tasks.StreamMaxLen)

	streams := app.StreamTasks()
	assert.NotNil(t, streams.Streams)
	assert.EqualValues(t, 100, streams.StreamMaxLen)
	assert.Nil(t, streams.LocalStores)
	assert.Nil(t, streams.SendLimiter)
	assert.Nil(t, streams.Profiles)

	w := httptest.NewRecorder()
	app.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Contains(t, w.Body.String(), `"redis":"up"`)
}

func TestNewBus(t *testing.T) {
	cfg := testConfig(t)
	log := zerolog.Nop()

	assert.IsType(t, fanout.NoopBus{}, newBus(false, nil, cfg, log))
	assert.IsType(t, &fanout.MemoryBus{}, newBus(true, nil, cfg, log))

	mr := miniredis.RunT(t)
	rdb, err := OpenRedis(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	defer rdb.Close()
	assert.IsType(t, &fanout.RedisBus{}, newBus(true, rdb, cfg, log))
}

func TestNewApp_BadRedisURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.Redis.URL = "not a url"
	_, err := NewApp(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestRouter_CORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app, err := NewApp(context.Background(), testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	defer app.Close()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/projects", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", auth.HeaderDeviceID)
	w := httptest.NewRecorder()
	app.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "warn", "production")
	log.Info().Msg("hidden")
	log.Warn().Str("k", "v").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.HasPrefix(out, "{"))
	assert.Contains(t, out, `"k":"v"`)

	buf.Reset()
	log = newLogger(&buf, "nonsense", "development")
	log.Info().Msg("console")
	assert.Contains(t, buf.String(), "console")
	assert.False(t, strings.HasPrefix(buf.String(), "{"))
}
