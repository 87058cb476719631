package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/auth"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/domain"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/fanout"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/repository"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/service"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/users"
)

const (
	headerTestUID  = "X-Test-Uid"
	headerTestRole = "X-Test-Role"
)

type staticDirectory map[string]users.Profile

func (d staticDirectory) GetProfiles(_ context.Context, ids []string) (map[string]users.Profile, error) {
	out := make(map[string]users.Profile)
	for _, id := range ids {
		if p, ok := d[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

// testSession stands in for token verification: a uid header becomes a
// session, a device header becomes a local caller.
func testSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := auth.WithDevice(c.Request.Context(), c.GetHeader(auth.HeaderDeviceID))
		if uid := c.GetHeader(headerTestUID); uid != "" {
			role, _ := domain.ParseRole(c.GetHeader(headerTestRole))
			ctx = auth.WithSession(ctx, auth.Session{UID: uid, Role: role, DisplayName: uid})
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func newTestRouter(t *testing.T, limiter *service.SendLimiter) *gin.Engine {
	t.Helper()
	r, _ := newTestRouterOn(t, limiter, fanout.NewMemoryBus(16))
	return r
}

func newTestRouterOn(t *testing.T, limiter *service.SendLimiter, bus fanout.Bus) (*gin.Engine, *Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()

	durable, err := repository.OpenLocalStore(context.Background(), filepath.Join(dir, "durable.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = durable.Close() })

	pool := repository.NewLocalPool(filepath.Join(dir, "devices"))
	t.Cleanup(func() { _ = pool.Close() })

	log := zerolog.Nop()
	resolver := service.NewResolver(durable, bus, pool)
	profiles := staticDirectory{"client-1": {ID: "client-1", DisplayName: "Clara Client", Role: domain.RoleClient}}

	h := New(Deps{
		Projects:  service.NewProjectService(resolver, profiles, log),
		Lifecycle: service.NewLifecycleService(resolver, log),
		Chat:      service.NewChatService(resolver, limiter, log),
		Files:     service.NewFileService(resolver, log),
		Profiles:  profiles,
		Logger:    log,
	})
	h.keepAlive = 50 * time.Millisecond

	r := gin.New()
	r.Use(testSession())
	h.Register(r.Group("/projects"))
	h.RegisterProfiles(r.Group("/profiles"))
	return r, h
}

type caller struct {
	uid, role, device string
}

var (
	clientCaller   = caller{uid: "client-1", role: "client"}
	designerCaller = caller{uid: "designer-1", role: "designer"}
	adminCaller    = caller{uid: "admin-1", role: "admin"}
	strangerCaller = caller{uid: "client-2", role: "client"}
)

func (c caller) request(method, path string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.uid != "" {
		req.Header.Set(headerTestUID, c.uid)
		req.Header.Set(headerTestRole, c.role)
	}
	if c.device != "" {
		req.Header.Set(auth.HeaderDeviceID, c.device)
		req.Header.Set(auth.HeaderViewerRole, c.role)
	}
	return req
}

func do(t *testing.T, r http.Handler, c caller, method, path string, body any) (int, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, c.request(method, path, body))
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

// seed creates a project for client-1 with designer-1 assigned.
func seed(t *testing.T, r http.Handler) string {
	t.Helper()
	code, body := do(t, r, clientCaller, http.MethodPost, "/projects", gin.H{"name": "Logo refresh", "type": "Branding"})
	require.Equal(t, http.StatusCreated, code, body)
	id := body["project"].(map[string]any)["id"].(string)

	code, body = do(t, r, adminCaller, http.MethodPut, "/projects/"+id+"/designer", gin.H{"designer_id": "designer-1"})
	require.Equal(t, http.StatusOK, code, body)
	return id
}

func TestProjects_CreateListGet(t *testing.T) {
	r := newTestRouter(t, nil)
	id := seed(t, r)

	code, body := do(t, r, clientCaller, http.MethodGet, "/projects?q=clara&sort=name", nil)
	require.Equal(t, http.StatusOK, code)
	items := body["projects"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "Clara Client", items[0].(map[string]any)["client_name"])

	code, body = do(t, r, clientCaller, http.MethodGet, "/projects?status=Review", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["projects"])

	code, _ = do(t, r, clientCaller, http.MethodGet, "/projects?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, r, designerCaller, http.MethodGet, "/projects/"+id, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "in_progress", body["project"].(map[string]any)["status"])

	code, _ = do(t, r, strangerCaller, http.MethodGet, "/projects/"+id, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = do(t, r, clientCaller, http.MethodGet, "/projects/missing", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, r, designerCaller, http.MethodPost, "/projects", gin.H{"name": "Nope"})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = do(t, r, clientCaller, http.MethodPost, "/projects", gin.H{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestProjects_StatusTransitions(t *testing.T) {
	r := newTestRouter(t, nil)
	id := seed(t, r)
	path := "/projects/" + id + "/status"

	code, _ := do(t, r, clientCaller, http.MethodPatch, path, gin.H{"status": "review"})
	assert.Equal(t, http.StatusForbidden, code)

	code, body := do(t, r, designerCaller, http.MethodPatch, path, gin.H{"status": "Review", "expected_status": "in_progress"})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "review", body["project"].(map[string]any)["status"])

	code, body = do(t, r, clientCaller, http.MethodPatch, path, gin.H{"status": "completed", "expected_status": "in_progress"})
	require.Equal(t, http.StatusConflict, code, body)
	assert.Equal(t, "review", body["overwritten"])
	assert.Equal(t, "completed", body["project"].(map[string]any)["status"])

	code, _ = do(t, r, designerCaller, http.MethodPatch, path, gin.H{"status": "shipped"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestProjects_HoursAndProfiles(t *testing.T) {
	r := newTestRouter(t, nil)
	id := seed(t, r)

	code, body := do(t, r, designerCaller, http.MethodPost, "/projects/"+id+"/hours", gin.H{"hours": 2.5})
	require.Equal(t, http.StatusOK, code, body)
	assert.InDelta(t, 2.5, body["project"].(map[string]any)["hours_used"], 0.001)

	code, _ = do(t, r, clientCaller, http.MethodPost, "/projects/"+id+"/hours", gin.H{"hours": 1})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = do(t, r, designerCaller, http.MethodPost, "/projects/"+id+"/hours", gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, r, clientCaller, http.MethodGet, "/profiles?ids=client-1,,nobody", nil)
	require.Equal(t, http.StatusOK, code)
	profiles := body["profiles"].(map[string]any)
	assert.Len(t, profiles, 1)
	assert.Contains(t, profiles, "client-1")
}

func TestMessages_SendListRead(t *testing.T) {
	r := newTestRouter(t, nil)
	id := seed(t, r)
	path := "/projects/" + id + "/messages"

	code, body := do(t, r, clientCaller, http.MethodPost, path, gin.H{"content": "  first draft?  "})
	require.Equal(t, http.StatusCreated, code, body)
	first := body["message"].(map[string]any)
	assert.Equal(t, "first draft?", first["content"])
	assert.Equal(t, "client", first["sender_role"])

	code, body = do(t, r, clientCaller, http.MethodPost, path, gin.H{"id": first["id"], "content": "first draft?"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["duplicate"])

	code, _ = do(t, r, clientCaller, http.MethodPost, path, gin.H{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, r, clientCaller, http.MethodPost, path, gin.H{"id": "not-a-uuid", "content": "x"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, r, designerCaller, http.MethodGet, path+"/unread", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["unread"])

	code, body = do(t, r, designerCaller, http.MethodPost, path+"/read", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["marked"])

	code, body = do(t, r, designerCaller, http.MethodPost, path+"/read", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 0, body["marked"])

	code, body = do(t, r, designerCaller, http.MethodPost, path, gin.H{"content": "sure, attached"})
	require.Equal(t, http.StatusCreated, code)
	second := body["message"].(map[string]any)

	code, body = do(t, r, clientCaller, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["messages"], 2)

	after := "?after_created_at=" + first["created_at"].(string) + "&after_id=" + first["id"].(string)
	code, body = do(t, r, clientCaller, http.MethodGet, path+after, nil)
	require.Equal(t, http.StatusOK, code)
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, second["id"], msgs[0].(map[string]any)["id"])

	code, _ = do(t, r, clientCaller, http.MethodGet, path+"?after_created_at=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, r, strangerCaller, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestMessages_RateLimited(t *testing.T) {
	r := newTestRouter(t, service.NewSendLimiter(0.001, 1))
	id := seed(t, r)
	path := "/projects/" + id + "/messages"

	code, _ := do(t, r, clientCaller, http.MethodPost, path, gin.H{"content": "one"})
	require.Equal(t, http.StatusCreated, code)
	code, _ = do(t, r, clientCaller, http.MethodPost, path, gin.H{"content": "two"})
	assert.Equal(t, http.StatusTooManyRequests, code)
}

func TestFiles_RegisterListDelete(t *testing.T) {
	r := newTestRouter(t, nil)
	id := seed(t, r)
	path := "/projects/" + id + "/files"

	code, body := do(t, r, designerCaller, http.MethodPost, path, gin.H{
		"file_name":       "moodboard.pdf",
		"file_size_bytes": 2048,
		"file_url":        "https://files.example.com/moodboard.pdf",
	})
	require.Equal(t, http.StatusCreated, code, body)
	file := body["file"].(map[string]any)
	assert.Equal(t, "designer", file["uploaded_by_role"])

	code, _ = do(t, r, designerCaller, http.MethodPost, path, gin.H{"file_name": ""})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, r, clientCaller, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["files"], 1)

	fileID := file["id"].(string)
	for i := 0; i < 2; i++ {
		code, _ = do(t, r, clientCaller, http.MethodDelete, path+"/"+fileID, nil)
		assert.Equal(t, http.StatusOK, code)
	}

	code, body = do(t, r, clientCaller, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["files"])
}

func TestLocalMode_DeviceHeader(t *testing.T) {
	r := newTestRouter(t, nil)
	device := caller{device: "tablet-7", role: "designer"}

	code, _ := do(t, r, caller{}, http.MethodGet, "/projects", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := do(t, r, caller{device: "tablet-7", role: "client"}, http.MethodPost, "/projects", gin.H{"name": "Offline sketch"})
	require.Equal(t, http.StatusCreated, code, body)
	id := body["project"].(map[string]any)["id"].(string)

	code, body = do(t, r, device, http.MethodPost, "/projects/"+id+"/messages", gin.H{"content": "local note"})
	require.Equal(t, http.StatusCreated, code, body)

	code, body = do(t, r, device, http.MethodGet, "/projects", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["projects"], 1)

	// A session never sees the device's projects.
	code, _ = do(t, r, clientCaller, http.MethodGet, "/projects/"+id, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = do(t, r, caller{device: "phone-2", role: "client"}, http.MethodGet, "/projects", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["projects"])
}

type sseEvent struct {
	name string
	data map[string]any
}

func readEvent(t *testing.T, sc *bufio.Scanner) sseEvent {
	t.Helper()
	var ev sseEvent
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev.data))
		case line == "" && ev.name != "":
			return ev
		}
	}
	t.Fatalf("stream ended: %v", sc.Err())
	return ev
}

func TestStream_SnapshotThenLiveEvents(t *testing.T) {
	r := newTestRouter(t, nil)
	id := seed(t, r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	code, _ := do(t, r, clientCaller, http.MethodPost, "/projects/"+id+"/messages", gin.H{"content": "before"})
	require.Equal(t, http.StatusCreated, code)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req := designerCaller.request(http.MethodGet, "/projects/"+id+"/stream", nil)
	req = req.WithContext(ctx)
	req.RequestURI = ""
	req.URL.Scheme = "http"
	req.URL.Host = strings.TrimPrefix(srv.URL, "http://")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sc := bufio.NewScanner(resp.Body)
	snap := readEvent(t, sc)
	require.Equal(t, "snapshot", snap.name)
	assert.Len(t, snap.data["messages"], 1)

	code, _ = do(t, r, clientCaller, http.MethodPost, "/projects/"+id+"/messages", gin.H{"content": "after"})
	require.Equal(t, http.StatusCreated, code)

	ev := readEvent(t, sc)
	require.Equal(t, "message", ev.name)
	assert.Equal(t, "after", ev.data["message"].(map[string]any)["content"])

	code, _ = do(t, r, designerCaller, http.MethodPatch, "/projects/"+id+"/status", gin.H{"status": "review"})
	require.Equal(t, http.StatusOK, code)

	ev = readEvent(t, sc)
	require.Equal(t, "status", ev.name)
	assert.Equal(t, "review", ev.data["project"].(map[string]any)["status"])
}

func openStream(t *testing.T, ctx context.Context, srv *httptest.Server, c caller, id string) *http.Response {
	t.Helper()
	req := c.request(http.MethodGet, "/projects/"+id+"/stream", nil)
	req = req.WithContext(ctx)
	req.RequestURI = ""
	req.URL.Scheme = "http"
	req.URL.Host = strings.TrimPrefix(srv.URL, "http://")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestStream_RedisDownFallsBackToResync(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1, DialTimeout: 200 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	bus := fanout.NewRedisBus(client, zerolog.Nop(), fanout.WithBlock(20*time.Millisecond), fanout.WithBackoff(10*time.Millisecond))
	r, h := newTestRouterOn(t, nil, bus)
	h.resyncEvery = 100 * time.Millisecond
	id := seed(t, r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	code, body := do(t, r, clientCaller, http.MethodPost, "/projects/"+id+"/messages", gin.H{"content": "before"})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, true, body["resync"])

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp := openStream(t, ctx, srv, designerCaller, id)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sc := bufio.NewScanner(resp.Body)
	snap := readEvent(t, sc)
	require.Equal(t, "snapshot", snap.name)
	assert.Len(t, snap.data["messages"], 1)

	code, _ = do(t, r, clientCaller, http.MethodPost, "/projects/"+id+"/messages", gin.H{"content": "after"})
	require.Equal(t, http.StatusCreated, code)

	for {
		ev := readEvent(t, sc)
		msgs, _ := ev.data["messages"].([]any)
		if ev.name == "resync" && len(msgs) == 2 {
			break
		}
	}
}

func TestStream_Forbidden(t *testing.T) {
	r := newTestRouter(t, nil)
	id := seed(t, r)

	code, _ := do(t, r, strangerCaller, http.MethodGet, "/projects/"+id+"/stream", nil)
	assert.Equal(t, http.StatusForbidden, code)
}
