package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/domain"
	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/pathmap"
	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/repoclient"
	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/repository"
	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/service"
)

type memRepo struct {
	mu    sync.Mutex
	files map[string]string
	seq   int
}

func (r *memRepo) GetFile(_ context.Context, path string) (*domain.RepositoryFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	content, ok := r.files[path]
	if !ok {
		return nil, nil
	}
	return &domain.RepositoryFile{Content: content, Revision: "r"}, nil
}

func (r *memRepo) UpsertFile(_ context.Context, path, content, _, _ string) (domain.Commit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.files[path] = content
	return domain.Commit{ID: fmt.Sprintf("c%d", r.seq), Path: path}, nil
}

func (r *memRepo) VerifyWriteAccess(context.Context) error { return nil }

type memOpener struct{ repo *memRepo }

func (o memOpener) Open(context.Context, domain.DestinationRepository) (repoclient.Client, error) {
	return o.repo, nil
}

type testServer struct {
	router *gin.Engine
	repo   *memRepo
	now    time.Time
}

func newTestServer(t *testing.T, files map[string]string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	layouts, err := pathmap.LoadLayouts("")
	require.NoError(t, err)

	ts := &testServer{
		repo: &memRepo{files: files},
		now:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	opener := memOpener{repo: ts.repo}

	ids := 0
	reviews := service.NewReviewService(repository.NewSessionRepository(client), opener,
		service.WithClock(func() time.Time { return ts.now }),
		service.WithLogger(zerolog.Nop()),
		service.WithIDGenerator(func() string {
			ids++
			return fmt.Sprintf("s%d", ids)
		}),
	)
	plans := service.NewPlanService(layouts, opener, 2, 0, nil)

	ts.router = gin.New()
	New(plans, reviews).Register(ts.router.Group("/api/v1/writeback"))
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, "/api/v1/writeback"+path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return rr, out
}

func sessionBody() map[string]any {
	return map[string]any{
		"site_url": "https://x.test",
		"targets": []map[string]any{{
			"url":    "https://x.test/about",
			"blocks": []map[string]any{{"kind": "answer-capsule", "text": "<p>We fix pipes.</p>"}},
		}},
		"layout":                 "astro",
		"destination_repository": map[string]any{"provider": "github", "owner": "acme", "name": "site"},
	}
}

func TestPlanEndpoint(t *testing.T) {
	ts := newTestServer(t, map[string]string{})

	rr, out := ts.do(t, http.MethodPost, "/plans", map[string]any{
		"targets": []map[string]any{
			{"url": "https://x.test/about", "blocks": []map[string]any{{"kind": "meta", "text": "<meta>"}}},
			{"url": "https://x.test/../etc", "blocks": []map[string]any{{"kind": "meta", "text": "<meta>"}}},
		},
		"layout":   "static",
		"existing": map[string]string{"about/index.html": "<main>\n</main>\n"},
	})
	require.Equal(t, http.StatusOK, rr.Code)

	changes := out["planned_changes"].([]any)
	require.Len(t, changes, 1)
	change := changes[0].(map[string]any)
	assert.Equal(t, "about/index.html", change["destination_path"])
	assert.Equal(t, "update", change["action"])
	assert.Len(t, out["path_errors"], 1)
	assert.Len(t, out["diff_previews"], 1)
}

func TestPlanEndpoint_BadRequests(t *testing.T) {
	ts := newTestServer(t, map[string]string{})

	rr, _ := ts.do(t, http.MethodPost, "/plans", map[string]any{"layout": "astro"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, out := ts.do(t, http.MethodPost, "/plans", map[string]any{
		"targets": []map[string]any{{"url": "https://x.test/a"}},
		"layout":  "jekyll",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_request", out["code"])
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"src/pages/about/index.astro": "<html><body><main>\n</main></body></html>\n",
	})

	rr, out := ts.do(t, http.MethodPost, "/sessions", sessionBody())
	require.Equal(t, http.StatusCreated, rr.Code, out)
	id := out["session_id"].(string)
	assert.Equal(t, "s1", id)
	assert.Equal(t, "pending", out["status"])
	assert.Len(t, out["diff_previews"], 1)

	rr, out = ts.do(t, http.MethodGet, "/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	session := out["session"].(map[string]any)
	change := session["planned_changes"].([]any)[0].(map[string]any)
	assert.NotContains(t, change, "merged_content")
	assert.NotContains(t, change, "previous_content")
	assert.Equal(t, []any{"/about"}, session["selected_target_paths"])

	rr, out = ts.do(t, http.MethodGet, "/sessions/"+id+"?include_content=true", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	change = out["session"].(map[string]any)["planned_changes"].([]any)[0].(map[string]any)
	assert.Contains(t, change["merged_content"], "We fix pipes.")

	rr, out = ts.do(t, http.MethodPost, "/sessions/"+id+"/apply", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "session_not_approved", out["code"])

	rr, out = ts.do(t, http.MethodPost, "/sessions/"+id+"/approve", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "pending", out["previous_status"])
	assert.Equal(t, "approved", out["new_status"])

	rr, out = ts.do(t, http.MethodPost, "/sessions/"+id+"/apply", nil)
	require.Equal(t, http.StatusOK, rr.Code, out)
	assert.Equal(t, true, out["applied"])
	assert.Equal(t, false, out["already_applied"])
	assert.Equal(t, []any{"c1"}, out["commit_ids"])
	assert.Contains(t, ts.repo.files["src/pages/about/index.astro"], "<!-- answer-capsule:start -->")

	rr, out = ts.do(t, http.MethodPost, "/sessions/"+id+"/apply", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, out["already_applied"])
	assert.Equal(t, []any{"c1"}, out["commit_ids"])
	assert.Equal(t, 1, ts.repo.seq)

	rr, out = ts.do(t, http.MethodPost, "/sessions/"+id+"/approve", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "session_already_applied", out["code"])

	rr, out = ts.do(t, http.MethodGet, "/sessions?site_url=https://x.test", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []any{"s1"}, out["session_ids"])
}

func TestSessionExpired(t *testing.T) {
	ts := newTestServer(t, map[string]string{})

	body := sessionBody()
	body["ttl_ms"] = 1000
	rr, out := ts.do(t, http.MethodPost, "/sessions", body)
	require.Equal(t, http.StatusCreated, rr.Code, out)
	id := out["session_id"].(string)

	ts.now = ts.now.Add(1100 * time.Millisecond)

	rr, out = ts.do(t, http.MethodGet, "/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "expired", out["session"].(map[string]any)["status"])

	rr, out = ts.do(t, http.MethodPost, "/sessions/"+id+"/apply", nil)
	assert.Equal(t, http.StatusGone, rr.Code)
	assert.Equal(t, "session_expired", out["code"])
}

func TestSessionDrift(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"src/pages/about/index.astro": "<main>\n</main>\n",
	})

	rr, out := ts.do(t, http.MethodPost, "/sessions", sessionBody())
	require.Equal(t, http.StatusCreated, rr.Code)
	id := out["session_id"].(string)

	rr, _ = ts.do(t, http.MethodPost, "/sessions/"+id+"/approve", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	ts.repo.files["src/pages/about/index.astro"] = "<main>edited</main>\n"

	rr, out = ts.do(t, http.MethodPost, "/sessions/"+id+"/apply", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "content_drift", out["code"])
	assert.Equal(t, "src/pages/about/index.astro", out["path"])
}

func TestSessionErrors(t *testing.T) {
	ts := newTestServer(t, map[string]string{})

	rr, out := ts.do(t, http.MethodGet, "/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "session_not_found", out["code"])

	rr, _ = ts.do(t, http.MethodPost, "/sessions/nope/approve", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr, _ = ts.do(t, http.MethodPost, "/sessions", map[string]any{"site_url": "https://x.test"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	body := sessionBody()
	body["destination_repository"] = map[string]any{"provider": "github"}
	rr, out = ts.do(t, http.MethodPost, "/sessions", body)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_request", out["code"])

	rr, _ = ts.do(t, http.MethodGet, "/sessions", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, out = ts.do(t, http.MethodGet, "/applies?site_url=https://x.test", nil)
	assert.Equal(t, http.StatusNotImplemented, rr.Code)
	assert.Equal(t, "not_supported", out["code"])
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{domain.ErrSessionNotFound, http.StatusNotFound},
		{fmt.Errorf("load: %w", domain.ErrSessionExpired), http.StatusGone},
		{&domain.ContentDriftError{Path: "a"}, http.StatusConflict},
		{&domain.RepositoryError{Op: "get", StatusCode: 500, Err: domain.ErrRepositoryUnavailable}, http.StatusBadGateway},
		{&domain.RepositoryError{Op: "verify", Err: domain.ErrWriteAccessDenied}, http.StatusBadGateway},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := classify(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}
