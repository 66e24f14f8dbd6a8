package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kiranshivaraju/vidlens/internal/api"
	mw "github.com/kiranshivaraju/vidlens/internal/api/middleware"
	"github.com/kiranshivaraju/vidlens/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- stub cache ---

type stubCache struct{}

func (c *stubCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *stubCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *stubCache) Delete(_ context.Context, _ string) error                          { return nil }
func (c *stubCache) Ping(_ context.Context) error                                      { return nil }
func (c *stubCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

var _ cache.Cache = (*stubCache)(nil)

// --- router tests ---

const testKey = "vl_router_key_1234567890"

func newTestRouter(t *testing.T, hashes ...string) http.Handler {
	t.Helper()
	return api.NewRouter(api.Dependencies{
		Auth:      mw.NewAuth(hashes),
		RateLimit: mw.NewRateLimit(&stubCache{}, 60),
		HealthHandler: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		},
		StatsHandler: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
	})
}

func keyHash(t *testing.T) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(testKey), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"].(map[string]any)["code"].(string)
}

func TestRouter_HealthEndpoint_Public(t *testing.T) {
	router := newTestRouter(t, keyHash(t))

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_ProtectedEndpoints_RequireAuth(t *testing.T) {
	router := newTestRouter(t, keyHash(t))

	endpoints := []struct {
		method string
		path   string
	}{
		{"POST", "/api/video/analyze"},
		{"GET", "/api/video/status/2f1e7c8a-1111-4222-8333-444455556666"},
		{"GET", "/api/video/info?url=https://example.com"},
		{"GET", "/api/jobs"},
		{"GET", "/api/jobs/stats"},
		{"DELETE", "/api/jobs/2f1e7c8a-1111-4222-8333-444455556666"},
		{"POST", "/api/jobs/2f1e7c8a-1111-4222-8333-444455556666/cancel"},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "INVALID_TOKEN", errCode(t, w))
		})
	}
}

func TestRouter_ValidKey_ReachesHandler(t *testing.T) {
	router := newTestRouter(t, keyHash(t))

	req := httptest.NewRequest("GET", "/api/jobs/stats", nil)
	req.Header.Set("Authorization", "Bearer "+testKey)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "60", w.Header().Get("X-RateLimit-Limit"))
}

func TestRouter_AuthDisabled_OpenAccess(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest("GET", "/api/jobs/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_UnwiredHandler_NotImplemented(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest("GET", "/api/jobs", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotImplemented, w.Code)
	assert.Equal(t, "NOT_IMPLEMENTED", errCode(t, w))
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest("GET", "/api/v1/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errCode(t, w))
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest("PUT", "/api/jobs/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
