package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/vidlens/internal/api/handler"
	"github.com/kiranshivaraju/vidlens/internal/jobs"
	"github.com/kiranshivaraju/vidlens/internal/store"
	"github.com/kiranshivaraju/vidlens/pkg/models"
	"github.com/stretchr/testify/require"
)

// mockJobService records the arguments it was called with and returns the
// configured values.
type mockJobService struct {
	createReq jobs.CreateRequest
	createJob *models.Job
	createErr error

	inspectURL  string
	inspectInfo models.MediaInfo
	inspectErr  error

	view   *jobs.JobView
	getErr error

	filter  store.JobFilter
	list    []*models.Job
	total   int
	listErr error

	cancelID  uuid.UUID
	cancelErr error

	deleteID      uuid.UUID
	deleteCleanup bool
	deleteErr     error

	stats    *jobs.Stats
	statsErr error
}

func (m *mockJobService) CreateJob(_ context.Context, req jobs.CreateRequest) (*models.Job, error) {
	m.createReq = req
	return m.createJob, m.createErr
}

func (m *mockJobService) Inspect(_ context.Context, rawURL string) (models.MediaInfo, error) {
	m.inspectURL = rawURL
	return m.inspectInfo, m.inspectErr
}

func (m *mockJobService) GetJob(_ context.Context, _ uuid.UUID) (*jobs.JobView, error) {
	return m.view, m.getErr
}

func (m *mockJobService) ListJobs(_ context.Context, f store.JobFilter) ([]*models.Job, int, error) {
	m.filter = f
	return m.list, m.total, m.listErr
}

func (m *mockJobService) CancelJob(_ context.Context, id uuid.UUID) error {
	m.cancelID = id
	return m.cancelErr
}

func (m *mockJobService) DeleteJob(_ context.Context, id uuid.UUID, cleanup bool) error {
	m.deleteID = id
	m.deleteCleanup = cleanup
	return m.deleteErr
}

func (m *mockJobService) Stats(_ context.Context) (*jobs.Stats, error) {
	return m.stats, m.statsErr
}

var _ handler.JobService = (*mockJobService)(nil)

// serve routes one request through a chi router so URL params resolve.
func serve(t *testing.T, method, pattern, target string, h http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Method(method, pattern, h)

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	e, ok := decode(t, w)["error"].(map[string]any)
	require.True(t, ok, "expected error envelope, got %s", w.Body.String())
	return e
}

func dataOf(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	d, ok := decode(t, w)["data"].(map[string]any)
	require.True(t, ok, "expected data envelope, got %s", w.Body.String())
	return d
}
