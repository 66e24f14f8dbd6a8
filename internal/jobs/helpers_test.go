package jobs_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/vidlens/internal/config"
	"github.com/kiranshivaraju/vidlens/internal/files"
	"github.com/kiranshivaraju/vidlens/internal/jobs"
	"github.com/kiranshivaraju/vidlens/internal/store"
	"github.com/kiranshivaraju/vidlens/pkg/models"
	"github.com/stretchr/testify/require"
)

const reelURL = "https://www.instagram.com/reel/C0deAbc123/"

func setupStore(t *testing.T) store.Store {
	t.Helper()
	ctx := context.Background()
	url := "sqlite://" + filepath.Join(t.TempDir(), "jobs_test.db")
	db, err := store.OpenSQLite(ctx, store.SQLitePath(url))
	require.NoError(t, err)
	require.NoError(t, store.RunMigrations(url))
	s := store.NewSQLiteStore(db)
	t.Cleanup(s.Close)
	return s
}

// recordingStore remembers every status write that the store accepted.
type recordingStore struct {
	store.Store
	mu          sync.Mutex
	transitions map[uuid.UUID][]models.JobStatus
}

func (r *recordingStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status models.JobStatus, opts ...store.JobUpdateOption) error {
	err := r.Store.UpdateJobStatus(ctx, id, status, opts...)
	if err == nil {
		r.mu.Lock()
		r.transitions[id] = append(r.transitions[id], status)
		r.mu.Unlock()
	}
	return err
}

func (r *recordingStore) history(id uuid.UUID) []models.JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.JobStatus(nil), r.transitions[id]...)
}

// manualScheduler queues tasks until the test runs them.
type manualScheduler struct {
	mu    sync.Mutex
	tasks []jobs.Task
}

func (m *manualScheduler) Submit(task jobs.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, task)
	return nil
}

func (m *manualScheduler) Shutdown(context.Context) error { return nil }

func (m *manualScheduler) runAll() {
	m.mu.Lock()
	tasks := m.tasks
	m.tasks = nil
	m.mu.Unlock()
	for _, task := range tasks {
		task(context.Background())
	}
}

func (m *manualScheduler) pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

type fakeProber struct {
	mu    sync.Mutex
	calls int
	info  map[string]models.MediaInfo
	err   error
}

func (p *fakeProber) Probe(_ context.Context, rawURL string) (models.MediaInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return models.MediaInfo{}, p.err
	}
	if info, ok := p.info[rawURL]; ok {
		return info, nil
	}
	return models.MediaInfo{URL: rawURL, IsVideo: true, Title: "a reel"}, nil
}

func (p *fakeProber) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeDownloader struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, rawURL, dir string, progress models.ProgressFunc) (string, error)
}

func (d *fakeDownloader) Download(ctx context.Context, rawURL, dir string, progress models.ProgressFunc) (string, error) {
	d.mu.Lock()
	d.calls++
	fn := d.fn
	d.mu.Unlock()
	if fn != nil {
		return fn(ctx, rawURL, dir, progress)
	}
	return writeClip(dir, progress)
}

func (d *fakeDownloader) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func writeClip(dir string, progress models.ProgressFunc) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	progress(0.5)
	path := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(path, []byte("not really a video"), 0o644); err != nil {
		return "", err
	}
	progress(1.0)
	return path, nil
}

type fakeAnalyzer struct {
	fn func(ctx context.Context, path string, t models.AnalysisType, progress models.ProgressFunc) (*models.AnalysisResult, error)
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, path string, t models.AnalysisType, progress models.ProgressFunc) (*models.AnalysisResult, error) {
	if a.fn != nil {
		return a.fn(ctx, path, t, progress)
	}
	return transcriptResult("[00:00] hello"), nil
}

func transcriptResult(text string) *models.AnalysisResult {
	return &models.AnalysisResult{
		AnalysisType: models.AnalysisTranscription,
		ModelUsed:    "mock-v1",
		RawResponse:  text,
		Structured:   models.StructuredResult{FullText: text},
	}
}

type harness struct {
	svc        *jobs.Service
	store      *recordingStore
	files      *files.Manager
	scheduler  *manualScheduler
	prober     *fakeProber
	downloader *fakeDownloader
	analyzer   *fakeAnalyzer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()
	fm, err := files.New(config.StorageConfig{
		UploadDir:  filepath.Join(root, "videos"),
		ResultsDir: filepath.Join(root, "results"),
		TempDir:    filepath.Join(root, "temp"),
	})
	require.NoError(t, err)

	h := &harness{
		store:      &recordingStore{Store: setupStore(t), transitions: map[uuid.UUID][]models.JobStatus{}},
		files:      fm,
		scheduler:  &manualScheduler{},
		prober:     &fakeProber{info: map[string]models.MediaInfo{}},
		downloader: &fakeDownloader{},
		analyzer:   &fakeAnalyzer{},
	}
	h.svc = jobs.NewService(jobs.Deps{
		Store:            h.store,
		Prober:           h.prober,
		Downloader:       h.downloader,
		Analyzer:         h.analyzer,
		Files:            h.files,
		Scheduler:        h.scheduler,
		AllowedPlatforms: []string{"instagram"},
	})
	return h
}

func (h *harness) create(t *testing.T) *models.Job {
	t.Helper()
	job, err := h.svc.CreateJob(context.Background(), jobs.CreateRequest{URL: reelURL, AnalysisType: "transcription"})
	require.NoError(t, err)
	return job
}

func (h *harness) get(t *testing.T, id uuid.UUID) *jobs.JobView {
	t.Helper()
	v, err := h.svc.GetJob(context.Background(), id)
	require.NoError(t, err)
	return v
}

func (h *harness) waitForStatus(t *testing.T, id uuid.UUID, want models.JobStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		v, err := h.svc.GetJob(context.Background(), id)
		return err == nil && v.Status == want
	}, 5*time.Second, 5*time.Millisecond)
}
