// Package jobs accepts analysis requests, tracks them in the job store and
// drives each one through download, analysis and persistence in the
// background.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/vidlens/internal/ai"
	"github.com/kiranshivaraju/vidlens/internal/downloader"
	"github.com/kiranshivaraju/vidlens/internal/files"
	"github.com/kiranshivaraju/vidlens/internal/report"
	"github.com/kiranshivaraju/vidlens/internal/store"
	"github.com/kiranshivaraju/vidlens/pkg/models"
)

// Downloader fetches a video into dir and returns its local path.
type Downloader interface {
	Download(ctx context.Context, rawURL, dir string, progress models.ProgressFunc) (string, error)
}

// Analyzer runs one remote analysis of a local video.
type Analyzer interface {
	Analyze(ctx context.Context, path string, analysisType models.AnalysisType, progress models.ProgressFunc) (*models.AnalysisResult, error)
}

// FileStore is the on-disk side of a job.
type FileStore interface {
	JobDir(id uuid.UUID) string
	SaveResult(id uuid.UUID, result *models.AnalysisResult, now time.Time) (string, error)
	LoadResult(id uuid.UUID) (report.Envelope, error)
	Cleanup(id uuid.UUID) error
	DiskUsage(ctx context.Context) (map[string]files.DirUsage, error)
}

// Deps holds the collaborators of a Service.
type Deps struct {
	Store            store.Store
	Prober           downloader.Prober
	Downloader       Downloader
	Analyzer         Analyzer
	Files            FileStore
	Scheduler        Scheduler
	AllowedPlatforms []string
	Logger           *slog.Logger
}

// Service is the job lifecycle: creation, the background pipeline, polling,
// cancellation and deletion.
type Service struct {
	store      store.Store
	prober     downloader.Prober
	downloader Downloader
	analyzer   Analyzer
	files      FileStore
	scheduler  Scheduler
	allowed    map[models.Platform]bool
	logger     *slog.Logger
	now        func() time.Time

	mu      sync.Mutex
	running map[uuid.UUID]context.CancelFunc
}

func NewService(d Deps) *Service {
	allowed := make(map[models.Platform]bool, len(d.AllowedPlatforms))
	for _, p := range d.AllowedPlatforms {
		allowed[models.Platform(strings.ToLower(strings.TrimSpace(p)))] = true
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      d.Store,
		prober:     d.Prober,
		downloader: d.Downloader,
		analyzer:   d.Analyzer,
		files:      d.Files,
		scheduler:  d.Scheduler,
		allowed:    allowed,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		running:    make(map[uuid.UUID]context.CancelFunc),
	}
}

// CreateRequest is a client's request to analyze one video.
type CreateRequest struct {
	URL          string
	AnalysisType string
}

// CreateJob validates the request, inserts a pending job and schedules it.
// Invalid requests return a *ValidationError and never create a row.
func (s *Service) CreateJob(ctx context.Context, req CreateRequest) (*models.Job, error) {
	analysisType, err := models.ParseAnalysisType(req.AnalysisType)
	if err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	rawURL := strings.TrimSpace(req.URL)
	info, err := s.validateSource(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	now := s.now()
	job := &models.Job{
		ID:           uuid.New(),
		SourceURL:    rawURL,
		Platform:     info.Platform,
		AnalysisType: analysisType,
		Status:       models.JobStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}

	if err := s.schedule(job.ID); err != nil {
		_ = s.store.UpdateJobStatus(ctx, job.ID, models.JobStatusCancelled,
			store.WithErrorMessage("server is shutting down"))
		return nil, err
	}

	s.logger.Info("job created", "job_id", job.ID, "platform", job.Platform, "analysis_type", job.AnalysisType)
	return job, nil
}

// Inspect probes a URL without creating a job.
func (s *Service) Inspect(ctx context.Context, rawURL string) (models.MediaInfo, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return models.MediaInfo{}, invalid("url is required")
	}
	if _, err := downloader.Classify(rawURL); err != nil {
		return models.MediaInfo{}, invalid("invalid video URL: %s", rawURL)
	}
	info, err := s.prober.Probe(ctx, rawURL)
	if err != nil {
		return models.MediaInfo{}, invalid("could not inspect URL: %v", err)
	}
	return info, nil
}

// validateSource checks that the URL is on an allowed platform and points at
// a video. Every failure is a *ValidationError.
func (s *Service) validateSource(ctx context.Context, rawURL string) (models.MediaInfo, error) {
	if rawURL == "" {
		return models.MediaInfo{}, invalid("url is required")
	}
	platform, err := downloader.Classify(rawURL)
	if err != nil {
		return models.MediaInfo{}, invalid("invalid video URL: %s", rawURL)
	}
	if !s.allowed[platform] {
		return models.MediaInfo{}, invalid("unsupported platform %q: allowed platforms are %s", platform, s.allowedList())
	}
	if platform == models.PlatformInstagram {
		if _, err := downloader.ExtractShortcode(rawURL); err != nil {
			return models.MediaInfo{}, invalid("invalid Instagram URL: expected a /p/, /reel/ or /tv/ post link")
		}
	}

	info, err := s.prober.Probe(ctx, rawURL)
	if err != nil {
		return models.MediaInfo{}, invalid("could not inspect post: %v", err)
	}
	if !info.IsVideo {
		return models.MediaInfo{}, invalid("post does not contain a video")
	}
	info.Platform = platform
	return info, nil
}

func (s *Service) allowedList() string {
	var names []string
	for _, p := range []models.Platform{
		models.PlatformYouTube, models.PlatformInstagram, models.PlatformTikTok, models.PlatformGeneric,
	} {
		if s.allowed[p] {
			names = append(names, string(p))
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}

// JobView is a job snapshot as returned to pollers. Result is only set for
// completed jobs.
type JobView struct {
	*models.Job
	Progress float64                `json:"progress"`
	Result   *models.AnalysisResult `json:"result,omitempty"`
}

// GetJob returns the current snapshot of a job.
func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*JobView, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	view := &JobView{Job: job, Progress: job.Progress()}
	if job.Status == models.JobStatusCompleted {
		view.Result = s.loadResult(job)
	}
	return view, nil
}

// loadResult prefers the side file and falls back to the text stored on the
// row when the file is gone.
func (s *Service) loadResult(job *models.Job) *models.AnalysisResult {
	env, err := s.files.LoadResult(job.ID)
	if err == nil {
		return env.Analysis
	}
	if !errors.Is(err, files.ErrResultNotFound) {
		s.logger.Warn("loading result file failed", "job_id", job.ID, "error", err)
	}
	if job.ResultText == nil {
		return nil
	}
	return &models.AnalysisResult{
		AnalysisType: job.AnalysisType,
		RawResponse:  *job.ResultText,
		Structured:   ai.Extract(*job.ResultText, job.AnalysisType),
	}
}

// ListJobs returns a page of jobs, newest first, and the total matching count.
func (s *Service) ListJobs(ctx context.Context, filter store.JobFilter) ([]*models.Job, int, error) {
	return s.store.ListJobs(ctx, filter)
}

// CancelJob moves a pending or processing job to cancelled and stops its
// in-flight work. Terminal jobs return ErrNotCancellable.
func (s *Service) CancelJob(ctx context.Context, id uuid.UUID) error {
	err := s.store.UpdateJobStatus(ctx, id, models.JobStatusCancelled)
	if errors.Is(err, store.ErrInvalidTransition) {
		job, getErr := s.store.GetJob(ctx, id)
		if getErr != nil {
			return getErr
		}
		return notCancellable(job.Status)
	}
	if err != nil {
		return err
	}

	s.abort(id)
	s.logger.Info("job cancelled", "job_id", id)
	return nil
}

// DeleteJob removes the job row and, when cleanupFiles is set, its directory
// and result file. A job still running is stopped first.
func (s *Service) DeleteJob(ctx context.Context, id uuid.UUID, cleanupFiles bool) error {
	if _, err := s.store.GetJob(ctx, id); err != nil {
		return err
	}
	s.abort(id)

	if cleanupFiles {
		if err := s.files.Cleanup(id); err != nil {
			s.logger.Error("cleaning up job files failed", "job_id", id, "error", err)
		}
	}
	if err := s.store.DeleteJob(ctx, id); err != nil {
		return err
	}
	s.logger.Info("job deleted", "job_id", id, "cleanup_files", cleanupFiles)
	return nil
}

// Stats aggregates job counts and disk usage.
type Stats struct {
	TotalJobs      int                       `json:"total_jobs"`
	PendingJobs    int                       `json:"pending_jobs"`
	ProcessingJobs int                       `json:"processing_jobs"`
	CompletedJobs  int                       `json:"completed_jobs"`
	FailedJobs     int                       `json:"failed_jobs"`
	CancelledJobs  int                       `json:"cancelled_jobs"`
	DiskUsage      map[string]files.DirUsage `json:"disk_usage"`
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.store.CountJobsByStatus(ctx)
	if err != nil {
		return nil, err
	}
	st := &Stats{
		PendingJobs:    counts[models.JobStatusPending],
		ProcessingJobs: counts[models.JobStatusProcessing],
		CompletedJobs:  counts[models.JobStatusCompleted],
		FailedJobs:     counts[models.JobStatusFailed],
		CancelledJobs:  counts[models.JobStatusCancelled],
	}
	for _, n := range counts {
		st.TotalJobs += n
	}

	usage, err := s.files.DiskUsage(ctx)
	if err != nil {
		s.logger.Warn("computing disk usage failed", "error", err)
		usage = map[string]files.DirUsage{}
	}
	st.DiskUsage = usage
	return st, nil
}

// Resume is called once at startup. Pending jobs from a previous run are
// scheduled again; jobs that were processing when the process stopped are
// marked failed.
func (s *Service) Resume(ctx context.Context) error {
	interrupted, err := s.allWithStatus(ctx, models.JobStatusProcessing)
	if err != nil {
		return err
	}
	for _, id := range interrupted {
		err := s.store.UpdateJobStatus(ctx, id, models.JobStatusFailed,
			store.WithErrorMessage("job was interrupted by a server restart"))
		if err != nil && !errors.Is(err, store.ErrInvalidTransition) {
			return fmt.Errorf("failing interrupted job %s: %w", id, err)
		}
	}

	pending, err := s.allWithStatus(ctx, models.JobStatusPending)
	if err != nil {
		return err
	}
	for _, id := range pending {
		if err := s.schedule(id); err != nil {
			return err
		}
	}

	if len(interrupted)+len(pending) > 0 {
		s.logger.Info("jobs resumed", "failed_interrupted", len(interrupted), "rescheduled", len(pending))
	}
	return nil
}

func (s *Service) allWithStatus(ctx context.Context, status models.JobStatus) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for page := 1; ; page++ {
		list, total, err := s.store.ListJobs(ctx, store.JobFilter{Status: status, Page: page, PerPage: 100})
		if err != nil {
			return nil, fmt.Errorf("listing %s jobs: %w", status, err)
		}
		for _, j := range list {
			ids = append(ids, j.ID)
		}
		if len(list) == 0 || page*100 >= total {
			return ids, nil
		}
	}
}

func (s *Service) schedule(id uuid.UUID) error {
	return s.scheduler.Submit(func(ctx context.Context) {
		s.process(ctx, id)
	})
}

// track registers the cancel func of a running job.
func (s *Service) track(id uuid.UUID, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[id] = cancel
}

func (s *Service) untrack(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, id)
}

// abort cancels the context of a running job, if any.
func (s *Service) abort(id uuid.UUID) {
	s.mu.Lock()
	cancel, ok := s.running[id]
	s.mu.Unlock()
	if ok {
		cancel()
	}
}
