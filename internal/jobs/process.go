package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/vidlens/internal/downloader"
	"github.com/kiranshivaraju/vidlens/internal/store"
	"github.com/kiranshivaraju/vidlens/pkg/models"
)

// fileNotFoundMessage is recorded on jobs whose fetch produced no video file.
const fileNotFoundMessage = "Video file not found after download"

// finalWriteTimeout bounds status writes made after the job context may
// already be cancelled.
const finalWriteTimeout = 10 * time.Second

// process drives one job through the pipeline. Every status write is a
// guarded transition, so once the row is terminal (e.g. cancelled by a
// client) later writes are rejected and dropped.
func (s *Service) process(parent context.Context, id uuid.UUID) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	logger := s.logger.With("job_id", id)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in job pipeline", "error", r)
			s.fail(ctx, id, fmt.Sprintf("internal error: %v", r))
		}
	}()

	job, err := s.store.GetJob(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		logger.Info("job deleted before processing started")
		return
	}
	if err != nil {
		logger.Error("loading job failed", "error", err)
		return
	}

	s.track(id, cancel)
	defer s.untrack(id)

	if err := s.store.UpdateJobStatus(ctx, id, models.JobStatusProcessing); err != nil {
		logger.Info("job not started", "status", job.Status, "error", err)
		return
	}
	logger.Info("job processing started", "url", job.SourceURL, "analysis_type", job.AnalysisType)

	if _, err := s.validateSource(ctx, job.SourceURL); err != nil {
		s.fail(ctx, id, err.Error())
		return
	}

	path, err := s.downloader.Download(ctx, job.SourceURL, s.files.JobDir(id), s.progress(ctx, id, store.ProgressDownload))
	if errors.Is(err, downloader.ErrFileNotFound) {
		s.fail(ctx, id, fileNotFoundMessage)
		return
	}
	if err != nil {
		s.fail(ctx, id, err.Error())
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		logger.Warn("downloaded file disappeared", "path", path, "error", err)
		s.fail(ctx, id, fileNotFoundMessage)
		return
	}
	err = s.store.UpdateJobVideo(ctx, id, store.VideoFile{
		Path:     path,
		Filename: filepath.Base(path),
		Size:     info.Size(),
	})
	if errors.Is(err, store.ErrNotProcessing) || errors.Is(err, store.ErrNotFound) {
		logger.Info("job left processing during download, stopping")
		return
	}
	if err != nil {
		s.fail(ctx, id, fmt.Sprintf("recording video file: %v", err))
		return
	}

	result, err := s.analyzer.Analyze(ctx, path, job.AnalysisType, s.progress(ctx, id, store.ProgressAnalysis))
	if err != nil {
		s.fail(ctx, id, err.Error())
		return
	}

	if ctx.Err() != nil {
		logger.Info("job stopped during analysis, result dropped")
		return
	}

	resultPath, err := s.files.SaveResult(id, result, s.now())
	if err != nil {
		s.fail(ctx, id, fmt.Sprintf("saving analysis result: %v", err))
		return
	}

	wctx, wcancel := context.WithTimeout(context.WithoutCancel(ctx), finalWriteTimeout)
	defer wcancel()
	err = s.store.UpdateJobStatus(wctx, id, models.JobStatusCompleted, store.WithResult(resultPath, result.RawResponse))
	switch {
	case err == nil:
		logger.Info("job completed", "result_path", resultPath, "processing_time", result.ProcessingTime)
	case errors.Is(err, store.ErrInvalidTransition), errors.Is(err, store.ErrNotFound):
		logger.Warn("job finished after it was cancelled or deleted, result dropped", "error", err)
		if err := os.Remove(resultPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Error("removing dropped result file failed", "path", resultPath, "error", err)
		}
	default:
		logger.Error("recording completion failed", "error", err)
	}
}

// fail records a FAILED status with msg. It is a no-op for rows that are
// already terminal or gone.
func (s *Service) fail(ctx context.Context, id uuid.UUID, msg string) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalWriteTimeout)
	defer cancel()

	err := s.store.UpdateJobStatus(wctx, id, models.JobStatusFailed, store.WithErrorMessage(msg))
	switch {
	case err == nil:
		s.logger.Warn("job failed", "job_id", id, "error", msg)
	case errors.Is(err, store.ErrInvalidTransition), errors.Is(err, store.ErrNotFound):
		s.logger.Info("job failure not recorded, job already left processing", "job_id", id, "error", msg)
	default:
		s.logger.Error("recording job failure failed", "job_id", id, "error", err)
	}
}

// progress returns a callback that writes one progress column. Writes are
// advisory and their errors are only logged.
func (s *Service) progress(ctx context.Context, id uuid.UUID, field store.ProgressField) models.ProgressFunc {
	return func(f float64) {
		if ctx.Err() != nil {
			return
		}
		if err := s.store.UpdateJobProgress(ctx, id, field, f); err != nil {
			s.logger.Debug("progress update failed", "job_id", id, "field", field, "error", err)
		}
	}
}
