// Package handler holds the HTTP handlers for video analysis jobs.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/vidlens/internal/api/response"
	"github.com/kiranshivaraju/vidlens/internal/jobs"
	"github.com/kiranshivaraju/vidlens/internal/store"
	"github.com/kiranshivaraju/vidlens/pkg/models"
)

// JobService defines the job operations the handlers depend on.
type JobService interface {
	CreateJob(ctx context.Context, req jobs.CreateRequest) (*models.Job, error)
	Inspect(ctx context.Context, rawURL string) (models.MediaInfo, error)
	GetJob(ctx context.Context, id uuid.UUID) (*jobs.JobView, error)
	ListJobs(ctx context.Context, filter store.JobFilter) ([]*models.Job, int, error)
	CancelJob(ctx context.Context, id uuid.UUID) error
	DeleteJob(ctx context.Context, id uuid.UUID, cleanupFiles bool) error
	Stats(ctx context.Context) (*jobs.Stats, error)
}

var _ JobService = (*jobs.Service)(nil)

// jobIDParam parses the {job_id} path segment, writing a 400 when it is not a UUID.
func jobIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "job_id"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_JOB_ID", "job_id must be a valid UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}

// writeServiceError maps job service errors onto the error envelope.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *jobs.ValidationError
	switch {
	case errors.As(err, &verr):
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", verr.Message, nil)
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found", nil)
	case errors.Is(err, jobs.ErrNotCancellable):
		response.Error(w, http.StatusConflict, "INVALID_STATE", err.Error(), nil)
	case errors.Is(err, jobs.ErrSchedulerClosed):
		response.Error(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE",
			"Server is shutting down", nil)
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}
