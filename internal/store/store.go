package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/vidlens/pkg/models"
)

var ErrNotFound = errors.New("resource not found")

// ErrInvalidTransition is returned when a status write is not legal from the
// row's current status. Terminal rows always reject writes.
var ErrInvalidTransition = errors.New("invalid job status transition")

// ErrNotProcessing is returned by writes that are only allowed while a job is
// processing, e.g. recording the downloaded file after a cancel.
var ErrNotProcessing = errors.New("job is not processing")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error
	Close()

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, int, error)
	DeleteJob(ctx context.Context, id uuid.UUID) error
	CountJobsByStatus(ctx context.Context) (map[models.JobStatus]int, error)

	// UpdateJobStatus is a compare-and-set: the row only changes if its current
	// status is a legal predecessor of the target.
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status models.JobStatus, opts ...JobUpdateOption) error
	UpdateJobProgress(ctx context.Context, id uuid.UUID, field ProgressField, value float64) error
	UpdateJobVideo(ctx context.Context, id uuid.UUID, video VideoFile) error
}

type JobFilter struct {
	Status  models.JobStatus
	Page    int
	PerPage int
}

// ProgressField names one of the two advisory progress columns.
type ProgressField string

const (
	ProgressDownload ProgressField = "download_progress"
	ProgressAnalysis ProgressField = "analysis_progress"
)

// VideoFile is the downloaded artifact recorded on the job row.
type VideoFile struct {
	Path     string
	Filename string
	Size     int64
}

var validTransitions = map[models.JobStatus][]models.JobStatus{
	models.JobStatusPending:    {models.JobStatusProcessing, models.JobStatusCancelled},
	models.JobStatusProcessing: {models.JobStatusCompleted, models.JobStatusFailed, models.JobStatusCancelled},
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to models.JobStatus) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// predecessors returns every status that may move to target.
func predecessors(target models.JobStatus) []models.JobStatus {
	var out []models.JobStatus
	for _, from := range models.AllJobStatuses {
		if CanTransition(from, target) {
			out = append(out, from)
		}
	}
	return out
}

type jobUpdateParams struct {
	ErrorMessage *string
	ResultPath   *string
	ResultText   *string
}

type JobUpdateOption func(*jobUpdateParams)

func WithErrorMessage(msg string) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.ErrorMessage = &msg
	}
}

// WithResult records the persisted analysis alongside a completed status.
func WithResult(path, text string) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.ResultPath = &path
		p.ResultText = &text
	}
}

func normalizePage(filter JobFilter) (page, perPage int) {
	perPage = filter.PerPage
	if perPage <= 0 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}
	page = filter.Page
	if page <= 0 {
		page = 1
	}
	return page, perPage
}

func clampFraction(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
