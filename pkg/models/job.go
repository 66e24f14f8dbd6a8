package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a video analysis job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// AllJobStatuses lists every status in lifecycle order.
var AllJobStatuses = []JobStatus{
	JobStatusPending,
	JobStatusProcessing,
	JobStatusCompleted,
	JobStatusFailed,
	JobStatusCancelled,
}

// ParseJobStatus validates a status string received from a client. Matching
// ignores case.
func ParseJobStatus(s string) (JobStatus, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, st := range AllJobStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// IsTerminal reports whether no further transitions are possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Job tracks one request to fetch and analyze a single video. The API returns
// its ID on POST /api/video/analyze; the client polls GET /api/video/status/{job_id}
// until the status is terminal.
type Job struct {
	ID               uuid.UUID    `db:"id"                json:"id"`
	SourceURL        string       `db:"source_url"        json:"source_url"`
	Platform         Platform     `db:"platform"          json:"platform"`
	AnalysisType     AnalysisType `db:"analysis_type"     json:"analysis_type"`
	Status           JobStatus    `db:"status"            json:"status"`
	DownloadProgress float64      `db:"download_progress" json:"download_progress"`
	AnalysisProgress float64      `db:"analysis_progress" json:"analysis_progress"`
	VideoPath        *string      `db:"video_path"        json:"video_path,omitempty"`
	VideoFilename    *string      `db:"video_filename"    json:"video_filename,omitempty"`
	VideoSize        *int64       `db:"video_size"        json:"video_size,omitempty"`
	ResultPath       *string      `db:"result_path"       json:"result_path,omitempty"`
	ResultText       *string      `db:"result_text"       json:"-"`
	ErrorMessage     *string      `db:"error_message"     json:"error_message,omitempty"`
	StartedAt        *time.Time   `db:"started_at"        json:"started_at,omitempty"`
	CompletedAt      *time.Time   `db:"completed_at"      json:"completed_at,omitempty"`
	CreatedAt        time.Time    `db:"created_at"        json:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at"        json:"updated_at"`
}

// Progress folds the two advisory fractions into one overall value.
func (j *Job) Progress() float64 {
	switch j.Status {
	case JobStatusProcessing:
		return (j.DownloadProgress + j.AnalysisProgress) / 2
	case JobStatusCompleted, JobStatusFailed:
		return 1.0
	default:
		return 0
	}
}
