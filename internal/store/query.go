package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/vidlens/pkg/models"
)

const jobColumns = `id, source_url, platform, analysis_type, status, download_progress, analysis_progress,
	video_path, video_filename, video_size, result_path, result_text, error_message,
	started_at, completed_at, created_at, updated_at`

// placeholder renders the n-th (1-based) bind parameter for a dialect.
type placeholder func(n int) string

func dollarPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

func questionPlaceholder(int) string { return "?" }

// queryArgs collects bind values in textual order so the same builder works
// for positional ($n) and sequential (?) dialects.
type queryArgs struct {
	ph   placeholder
	args []any
}

func (q *queryArgs) add(v any) string {
	q.args = append(q.args, v)
	return q.ph(len(q.args))
}

func (q *queryArgs) in(values []models.JobStatus) string {
	marks := make([]string, len(values))
	for i, v := range values {
		marks[i] = q.add(string(v))
	}
	return "(" + strings.Join(marks, ", ") + ")"
}

// rowScanner is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var j models.Job
	err := row.Scan(&j.ID, &j.SourceURL, &j.Platform, &j.AnalysisType, &j.Status,
		&j.DownloadProgress, &j.AnalysisProgress,
		&j.VideoPath, &j.VideoFilename, &j.VideoSize, &j.ResultPath, &j.ResultText, &j.ErrorMessage,
		&j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func insertJobQuery(ph placeholder, job *models.Job) (string, []any) {
	q := &queryArgs{ph: ph}
	values := []string{
		q.add(job.ID), q.add(job.SourceURL), q.add(string(job.Platform)), q.add(string(job.AnalysisType)),
		q.add(string(job.Status)), q.add(job.CreatedAt), q.add(job.UpdatedAt),
	}
	return `INSERT INTO video_jobs (id, source_url, platform, analysis_type, status, created_at, updated_at)
		 VALUES (` + strings.Join(values, ", ") + `)`, q.args
}

func getJobQuery(ph placeholder, id uuid.UUID) (string, []any) {
	q := &queryArgs{ph: ph}
	return `SELECT ` + jobColumns + ` FROM video_jobs WHERE id = ` + q.add(id), q.args
}

// listJobsQueries returns the count and the page query for a filter. Both share
// the same WHERE clause; the page query appends LIMIT/OFFSET.
func listJobsQueries(ph placeholder, filter JobFilter) (countQuery string, countArgs []any, dataQuery string, dataArgs []any) {
	q := &queryArgs{ph: ph}
	where := ""
	if filter.Status != "" {
		where = " WHERE status = " + q.add(string(filter.Status))
	}
	countQuery = "SELECT COUNT(*) FROM video_jobs" + where
	countArgs = append([]any(nil), q.args...)

	page, perPage := normalizePage(filter)
	dataQuery = `SELECT ` + jobColumns + ` FROM video_jobs` + where +
		` ORDER BY created_at DESC, id DESC LIMIT ` + q.add(perPage) + ` OFFSET ` + q.add((page-1)*perPage)
	return countQuery, countArgs, dataQuery, q.args
}

// statusUpdateQuery builds the guarded UPDATE for a status change. The WHERE
// clause only matches rows whose current status may legally move to status.
func statusUpdateQuery(ph placeholder, id uuid.UUID, status models.JobStatus, now time.Time, params *jobUpdateParams) (string, []any) {
	q := &queryArgs{ph: ph}
	set := []string{
		"status = " + q.add(string(status)),
		"updated_at = " + q.add(now),
	}
	if status == models.JobStatusProcessing {
		set = append(set, "started_at = "+q.add(now))
	}
	if status.IsTerminal() {
		set = append(set, "completed_at = "+q.add(now))
	}
	if params.ErrorMessage != nil {
		set = append(set, "error_message = "+q.add(*params.ErrorMessage))
	}
	if params.ResultPath != nil {
		set = append(set, "result_path = "+q.add(*params.ResultPath))
	}
	if params.ResultText != nil {
		set = append(set, "result_text = "+q.add(*params.ResultText))
	}

	query := "UPDATE video_jobs SET " + strings.Join(set, ", ") +
		" WHERE id = " + q.add(id) +
		" AND status IN " + q.in(predecessors(status))
	return query, q.args
}

func progressUpdateQuery(ph placeholder, id uuid.UUID, field ProgressField, value float64, now time.Time) (string, []any, error) {
	if field != ProgressDownload && field != ProgressAnalysis {
		return "", nil, fmt.Errorf("unknown progress field %q", field)
	}
	q := &queryArgs{ph: ph}
	query := "UPDATE video_jobs SET " + string(field) + " = " + q.add(clampFraction(value)) +
		", updated_at = " + q.add(now) +
		" WHERE id = " + q.add(id) +
		" AND status = " + q.add(string(models.JobStatusProcessing))
	return query, q.args, nil
}

func videoUpdateQuery(ph placeholder, id uuid.UUID, video VideoFile, now time.Time) (string, []any) {
	q := &queryArgs{ph: ph}
	query := "UPDATE video_jobs SET video_path = " + q.add(video.Path) +
		", video_filename = " + q.add(video.Filename) +
		", video_size = " + q.add(video.Size) +
		", updated_at = " + q.add(now) +
		" WHERE id = " + q.add(id) +
		" AND status = " + q.add(string(models.JobStatusProcessing))
	return query, q.args
}

func deleteJobQuery(ph placeholder, id uuid.UUID) (string, []any) {
	q := &queryArgs{ph: ph}
	return "DELETE FROM video_jobs WHERE id = " + q.add(id), q.args
}

func currentStatusQuery(ph placeholder, id uuid.UUID) (string, []any) {
	q := &queryArgs{ph: ph}
	return "SELECT status FROM video_jobs WHERE id = " + q.add(id), q.args
}

const countByStatusQuery = `SELECT status, COUNT(*) FROM video_jobs GROUP BY status`

func transitionError(current, target models.JobStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, target)
}
