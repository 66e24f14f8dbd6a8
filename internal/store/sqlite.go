package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/vidlens/pkg/models"
)

// SQLiteStore implements the Store interface on database/sql with the
// modernc.org/sqlite driver.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore over an open handle.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() {
	s.db.Close()
}

func (s *SQLiteStore) CreateJob(ctx context.Context, job *models.Job) error {
	query, args := insertJobQuery(questionPlaceholder, job)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	query, args := getJobQuery(questionPlaceholder, id)
	j, err := scanJob(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, int, error) {
	countQuery, countArgs, dataQuery, dataArgs := listJobsQueries(questionPlaceholder, filter)

	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, dataQuery, dataArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*models.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, total, rows.Err()
}

func (s *SQLiteStore) DeleteJob(ctx context.Context, id uuid.UUID) error {
	query, args := deleteJobQuery(questionPlaceholder, id)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) CountJobsByStatus(ctx context.Context) (map[models.JobStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, countByStatusQuery)
	if err != nil {
		return nil, fmt.Errorf("count jobs by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.JobStatus]int, len(models.AllJobStatuses))
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[models.JobStatus(status)] = n
	}
	return counts, rows.Err()
}

func (s *SQLiteStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status models.JobStatus, opts ...JobUpdateOption) error {
	params := &jobUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}

	query, args := statusUpdateQuery(questionPlaceholder, id, status, time.Now().UTC(), params)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if n == 1 {
		return nil
	}

	var current string
	query, args = currentStatusQuery(questionPlaceholder, id)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get job status: %w", err)
	}
	return transitionError(models.JobStatus(current), status)
}

func (s *SQLiteStore) UpdateJobProgress(ctx context.Context, id uuid.UUID, field ProgressField, value float64) error {
	query, args, err := progressUpdateQuery(questionPlaceholder, id, field, value, time.Now().UTC())
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateJobVideo(ctx context.Context, id uuid.UUID, video VideoFile) error {
	query, args := videoUpdateQuery(questionPlaceholder, id, video, time.Now().UTC())
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job video: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job video: %w", err)
	}
	if n == 0 {
		return ErrNotProcessing
	}
	return nil
}

var _ Store = (*SQLiteStore)(nil)
