package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/vidlens/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	query, args := insertJobQuery(dollarPlaceholder, job)
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("create job %s: duplicate id", job.ID)
		}
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	query, args := getJobQuery(dollarPlaceholder, id)
	j, err := scanJob(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, int, error) {
	countQuery, countArgs, dataQuery, dataArgs := listJobsQueries(dollarPlaceholder, filter)

	var total int
	if err := s.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	rows, err := s.pool.Query(ctx, dataQuery, dataArgs...)
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

func (s *PostgresStore) DeleteJob(ctx context.Context, id uuid.UUID) error {
	query, args := deleteJobQuery(dollarPlaceholder, id)
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CountJobsByStatus(ctx context.Context) (map[models.JobStatus]int, error) {
	rows, err := s.pool.Query(ctx, countByStatusQuery)
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

func (s *PostgresStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status models.JobStatus, opts ...JobUpdateOption) error {
	params := &jobUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}

	query, args := statusUpdateQuery(dollarPlaceholder, id, status, time.Now().UTC(), params)
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Nothing matched: either the row is gone or its status forbids the move.
	var current string
	query, args = currentStatusQuery(dollarPlaceholder, id)
	err = s.pool.QueryRow(ctx, query, args...).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get job status: %w", err)
	}
	return transitionError(models.JobStatus(current), status)
}

func (s *PostgresStore) UpdateJobProgress(ctx context.Context, id uuid.UUID, field ProgressField, value float64) error {
	query, args, err := progressUpdateQuery(dollarPlaceholder, id, field, value, time.Now().UTC())
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateJobVideo(ctx context.Context, id uuid.UUID, video VideoFile) error {
	query, args := videoUpdateQuery(dollarPlaceholder, id, video, time.Now().UTC())
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotProcessing
	}
	return nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

var _ Store = (*PostgresStore)(nil)
