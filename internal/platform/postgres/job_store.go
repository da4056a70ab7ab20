package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/calsync-io/calsync-api/internal/job"
	"github.com/calsync-io/calsync-api/internal/platform/logger"
	"github.com/calsync-io/calsync-api/internal/store"
)

// PostgresJobStore implements the job.JobStore interface using PostgreSQL.
// Claiming uses FOR UPDATE SKIP LOCKED so multiple worker processes can share
// one jobs table without handing the same job to two workers.
type PostgresJobStore struct {
	db *sql.DB
}

// NewPostgresJobStore creates a new PostgresJobStore.
func NewPostgresJobStore(db *sql.DB) *PostgresJobStore {
	return &PostgresJobStore{db: db}
}

var _ job.JobStore = (*PostgresJobStore)(nil)

const jobColumns = `id, type, payload, status, attempts, max_attempts, run_at,
	created_at, started_at, completed_at, last_error, result`

// Save persists a new job record.
func (s *PostgresJobStore) Save(ctx context.Context, j *job.Job) error {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO jobs
			(id, type, payload, status, attempts, max_attempts, run_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.ExecContext(ctx, query,
		j.ID,
		string(j.Type),
		[]byte(j.Payload),
		string(j.Status),
		j.Attempts,
		j.MaxAttempts,
		j.RunAt,
		j.CreatedAt,
	)
	if err != nil {
		log.Error("failed to save job", "job_id", j.ID, "job_type", j.Type, "error", err)
		return fmt.Errorf("failed to save job: %w", MapError(err))
	}
	return nil
}

// GetByID retrieves a snapshot of a job.
func (s *PostgresJobStore) GetByID(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	j, err := scanJob(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", MapError(err))
	}
	return j, nil
}

// ClaimNext atomically takes the next eligible pending job of the given type.
// The subquery picks the oldest due pending row and locks it; SKIP LOCKED
// makes concurrent claimers move past each other instead of blocking.
func (s *PostgresJobStore) ClaimNext(ctx context.Context, jobType job.Type, now time.Time) (*job.Job, error) {
	query := `
		UPDATE jobs
		SET status = $1, started_at = $2
		WHERE id = (
			SELECT id FROM jobs
			WHERE type = $3 AND status = $4 AND run_at <= $2
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns

	j, err := scanJob(s.db.QueryRowContext(ctx, query,
		string(job.StatusProcessing),
		now,
		string(jobType),
		string(job.StatusPending),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim job: %w", MapError(err))
	}
	return j, nil
}

// MarkCompleted finalizes a job with its result.
func (s *PostgresJobStore) MarkCompleted(ctx context.Context, id uuid.UUID, result []byte) error {
	query := `
		UPDATE jobs
		SET status = $1, result = $2, completed_at = $3, last_error = ''
		WHERE id = $4 AND status = $5
	`

	res, err := s.db.ExecContext(ctx, query,
		string(job.StatusCompleted),
		result,
		time.Now().UTC(),
		id,
		string(job.StatusProcessing),
	)
	if err != nil {
		return fmt.Errorf("failed to mark job completed: %w", MapError(err))
	}
	return CheckRowsAffected(res, store.ErrJobNotFound)
}

// MarkFailed records a handler failure and increments the attempt count. When
// retry is true the job returns to pending, scheduled at runAt.
func (s *PostgresJobStore) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, retry bool, runAt time.Time) error {
	var res sql.Result
	var err error

	if retry {
		query := `
			UPDATE jobs
			SET status = $1, attempts = attempts + 1, last_error = $2,
				run_at = $3, started_at = NULL
			WHERE id = $4 AND status = $5
		`
		res, err = s.db.ExecContext(ctx, query,
			string(job.StatusPending),
			errMsg,
			runAt,
			id,
			string(job.StatusProcessing),
		)
	} else {
		query := `
			UPDATE jobs
			SET status = $1, attempts = attempts + 1, last_error = $2, completed_at = $3
			WHERE id = $4 AND status = $5
		`
		res, err = s.db.ExecContext(ctx, query,
			string(job.StatusFailed),
			errMsg,
			time.Now().UTC(),
			id,
			string(job.StatusProcessing),
		)
	}
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", MapError(err))
	}
	return CheckRowsAffected(res, store.ErrJobNotFound)
}

// ReleaseStalled returns jobs stuck in processing longer than olderThan back
// to pending so another worker can pick them up.
func (s *PostgresJobStore) ReleaseStalled(ctx context.Context, jobType job.Type, olderThan time.Duration) (int, error) {
	log := logger.FromContext(ctx)

	query := `
		UPDATE jobs
		SET status = $1, started_at = NULL
		WHERE type = $2 AND status = $3 AND started_at < $4
	`

	res, err := s.db.ExecContext(ctx, query,
		string(job.StatusPending),
		string(jobType),
		string(job.StatusProcessing),
		time.Now().UTC().Add(-olderThan),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to release stalled jobs: %w", MapError(err))
	}

	released, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if released > 0 {
		log.Warn("released stalled jobs", "job_type", jobType, "count", released)
	}
	return int(released), nil
}

// Counts returns per-status counts for the given job type.
func (s *PostgresJobStore) Counts(ctx context.Context, jobType job.Type) (job.Counts, error) {
	query := `
		SELECT status, COUNT(*)
		FROM jobs
		WHERE type = $1
		GROUP BY status
	`

	rows, err := s.db.QueryContext(ctx, query, string(jobType))
	if err != nil {
		return job.Counts{}, fmt.Errorf("failed to count jobs: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var counts job.Counts
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return job.Counts{}, fmt.Errorf("failed to scan job count row: %w", err)
		}
		switch job.Status(status) {
		case job.StatusPending:
			counts.Pending = n
		case job.StatusProcessing:
			counts.Processing = n
		case job.StatusCompleted:
			counts.Completed = n
		case job.StatusFailed:
			counts.Failed = n
		}
	}
	if err := rows.Err(); err != nil {
		return job.Counts{}, fmt.Errorf("error iterating job count rows: %w", err)
	}
	return counts, nil
}

// PurgeFinished deletes finished jobs beyond the retention count or older
// than maxAge, oldest first. Pending and processing jobs are never touched.
func (s *PostgresJobStore) PurgeFinished(ctx context.Context, jobType job.Type, retainCount int, maxAge time.Duration) (int, error) {
	query := `
		DELETE FROM jobs
		WHERE id IN (
			SELECT id FROM (
				SELECT id,
					ROW_NUMBER() OVER (ORDER BY created_at DESC) AS position,
					created_at
				FROM jobs
				WHERE type = $1 AND status IN ($2, $3)
			) ranked
			WHERE position > $4 OR created_at < $5
		)
	`

	res, err := s.db.ExecContext(ctx, query,
		string(jobType),
		string(job.StatusCompleted),
		string(job.StatusFailed),
		retainCount,
		time.Now().UTC().Add(-maxAge),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge finished jobs: %w", MapError(err))
	}

	purged, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(purged), nil
}

func scanJob(row rowScanner) (*job.Job, error) {
	var j job.Job
	var jobType, status string
	var startedAt, completedAt sql.NullTime
	var lastError sql.NullString
	var result []byte

	err := row.Scan(
		&j.ID,
		&jobType,
		(*[]byte)(&j.Payload),
		&status,
		&j.Attempts,
		&j.MaxAttempts,
		&j.RunAt,
		&j.CreatedAt,
		&startedAt,
		&completedAt,
		&lastError,
		&result,
	)
	if err != nil {
		return nil, err
	}

	j.Type = job.Type(jobType)
	j.Status = job.Status(status)
	if startedAt.Valid {
		j.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		j.CompletedAt = &completedAt.Time
	}
	j.LastError = lastError.String
	if len(result) > 0 {
		j.Result = result
	}
	return &j, nil
}
