package job

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Counts aggregates per-status job counts for one queue.
type Counts struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// JobStore defines the interface for persisting jobs. The in-memory
// implementation backs tests and single-process deployments; the postgres
// implementation lets job state survive restarts and be shared by workers.
type JobStore interface {
	// Save persists a new job record.
	Save(ctx context.Context, j *Job) error

	// GetByID retrieves a snapshot of a job.
	// Returns store.ErrJobNotFound if no such job exists.
	GetByID(ctx context.Context, id uuid.UUID) (*Job, error)

	// ClaimNext atomically takes the next eligible pending job of the given
	// type (FIFO by creation time among jobs whose RunAt has passed), marks
	// it processing, and stamps StartedAt. Returns nil when no job is due.
	ClaimNext(ctx context.Context, jobType Type, now time.Time) (*Job, error)

	// MarkCompleted finalizes a job with its result.
	MarkCompleted(ctx context.Context, id uuid.UUID, result []byte) error

	// MarkFailed records a handler failure and increments the attempt count.
	// When retry is true the job returns to pending, scheduled at runAt;
	// otherwise it is left in the terminal failed state.
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, retry bool, runAt time.Time) error

	// ReleaseStalled returns jobs stuck in processing longer than olderThan
	// back to pending, and reports how many were released.
	ReleaseStalled(ctx context.Context, jobType Type, olderThan time.Duration) (int, error)

	// Counts returns per-status counts for the given job type.
	Counts(ctx context.Context, jobType Type) (Counts, error)

	// PurgeFinished deletes completed/failed jobs beyond the retention count
	// or older than maxAge, oldest first. Pending and processing jobs are
	// never deleted. Returns the number purged.
	PurgeFinished(ctx context.Context, jobType Type, retainCount int, maxAge time.Duration) (int, error)
}
