package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status represents the current state of a job.
type Status string

// Possible job status values. Transitions are monotonic along
// pending -> processing -> (completed | failed); a failed job with attempts
// remaining re-enters pending (scheduled by RunAt) and then processing
// without its attempt count being reset.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Type identifies a kind of background work. The set is closed: adding a new
// type means registering a new queue at startup, not touching dispatch logic.
type Type string

const (
	TypeSyncEvents           Type = "sync-events"
	TypeConnectProvider      Type = "connect-provider"
	TypeCleanupExpiredTokens Type = "cleanup-expired-tokens"
)

// Valid reports whether t is a known job type.
func (t Type) Valid() bool {
	switch t {
	case TypeSyncEvents, TypeConnectProvider, TypeCleanupExpiredTokens:
		return true
	default:
		return false
	}
}

// Common errors returned by the queue and manager.
var (
	// ErrQueueFull is returned when the pending backlog has reached the
	// queue's capacity.
	ErrQueueFull = errors.New("job queue is full")

	// ErrUnknownJobType is returned when no queue is registered for the
	// requested job type.
	ErrUnknownJobType = errors.New("unknown job type")

	// ErrMissingUserID is returned when a payload lacks the subject user id.
	ErrMissingUserID = errors.New("payload must include user_id")
)

// Job is one durable unit of background work. Only the owning queue's
// processor mutates a job after enqueue; everyone else observes snapshots
// via GetJob.
type Job struct {
	ID          uuid.UUID       `json:"id"`
	Type        Type            `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      Status          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`

	// RunAt is the earliest time the job is eligible to run. Retries move it
	// forward by the backoff delay.
	RunAt time.Time `json:"run_at"`

	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// Finished reports whether the job has reached a terminal status.
func (j *Job) Finished() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// New creates a pending job of the given type. The payload must carry the
// subject user id.
func New(jobType Type, payload json.RawMessage, maxAttempts int) (*Job, error) {
	if !jobType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownJobType, jobType)
	}

	if _, err := SubjectUserID(payload); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Job{
		ID:          uuid.New(),
		Type:        jobType,
		Payload:     payload,
		Status:      StatusPending,
		MaxAttempts: maxAttempts,
		RunAt:       now,
		CreatedAt:   now,
	}, nil
}

// SubjectUserID extracts the subject user id every payload must carry.
func SubjectUserID(payload json.RawMessage) (uuid.UUID, error) {
	var p struct {
		UserID uuid.UUID `json:"user_id"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrMissingUserID, err)
	}
	if p.UserID == uuid.Nil {
		return uuid.Nil, ErrMissingUserID
	}
	return p.UserID, nil
}

// Handler executes one job type's work. The returned payload becomes the
// job's result on success. Handlers run at-least-once and must be idempotent.
type Handler func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

// terminalError marks a failure that retrying cannot fix (e.g. a user with
// no stored credential). The queue fails such jobs immediately regardless of
// attempts remaining.
type terminalError struct {
	err error
}

func (e *terminalError) Error() string { return e.err.Error() }
func (e *terminalError) Unwrap() error { return e.err }

// Terminal wraps err so the queue will not retry it.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &terminalError{err: err}
}

// IsTerminal reports whether err (or anything it wraps) was marked terminal.
func IsTerminal(err error) bool {
	var te *terminalError
	return errors.As(err, &te)
}
