package job

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/calsync-io/calsync-api/internal/store"
)

// MemoryJobStore is an in-process JobStore. It backs tests and single-node
// deployments; the claim path holds the store lock, which is the whole
// concurrency story a process-local queue needs.
type MemoryJobStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*Job

	// seq preserves FIFO order among jobs created within the same clock tick.
	seq  map[uuid.UUID]uint64
	next uint64
}

// NewMemoryJobStore creates an empty in-memory job store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs: make(map[uuid.UUID]*Job),
		seq:  make(map[uuid.UUID]uint64),
	}
}

// Ensure MemoryJobStore implements JobStore
var _ JobStore = (*MemoryJobStore)(nil)

// Save persists a new job record.
func (s *MemoryJobStore) Save(_ context.Context, j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *j
	s.jobs[j.ID] = &cp
	s.seq[j.ID] = s.next
	s.next++
	return nil
}

// GetByID retrieves a snapshot of a job.
func (s *MemoryJobStore) GetByID(_ context.Context, id uuid.UUID) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}

	cp := *j
	return &cp, nil
}

// ClaimNext atomically takes the next eligible pending job of the given type.
func (s *MemoryJobStore) ClaimNext(_ context.Context, jobType Type, now time.Time) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var candidate *Job
	for _, j := range s.jobs {
		if j.Type != jobType || j.Status != StatusPending || j.RunAt.After(now) {
			continue
		}
		if candidate == nil || s.before(j, candidate) {
			candidate = j
		}
	}

	if candidate == nil {
		return nil, nil
	}

	started := now.UTC()
	candidate.Status = StatusProcessing
	candidate.StartedAt = &started

	cp := *candidate
	return &cp, nil
}

// before reports whether a should run ahead of b (FIFO by creation time).
func (s *MemoryJobStore) before(a, b *Job) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return s.seq[a.ID] < s.seq[b.ID]
}

// MarkCompleted finalizes a job with its result.
func (s *MemoryJobStore) MarkCompleted(_ context.Context, id uuid.UUID, result []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}

	now := time.Now().UTC()
	j.Status = StatusCompleted
	j.CompletedAt = &now
	j.LastError = ""
	j.Result = append([]byte(nil), result...)
	return nil
}

// MarkFailed records a handler failure and increments the attempt count.
func (s *MemoryJobStore) MarkFailed(
	_ context.Context,
	id uuid.UUID,
	errMsg string,
	retry bool,
	runAt time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}

	j.Attempts++
	j.LastError = errMsg

	if retry {
		j.Status = StatusPending
		j.RunAt = runAt
		j.StartedAt = nil
		return nil
	}

	now := time.Now().UTC()
	j.Status = StatusFailed
	j.CompletedAt = &now
	return nil
}

// ReleaseStalled returns jobs stuck in processing back to pending.
func (s *MemoryJobStore) ReleaseStalled(
	_ context.Context,
	jobType Type,
	olderThan time.Duration,
) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	released := 0

	for _, j := range s.jobs {
		if j.Type != jobType || j.Status != StatusProcessing {
			continue
		}
		if j.StartedAt == nil || j.StartedAt.After(cutoff) {
			continue
		}
		j.Status = StatusPending
		j.StartedAt = nil
		j.RunAt = time.Now().UTC()
		released++
	}

	return released, nil
}

// Counts returns per-status counts for the given job type.
func (s *MemoryJobStore) Counts(_ context.Context, jobType Type) (Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var c Counts
	for _, j := range s.jobs {
		if j.Type != jobType {
			continue
		}
		switch j.Status {
		case StatusPending:
			c.Pending++
		case StatusProcessing:
			c.Processing++
		case StatusCompleted:
			c.Completed++
		case StatusFailed:
			c.Failed++
		}
	}
	return c, nil
}

// PurgeFinished deletes finished jobs beyond the retention count or age.
func (s *MemoryJobStore) PurgeFinished(
	_ context.Context,
	jobType Type,
	retainCount int,
	maxAge time.Duration,
) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var finished []*Job
	for _, j := range s.jobs {
		if j.Type == jobType && j.Finished() {
			finished = append(finished, j)
		}
	}

	// Newest first; everything past the retention count or older than maxAge
	// is purged.
	sort.Slice(finished, func(i, k int) bool {
		return finishedAt(finished[i]).After(finishedAt(finished[k]))
	})

	cutoff := time.Now().UTC().Add(-maxAge)
	purged := 0
	for i, j := range finished {
		if i >= retainCount || finishedAt(j).Before(cutoff) {
			delete(s.jobs, j.ID)
			delete(s.seq, j.ID)
			purged++
		}
	}

	return purged, nil
}

func finishedAt(j *Job) time.Time {
	if j.CompletedAt != nil {
		return *j.CompletedAt
	}
	return j.CreatedAt
}
