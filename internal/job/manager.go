package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/calsync-io/calsync-api/internal/store"
)

// Manager is the single entry point the rest of the system uses to submit
// background work. It routes a job-type name to the queue registered for it;
// queues are registered once at startup, so adding a job type never touches
// dispatch logic.
type Manager struct {
	mu     sync.RWMutex
	queues map[Type]*Queue
	logger *slog.Logger
}

// NewManager creates an empty queue manager.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		queues: make(map[Type]*Queue),
		logger: logger.With("component", "queue_manager"),
	}
}

// Register adds a queue. Registering the same job type twice is a wiring
// bug and returns an error.
func (m *Manager) Register(q *Queue) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.queues[q.Type()]; exists {
		return fmt.Errorf("queue already registered for type %q", q.Type())
	}

	m.queues[q.Type()] = q
	m.logger.Debug("registered queue", "type", string(q.Type()))
	return nil
}

// AddJob submits a payload to the queue registered for jobType.
// Returns ErrUnknownJobType if none is registered.
func (m *Manager) AddJob(ctx context.Context, jobType Type, payload []byte) (uuid.UUID, error) {
	q, ok := m.queue(jobType)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrUnknownJobType, jobType)
	}
	return q.AddJob(ctx, payload)
}

// GetJob looks a job up by id. Job ids are not namespaced by type, so every
// registered queue is queried; the first hit wins.
// Returns store.ErrJobNotFound when no queue knows the id.
func (m *Manager) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	m.mu.RLock()
	queues := make([]*Queue, 0, len(m.queues))
	for _, q := range m.queues {
		queues = append(queues, q)
	}
	m.mu.RUnlock()

	for _, q := range queues {
		j, err := q.GetJob(ctx, id)
		if err == nil {
			return j, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	return nil, store.ErrJobNotFound
}

// Stats returns per-queue counts of pending/processing/completed/failed jobs.
func (m *Manager) Stats(ctx context.Context) (map[Type]Counts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[Type]Counts, len(m.queues))
	for jobType, q := range m.queues {
		counts, err := q.Counts(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to count jobs for %q: %w", jobType, err)
		}
		stats[jobType] = counts
	}

	return stats, nil
}

// Pause stops processing for one named queue without affecting others.
// Enqueue still succeeds while paused.
func (m *Manager) Pause(jobType Type) error {
	q, ok := m.queue(jobType)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownJobType, jobType)
	}
	q.Pause()
	return nil
}

// Resume restarts processing for one named queue.
func (m *Manager) Resume(jobType Type) error {
	q, ok := m.queue(jobType)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownJobType, jobType)
	}
	q.Resume()
	return nil
}

// StartAll starts every registered queue.
func (m *Manager) StartAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, q := range m.queues {
		q.Start()
	}
}

// StopAll gracefully stops every registered queue.
func (m *Manager) StopAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, q := range m.queues {
		q.Stop()
	}
}

func (m *Manager) queue(jobType Type) (*Queue, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.queues[jobType]
	return q, ok
}
