package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// QueueConfig holds configuration for one named queue.
type QueueConfig struct {
	// WorkerCount determines how many concurrent workers process jobs.
	// One worker per queue keeps provider-API rate limits predictable.
	WorkerCount int

	// PollInterval is how often an idle worker checks for due jobs.
	PollInterval time.Duration

	// MaxAttempts is the attempt ceiling before a job is left failed.
	MaxAttempts int

	// BackoffBase and BackoffCap bound the exponential retry delay:
	// base * 2^attempt, capped.
	BackoffBase time.Duration
	BackoffCap  time.Duration

	// StalledAfter defines how long a job can sit in processing before it is
	// presumed abandoned and returned to pending.
	StalledAfter time.Duration

	// StalledCheckInterval defines how often to check for stalled jobs.
	StalledCheckInterval time.Duration

	// Capacity caps the pending backlog; enqueue beyond it is rejected.
	Capacity int

	// RetainCount and RetainAge bound how long finished jobs are kept.
	RetainCount int
	RetainAge   time.Duration

	// RetentionSweepInterval defines how often finished jobs are purged.
	RetentionSweepInterval time.Duration
}

// DefaultQueueConfig returns a QueueConfig with reasonable defaults.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		WorkerCount:            1,
		PollInterval:           time.Second,
		MaxAttempts:            5,
		BackoffBase:            30 * time.Second,
		BackoffCap:             15 * time.Minute,
		StalledAfter:           30 * time.Minute,
		StalledCheckInterval:   5 * time.Minute,
		Capacity:               1000,
		RetainCount:            1000,
		RetainAge:              7 * 24 * time.Hour,
		RetentionSweepInterval: time.Hour,
	}
}

// Hooks are the queue's lifecycle notification points. They are invoked
// outside the status transition: a hook that errors or panics never affects
// the job record.
type Hooks struct {
	OnStarted   func(j *Job)
	OnProgress  func(j *Job, message string)
	OnCompleted func(j *Job)
	OnFailed    func(j *Job)
}

// Queue is a named, durable queue of one job type. It owns enqueue,
// claim-for-processing, retry with backoff, stalled-job recovery, and
// retention of finished jobs.
type Queue struct {
	jobType Type
	handler Handler
	store   JobStore
	config  QueueConfig
	logger  *slog.Logger
	hooks   Hooks

	paused atomic.Bool

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	startOnce  sync.Once
	stopOnce   sync.Once
}

// NewQueue creates a queue for the given job type. The handler is invoked
// for every claimed job; its error decides retry vs terminal failure.
func NewQueue(
	jobType Type,
	handler Handler,
	store JobStore,
	config QueueConfig,
	logger *slog.Logger,
) *Queue {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	if config.StalledCheckInterval <= 0 {
		config.StalledCheckInterval = 5 * time.Minute
	}
	if config.RetentionSweepInterval <= 0 {
		config.RetentionSweepInterval = time.Hour
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Queue{
		jobType:    jobType,
		handler:    handler,
		store:      store,
		config:     config,
		logger:     logger.With("queue", string(jobType)),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// SetHooks installs the lifecycle hooks. Must be called before Start.
func (q *Queue) SetHooks(hooks Hooks) {
	q.hooks = hooks
}

// Type returns the job type this queue processes.
func (q *Queue) Type() Type {
	return q.jobType
}

// AddJob validates the payload, persists a pending job, and returns its id.
// It never executes work synchronously; the processing loop picks the job up.
// Enqueue succeeds while the queue is paused; jobs simply accumulate.
func (q *Queue) AddJob(ctx context.Context, payload []byte) (uuid.UUID, error) {
	j, err := New(q.jobType, payload, q.config.MaxAttempts)
	if err != nil {
		return uuid.Nil, err
	}

	counts, err := q.store.Counts(ctx, q.jobType)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to check queue backlog: %w", err)
	}
	if counts.Pending >= q.config.Capacity {
		return uuid.Nil, fmt.Errorf("%w: capacity %d reached", ErrQueueFull, q.config.Capacity)
	}

	if err := q.store.Save(ctx, j); err != nil {
		return uuid.Nil, fmt.Errorf("failed to save job: %w", err)
	}

	q.logger.Debug("job enqueued", "job_id", j.ID, "pending", counts.Pending+1)
	return j.ID, nil
}

// GetJob returns a read-only snapshot of a job. Safe to call from a
// different request than the one that enqueued it.
func (q *Queue) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	return q.store.GetByID(ctx, id)
}

// Counts returns per-status counts for this queue.
func (q *Queue) Counts(ctx context.Context) (Counts, error) {
	return q.store.Counts(ctx, q.jobType)
}

// Pause stops the processing loop from claiming new jobs. A job already
// executing runs to completion.
func (q *Queue) Pause() {
	q.paused.Store(true)
	q.logger.Info("queue paused")
}

// Resume lets the processing loop claim jobs again.
func (q *Queue) Resume() {
	q.paused.Store(false)
	q.logger.Info("queue resumed")
}

// Paused reports whether the queue is paused.
func (q *Queue) Paused() bool {
	return q.paused.Load()
}

// Start launches the worker goroutines, the stalled-job monitor, and the
// retention sweeper.
func (q *Queue) Start() {
	q.startOnce.Do(func() {
		for i := 0; i < q.config.WorkerCount; i++ {
			q.wg.Add(1)
			go q.worker(i)
		}

		q.wg.Add(1)
		go q.stalledJobMonitor()

		q.wg.Add(1)
		go q.retentionSweeper()

		q.logger.Info("queue started", "workers", q.config.WorkerCount)
	})
}

// Stop gracefully shuts down the queue, waiting for in-flight jobs.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		q.cancelFunc()
		q.wg.Wait()
		q.logger.Info("queue stopped")
	})
}

// worker polls for due jobs and processes them one at a time.
func (q *Queue) worker(id int) {
	defer q.wg.Done()

	q.logger.Debug("starting worker", "worker_id", id)

	ticker := time.NewTicker(q.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			q.logger.Debug("stopping worker", "worker_id", id)
			return

		case <-ticker.C:
			if q.paused.Load() {
				continue
			}
			q.drain(id)
		}
	}
}

// drain claims and processes due jobs until none remain or shutdown begins.
func (q *Queue) drain(workerID int) {
	for {
		if q.ctx.Err() != nil || q.paused.Load() {
			return
		}

		j, err := q.store.ClaimNext(q.ctx, q.jobType, time.Now().UTC())
		if err != nil {
			q.logger.Error("failed to claim next job", "error", err)
			return
		}
		if j == nil {
			return
		}

		q.processJob(j, workerID)
	}
}

// processJob handles execution of a single claimed job. Handler errors are
// recorded on the job record and never propagate further.
func (q *Queue) processJob(j *Job, workerID int) {
	ctx := q.ctx
	logger := q.logger.With(
		"job_id", j.ID,
		"worker_id", workerID,
		"attempt", j.Attempts+1,
	)

	logger.Info("processing job")
	q.runHook(q.hooks.OnStarted, j, logger)

	if q.hooks.OnProgress != nil {
		ctx = WithProgress(ctx, func(message string) {
			q.runHook(func(j *Job) { q.hooks.OnProgress(j, message) }, j, logger)
		})
	}

	result, err := q.handler(ctx, j.Payload)
	if err == nil {
		if updateErr := q.store.MarkCompleted(ctx, j.ID, result); updateErr != nil {
			logger.Error("failed to mark job completed", "error", updateErr)
			return
		}
		logger.Info("job completed")

		if done, getErr := q.store.GetByID(ctx, j.ID); getErr == nil {
			q.runHook(q.hooks.OnCompleted, done, logger)
		}
		return
	}

	attempts := j.Attempts + 1
	retry := !IsTerminal(err) && attempts < j.MaxAttempts
	runAt := time.Now().UTC().Add(q.backoffDelay(attempts))

	logger.Error("job execution failed", "error", err, "retry", retry)

	if updateErr := q.store.MarkFailed(ctx, j.ID, err.Error(), retry, runAt); updateErr != nil {
		logger.Error("failed to record job failure", "error", updateErr)
		return
	}

	if !retry {
		if failed, getErr := q.store.GetByID(ctx, j.ID); getErr == nil {
			q.runHook(q.hooks.OnFailed, failed, logger)
		}
	}
}

// backoffDelay computes base * 2^attempt, capped.
func (q *Queue) backoffDelay(attempt int) time.Duration {
	delay := q.config.BackoffBase
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= q.config.BackoffCap {
			return q.config.BackoffCap
		}
	}
	return delay
}

// runHook invokes a lifecycle hook, isolating the queue from hook panics.
func (q *Queue) runHook(hook func(*Job), j *Job, logger *slog.Logger) {
	if hook == nil {
		return
	}

	defer func() {
		if p := recover(); p != nil {
			logger.Error("lifecycle hook panicked", "panic", p)
		}
	}()

	hook(j)
}

// stalledJobMonitor periodically returns jobs stuck in processing past the
// liveness threshold back to pending.
func (q *Queue) stalledJobMonitor() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.config.StalledCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return

		case <-ticker.C:
			released, err := q.store.ReleaseStalled(q.ctx, q.jobType, q.config.StalledAfter)
			if err != nil {
				q.logger.Error("failed to check for stalled jobs", "error", err)
				continue
			}
			if released > 0 {
				q.logger.Warn("released stalled jobs", "count", released)
			}
		}
	}
}

// retentionSweeper purges finished jobs past the retention bounds.
func (q *Queue) retentionSweeper() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.config.RetentionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return

		case <-ticker.C:
			purged, err := q.store.PurgeFinished(
				q.ctx,
				q.jobType,
				q.config.RetainCount,
				q.config.RetainAge,
			)
			if err != nil {
				q.logger.Error("failed to purge finished jobs", "error", err)
				continue
			}
			if purged > 0 {
				q.logger.Debug("purged finished jobs", "count", purged)
			}
		}
	}
}
