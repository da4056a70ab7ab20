package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/calsync-io/calsync-api/internal/job"
)

// Submitter is the slice of the queue manager the handler needs. Kept narrow
// so tests can stand in for the real manager.
type Submitter interface {
	AddJob(ctx context.Context, jobType job.Type, payload []byte) (uuid.UUID, error)
}

// SubmitHandler turns JobRequestEvents into enqueued jobs. It closes the loop
// between services that emit events and the queues that do the work.
type SubmitHandler struct {
	manager Submitter
	logger  *slog.Logger
}

// NewSubmitHandler creates a handler that enqueues requested jobs on the
// given manager.
func NewSubmitHandler(manager Submitter, logger *slog.Logger) *SubmitHandler {
	return &SubmitHandler{
		manager: manager,
		logger:  logger.With("component", "job_submit_handler"),
	}
}

// HandleEvent enqueues a job for the event's type and payload. An event
// naming a type with no registered queue is logged and dropped rather than
// failing the emit, so one bad event cannot break other handlers.
func (h *SubmitHandler) HandleEvent(ctx context.Context, event *JobRequestEvent) error {
	if !event.Type.Valid() {
		h.logger.Warn("ignoring event with unknown job type",
			"event_type", event.Type,
			"event_id", event.ID)
		return nil
	}

	jobID, err := h.manager.AddJob(ctx, event.Type, event.Payload)
	if err != nil {
		if errors.Is(err, job.ErrUnknownJobType) {
			h.logger.Warn("no queue registered for requested job type",
				"event_type", event.Type,
				"event_id", event.ID)
			return nil
		}
		h.logger.Error("failed to enqueue requested job",
			"error", err,
			"event_type", event.Type,
			"event_id", event.ID)
		return fmt.Errorf("failed to enqueue job: %w", err)
	}

	h.logger.Info("job enqueued from event",
		"job_id", jobID,
		"job_type", event.Type,
		"event_id", event.ID)
	return nil
}

var _ EventHandler = (*SubmitHandler)(nil)
