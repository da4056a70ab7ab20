package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/calsync-io/calsync-api/internal/job"
)

// JobRequestEvent asks for a background job to be enqueued. Services emit one
// of these instead of holding a queue reference; a SubmitHandler wired at
// startup turns it into an actual enqueue.
type JobRequestEvent struct {
	ID        uuid.UUID       `json:"id"`
	Type      job.Type        `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewJobRequestEvent builds an event requesting one job of the given type.
// The payload is serialized immediately so the event is self-contained.
func NewJobRequestEvent(jobType job.Type, payload any) (*JobRequestEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	return &JobRequestEvent{
		ID:        uuid.New(),
		Type:      jobType,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// UnmarshalPayload decodes the event payload into v.
func (e *JobRequestEvent) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler receives emitted events.
type EventHandler interface {
	HandleEvent(ctx context.Context, event *JobRequestEvent) error
}

// EventEmitter publishes events to every registered handler, letting the
// emitting service stay ignorant of who consumes them.
type EventEmitter interface {
	EmitEvent(ctx context.Context, event *JobRequestEvent) error
}
