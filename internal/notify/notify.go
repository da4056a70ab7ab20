package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Kind names the lifecycle transition a notification reports.
type Kind string

const (
	KindJobStarted   Kind = "job.started"
	KindJobProgress  Kind = "job.progress"
	KindJobCompleted Kind = "job.completed"
	KindJobFailed    Kind = "job.failed"
)

// Event is one notification addressed to a single user. UserID routes the
// event and is not part of the wire payload.
type Event struct {
	Kind      Kind            `json:"kind"`
	JobID     uuid.UUID       `json:"job_id"`
	JobType   string          `json:"job_type"`
	Message   string          `json:"message,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Timestamp time.Time       `json:"timestamp"`

	UserID uuid.UUID `json:"-"`
}

// Notifier publishes events to whoever is listening for the subject user.
type Notifier interface {
	Publish(ctx context.Context, event Event)
}

// NopNotifier discards every event. Used where notifications are disabled.
type NopNotifier struct{}

func (NopNotifier) Publish(context.Context, Event) {}

var _ Notifier = NopNotifier{}
