package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/calsync-io/calsync-api/internal/job"
)

// QueueHooks builds job lifecycle hooks that publish notifications to the
// job's subject user. A payload without a routable user id is logged and
// produces no notification.
func QueueHooks(notifier Notifier, logger *slog.Logger) job.Hooks {
	publish := func(j *job.Job, kind Kind, message string, result json.RawMessage) {
		userID, err := job.SubjectUserID(j.Payload)
		if err != nil {
			logger.Warn("cannot route notification for job without subject user",
				"job_id", j.ID,
				"job_type", j.Type)
			return
		}

		notifier.Publish(context.Background(), Event{
			Kind:      kind,
			JobID:     j.ID,
			JobType:   string(j.Type),
			Message:   message,
			Result:    result,
			Timestamp: time.Now().UTC(),
			UserID:    userID,
		})
	}

	return job.Hooks{
		OnStarted: func(j *job.Job) {
			publish(j, KindJobStarted, fmt.Sprintf("%s started", j.Type), nil)
		},
		OnProgress: func(j *job.Job, message string) {
			publish(j, KindJobProgress, message, nil)
		},
		OnCompleted: func(j *job.Job) {
			publish(j, KindJobCompleted, completionMessage(j), j.Result)
		},
		OnFailed: func(j *job.Job) {
			publish(j, KindJobFailed, j.LastError, nil)
		},
	}
}

// completionMessage prefers the summary the handler put in the result; most
// handlers record one (the sync handler's "scanned N, created N, ..." line).
func completionMessage(j *job.Job) string {
	var result struct {
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal(j.Result, &result); err == nil && result.Summary != "" {
		return result.Summary
	}
	return fmt.Sprintf("%s completed", j.Type)
}
