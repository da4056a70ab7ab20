package notify

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calsync-io/calsync-api/internal/job"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Publish(_ context.Context, event Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) all() []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Event(nil), n.events...)
}

func hookJob(t *testing.T, userID uuid.UUID) *job.Job {
	t.Helper()

	payload, err := json.Marshal(map[string]string{"user_id": userID.String()})
	require.NoError(t, err)

	j, err := job.New(job.TypeSyncEvents, payload, 5)
	require.NoError(t, err)
	return j
}

func TestQueueHooksLifecycle(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	hooks := QueueHooks(notifier, testLogger())

	userID := uuid.New()
	j := hookJob(t, userID)

	hooks.OnStarted(j)
	hooks.OnProgress(j, "page 2: 200 events scanned")

	j.Result = json.RawMessage(`{"summary":"scanned 250, created 250","scanned":250}`)
	hooks.OnCompleted(j)

	j.LastError = "provider unavailable"
	hooks.OnFailed(j)

	events := notifier.all()
	require.Len(t, events, 4)

	assert.Equal(t, KindJobStarted, events[0].Kind)
	assert.Equal(t, userID, events[0].UserID)
	assert.Equal(t, j.ID, events[0].JobID)
	assert.Equal(t, "sync-events started", events[0].Message)

	assert.Equal(t, KindJobProgress, events[1].Kind)
	assert.Equal(t, "page 2: 200 events scanned", events[1].Message)

	assert.Equal(t, KindJobCompleted, events[2].Kind)
	assert.Equal(t, "scanned 250, created 250", events[2].Message,
		"completion message comes from the handler's summary")
	assert.Equal(t, j.Result, events[2].Result)

	assert.Equal(t, KindJobFailed, events[3].Kind)
	assert.Equal(t, "provider unavailable", events[3].Message)
}

func TestQueueHooksFallbackMessage(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	hooks := QueueHooks(notifier, testLogger())

	j := hookJob(t, uuid.New())
	j.Result = json.RawMessage(`{"deleted":3}`)
	hooks.OnCompleted(j)

	events := notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, "sync-events completed", events[0].Message)
}

func TestQueueHooksSkipUnroutableJob(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	hooks := QueueHooks(notifier, testLogger())

	j := &job.Job{
		ID:      uuid.New(),
		Type:    job.TypeSyncEvents,
		Payload: json.RawMessage(`{}`),
	}
	hooks.OnStarted(j)

	assert.Empty(t, notifier.all(), "no subject user means no notification")
}
