package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calsync-io/calsync-api/internal/job"
	"github.com/calsync-io/calsync-api/internal/store"
)

type fakeManager struct {
	addFn   func(ctx context.Context, jobType job.Type, payload []byte) (uuid.UUID, error)
	getFn   func(ctx context.Context, id uuid.UUID) (*job.Job, error)
	statsFn func(ctx context.Context) (map[job.Type]job.Counts, error)
}

func (f *fakeManager) AddJob(ctx context.Context, jobType job.Type, payload []byte) (uuid.UUID, error) {
	return f.addFn(ctx, jobType, payload)
}

func (f *fakeManager) GetJob(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	return f.getFn(ctx, id)
}

func (f *fakeManager) Stats(ctx context.Context) (map[job.Type]job.Counts, error) {
	return f.statsFn(ctx)
}

func TestCreateJobStampsAuthenticatedUser(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	jobID := uuid.New()
	var gotType job.Type
	var gotPayload []byte

	mgr := &fakeManager{
		addFn: func(_ context.Context, jobType job.Type, payload []byte) (uuid.UUID, error) {
			gotType = jobType
			gotPayload = payload
			return jobID, nil
		},
	}
	h := NewJobHandler(mgr, testLogger())

	// The client-supplied user_id must be overwritten.
	body := []byte(`{"type":"sync-events","payload":{"user_id":"` + uuid.New().String() + `"}}`)
	w := httptest.NewRecorder()
	h.CreateJob(w, authedRequest(http.MethodPost, "/jobs", body, userID, ""))

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, job.TypeSyncEvents, gotType)

	subject, err := job.SubjectUserID(gotPayload)
	require.NoError(t, err)
	assert.Equal(t, userID, subject)

	var resp CreateJobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, jobID, resp.JobID)
}

func TestCreateJobEmptyPayload(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	mgr := &fakeManager{
		addFn: func(_ context.Context, _ job.Type, payload []byte) (uuid.UUID, error) {
			subject, err := job.SubjectUserID(payload)
			require.NoError(t, err)
			assert.Equal(t, userID, subject)
			return uuid.New(), nil
		},
	}
	h := NewJobHandler(mgr, testLogger())

	w := httptest.NewRecorder()
	h.CreateJob(w, authedRequest(http.MethodPost, "/jobs", []byte(`{"type":"sync-events"}`), userID, ""))
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestCreateJobUnknownType(t *testing.T) {
	t.Parallel()

	h := NewJobHandler(&fakeManager{}, testLogger())

	w := httptest.NewRecorder()
	h.CreateJob(w, authedRequest(http.MethodPost, "/jobs", []byte(`{"type":"mine-bitcoin"}`), uuid.New(), ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateJobQueueFull(t *testing.T) {
	t.Parallel()

	mgr := &fakeManager{
		addFn: func(context.Context, job.Type, []byte) (uuid.UUID, error) {
			return uuid.Nil, job.ErrQueueFull
		},
	}
	h := NewJobHandler(mgr, testLogger())

	w := httptest.NewRecorder()
	h.CreateJob(w, authedRequest(http.MethodPost, "/jobs", []byte(`{"type":"sync-events"}`), uuid.New(), ""))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestGetJobOmitsPayload(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	stored, err := job.New(job.TypeConnectProvider, mustPayload(t, map[string]any{
		"user_id":      userID,
		"access_token": "super-secret",
	}), 5)
	require.NoError(t, err)

	mgr := &fakeManager{
		getFn: func(_ context.Context, id uuid.UUID) (*job.Job, error) {
			assert.Equal(t, stored.ID, id)
			return stored, nil
		},
	}
	h := NewJobHandler(mgr, testLogger())

	w := httptest.NewRecorder()
	h.GetJob(w, authedRequest(http.MethodGet, "/jobs/x", nil, userID, stored.ID.String()))

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "super-secret")

	var resp JobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, stored.ID, resp.ID)
	assert.Equal(t, job.StatusPending, resp.Status)
}

func TestGetJobOtherUsersJobIsNotFound(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	stored, err := job.New(job.TypeSyncEvents, mustPayload(t, map[string]any{"user_id": owner}), 5)
	require.NoError(t, err)

	mgr := &fakeManager{
		getFn: func(context.Context, uuid.UUID) (*job.Job, error) {
			return stored, nil
		},
	}
	h := NewJobHandler(mgr, testLogger())

	w := httptest.NewRecorder()
	h.GetJob(w, authedRequest(http.MethodGet, "/jobs/x", nil, uuid.New(), stored.ID.String()))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetJobUnknownID(t *testing.T) {
	t.Parallel()

	mgr := &fakeManager{
		getFn: func(context.Context, uuid.UUID) (*job.Job, error) {
			return nil, store.ErrJobNotFound
		},
	}
	h := NewJobHandler(mgr, testLogger())

	w := httptest.NewRecorder()
	h.GetJob(w, authedRequest(http.MethodGet, "/jobs/x", nil, uuid.New(), uuid.New().String()))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetStats(t *testing.T) {
	t.Parallel()

	mgr := &fakeManager{
		statsFn: func(context.Context) (map[job.Type]job.Counts, error) {
			return map[job.Type]job.Counts{
				job.TypeSyncEvents: {Pending: 2, Completed: 10},
			}, nil
		},
	}
	h := NewJobHandler(mgr, testLogger())

	w := httptest.NewRecorder()
	r := authedRequest(http.MethodGet, "/jobs/stats", nil, uuid.New(), "")
	h.GetStats(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var stats map[job.Type]job.Counts
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats[job.TypeSyncEvents].Pending)
}

func mustPayload(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

// guard against drift between the handler's manager interface and the real
// manager type
var _ jobManager = (*job.Manager)(nil)
