package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/calsync-io/calsync-api/internal/api/middleware"
	"github.com/calsync-io/calsync-api/internal/api/shared"
	"github.com/calsync-io/calsync-api/internal/job"
	"github.com/calsync-io/calsync-api/internal/store"
)

// jobManager is the queue-manager surface the handler needs.
type jobManager interface {
	AddJob(ctx context.Context, jobType job.Type, payload []byte) (uuid.UUID, error)
	GetJob(ctx context.Context, id uuid.UUID) (*job.Job, error)
	Stats(ctx context.Context) (map[job.Type]job.Counts, error)
}

// JobHandler serves the background job submission and status endpoints.
type JobHandler struct {
	manager jobManager
	logger  *slog.Logger
}

// NewJobHandler creates a JobHandler.
func NewJobHandler(manager jobManager, logger *slog.Logger) *JobHandler {
	return &JobHandler{
		manager: manager,
		logger:  logger.With("component", "job_handler"),
	}
}

// CreateJobRequest is the body of POST /jobs.
type CreateJobRequest struct {
	Type    string          `json:"type" validate:"required"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// CreateJobResponse acknowledges an accepted job.
type CreateJobResponse struct {
	JobID uuid.UUID `json:"job_id"`
}

// JobResponse is the client-facing view of a job. The payload is omitted:
// connect-provider payloads carry tokens that must never round-trip.
type JobResponse struct {
	ID          uuid.UUID       `json:"id"`
	Type        job.Type        `json:"type"`
	Status      job.Status      `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	RunAt       time.Time       `json:"run_at"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

func toJobResponse(j *job.Job) JobResponse {
	return JobResponse{
		ID:          j.ID,
		Type:        j.Type,
		Status:      j.Status,
		Attempts:    j.Attempts,
		MaxAttempts: j.MaxAttempts,
		RunAt:       j.RunAt,
		CreatedAt:   j.CreatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		LastError:   j.LastError,
		Result:      j.Result,
	}
}

// CreateJob handles POST /jobs. The payload's user_id is always overwritten
// with the authenticated user so callers cannot submit work as someone else.
func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req CreateJobRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	jobType := job.Type(req.Type)
	if !jobType.Valid() {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Unknown job type")
		return
	}

	payload, err := stampUserID(req.Payload, userID)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid job payload")
		return
	}

	jobID, err := h.manager.AddJob(r.Context(), jobType, payload)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	h.logger.Debug("job accepted",
		"job_id", jobID,
		"job_type", string(jobType),
		"user_id", userID)

	shared.RespondWithJSON(w, r, http.StatusAccepted, CreateJobResponse{JobID: jobID})
}

// GetJob handles GET /jobs/{id}. Jobs belonging to other users are reported
// as not found rather than forbidden, so job ids do not leak existence.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid job ID")
		return
	}

	j, err := h.manager.GetJob(r.Context(), jobID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	subject, err := job.SubjectUserID(j.Payload)
	if err != nil || subject != userID {
		respondServiceError(w, r, store.ErrJobNotFound)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, toJobResponse(j))
}

// GetStats handles GET /jobs/stats, returning per-queue status counts.
func (h *JobHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.manager.Stats(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, stats)
}

// stampUserID sets user_id in the payload object, creating the object when
// the payload is empty.
func stampUserID(payload json.RawMessage, userID uuid.UUID) (json.RawMessage, error) {
	fields := make(map[string]json.RawMessage)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &fields); err != nil {
			return nil, err
		}
	}

	id, err := json.Marshal(userID)
	if err != nil {
		return nil, err
	}
	fields["user_id"] = id

	return json.Marshal(fields)
}
