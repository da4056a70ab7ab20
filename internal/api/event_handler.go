package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/calsync-io/calsync-api/internal/api/middleware"
	"github.com/calsync-io/calsync-api/internal/api/shared"
	"github.com/calsync-io/calsync-api/internal/service"
)

// EventHandler serves the calendar event CRUD and listing endpoints.
type EventHandler struct {
	events service.EventService
	logger *slog.Logger
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(events service.EventService, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		events: events,
		logger: logger.With("component", "event_handler"),
	}
}

// ListEvents handles GET /events. Supports from/to time filters (RFC3339),
// an opaque cursor, and a limit.
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	params, err := parseListParams(r)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.events.ListEvents(r.Context(), userID, params)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, page)
}

// GetEvent handles GET /events/{id}.
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	userID, eventID, ok := h.identify(w, r)
	if !ok {
		return
	}

	event, err := h.events.GetEvent(r.Context(), userID, eventID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, event)
}

// CreateEvent handles POST /events.
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var input service.EventInput
	if err := shared.DecodeJSON(r, &input); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := shared.ValidateRequest(input); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request: title and start_at are required")
		return
	}

	event, err := h.events.CreateEvent(r.Context(), userID, input)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, event)
}

// UpdateEvent handles PUT /events/{id}. The input replaces the event's
// caller-editable fields wholesale.
func (h *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	userID, eventID, ok := h.identify(w, r)
	if !ok {
		return
	}

	var input service.EventInput
	if err := shared.DecodeJSON(r, &input); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := shared.ValidateRequest(input); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request: title and start_at are required")
		return
	}

	event, err := h.events.UpdateEvent(r.Context(), userID, eventID, input)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, event)
}

// DeleteEvent handles DELETE /events/{id}.
func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	userID, eventID, ok := h.identify(w, r)
	if !ok {
		return
	}

	if err := h.events.DeleteEvent(r.Context(), userID, eventID); err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// identify resolves the authenticated user and the {id} path parameter,
// writing the error response itself when either is missing.
func (h *EventHandler) identify(w http.ResponseWriter, r *http.Request) (userID, eventID uuid.UUID, ok bool) {
	userID, found := middleware.GetUserID(r)
	if !found {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return uuid.Nil, uuid.Nil, false
	}

	eventID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid event ID")
		return uuid.Nil, uuid.Nil, false
	}

	return userID, eventID, true
}

func parseListParams(r *http.Request) (service.ListParams, error) {
	q := r.URL.Query()
	params := service.ListParams{Cursor: q.Get("cursor")}

	if from := q.Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return params, fmt.Errorf("invalid from parameter: must be RFC3339")
		}
		params.From = t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return params, fmt.Errorf("invalid to parameter: must be RFC3339")
		}
		params.To = t
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			return params, fmt.Errorf("invalid limit parameter: must be a positive integer")
		}
		params.Limit = n
	}

	return params, nil
}
