package api

import (
	"log/slog"
	"net/http"

	"github.com/calsync-io/calsync-api/internal/api/middleware"
	"github.com/calsync-io/calsync-api/internal/api/shared"
	"github.com/calsync-io/calsync-api/internal/notify"
)

// WSHandler upgrades authenticated requests into job-notification websocket
// subscriptions.
type WSHandler struct {
	hub    *notify.Hub
	logger *slog.Logger
}

// NewWSHandler creates a WSHandler.
func NewWSHandler(hub *notify.Hub, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		hub:    hub,
		logger: logger.With("component", "ws_handler"),
	}
}

// Subscribe handles GET /ws. The connection receives job lifecycle events
// for the authenticated user until either side closes it.
func (h *WSHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	if err := h.hub.Subscribe(w, r, userID); err != nil {
		// The upgrader has already written its own error response.
		h.logger.Debug("websocket subscribe failed", "error", err, "user_id", userID)
	}
}
