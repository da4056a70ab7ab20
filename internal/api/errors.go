package api

import (
	"errors"
	"net/http"

	"github.com/calsync-io/calsync-api/internal/api/shared"
	"github.com/calsync-io/calsync-api/internal/domain"
	"github.com/calsync-io/calsync-api/internal/job"
	"github.com/calsync-io/calsync-api/internal/service"
	"github.com/calsync-io/calsync-api/internal/service/auth"
	"github.com/calsync-io/calsync-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error types or messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized

	case errors.Is(err, service.ErrNotOwned):
		return http.StatusForbidden

	case errors.Is(err, service.ErrEventNotFound),
		errors.Is(err, store.ErrJobNotFound):
		return http.StatusNotFound

	case errors.Is(err, service.ErrProviderNotConnected):
		return http.StatusConflict

	case errors.Is(err, job.ErrQueueFull):
		return http.StatusTooManyRequests

	case errors.Is(err, service.ErrInvalidCursor),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, job.ErrUnknownJobType),
		errors.Is(err, job.ErrMissingUserID),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for the error. Known
// sentinels get specific wording; everything else collapses to a generic
// message so internal detail stays in the logs.
func GetSafeErrorMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrEventNotFound):
		return "Event not found"
	case errors.Is(err, store.ErrJobNotFound):
		return "Job not found"
	case errors.Is(err, service.ErrNotOwned):
		return "You do not have access to this resource"
	case errors.Is(err, service.ErrProviderNotConnected):
		return "No calendar provider connected"
	case errors.Is(err, service.ErrInvalidCursor):
		return "Invalid pagination cursor"
	case errors.Is(err, job.ErrQueueFull):
		return "Too many queued jobs, try again later"
	case errors.Is(err, job.ErrUnknownJobType):
		return "Unknown job type"
	case errors.Is(err, job.ErrMissingUserID):
		return "Job payload is missing the user id"
	case errors.Is(err, domain.ErrValidation):
		return "Invalid input"
	default:
		return "An internal error occurred"
	}
}

// respondServiceError is the single exit path handlers use for service
// failures.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)

	// 4xx responses carry enough context in the safe message; only server
	// errors need the underlying error logged.
	if status >= http.StatusInternalServerError {
		shared.RespondWithErrorAndLog(w, r, status, message, err)
		return
	}
	shared.RespondWithError(w, r, status, message)
}
