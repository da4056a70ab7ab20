package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/calsync-io/calsync-api/internal/domain"
	"github.com/calsync-io/calsync-api/internal/job"
	"github.com/calsync-io/calsync-api/internal/service"
	"github.com/calsync-io/calsync-api/internal/service/auth"
	"github.com/calsync-io/calsync-api/internal/store"
)

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"expired token", auth.ErrExpiredToken, http.StatusUnauthorized},
		{"invalid token", auth.ErrInvalidToken, http.StatusUnauthorized},
		{"not owned", service.ErrNotOwned, http.StatusForbidden},
		{"event not found", service.ErrEventNotFound, http.StatusNotFound},
		{"job not found", store.ErrJobNotFound, http.StatusNotFound},
		{"provider not connected", service.ErrProviderNotConnected, http.StatusConflict},
		{"queue full", job.ErrQueueFull, http.StatusTooManyRequests},
		{"invalid cursor", service.ErrInvalidCursor, http.StatusBadRequest},
		{"validation", domain.ErrValidation, http.StatusBadRequest},
		{"unknown job type", job.ErrUnknownJobType, http.StatusBadRequest},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, MapErrorToStatusCode(tt.err))
		})
	}
}

func TestMapErrorToStatusCodeUnwrapsWrappedErrors(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("list events: %w", service.ErrInvalidCursor)
	assert.Equal(t, http.StatusBadRequest, MapErrorToStatusCode(wrapped))
}

func TestGetSafeErrorMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Event not found", GetSafeErrorMessage(service.ErrEventNotFound))
	assert.Equal(t, "Job not found", GetSafeErrorMessage(store.ErrJobNotFound))

	// Unknown errors never leak their message.
	internal := errors.New("pq: connection reset by peer")
	got := GetSafeErrorMessage(internal)
	assert.NotContains(t, got, "pq:")
	assert.Equal(t, "An internal error occurred", got)
}
