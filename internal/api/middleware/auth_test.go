package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calsync-io/calsync-api/internal/service/auth"
)

type stubJWTService struct {
	claims *auth.Claims
	err    error
}

func (s *stubJWTService) GenerateToken(context.Context, uuid.UUID) (string, error) {
	return "", nil
}

func (s *stubJWTService) ValidateToken(_ context.Context, tokenString string) (*auth.Claims, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.claims, nil
}

func runAuthenticated(t *testing.T, m *AuthMiddleware, r *http.Request) (*httptest.ResponseRecorder, uuid.UUID, bool) {
	t.Helper()

	var gotUserID uuid.UUID
	var called bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		gotUserID, _ = GetUserID(r)
		w.WriteHeader(http.StatusOK)
	})

	w := httptest.NewRecorder()
	m.Authenticate(next).ServeHTTP(w, r)
	return w, gotUserID, called
}

func TestAuthenticateValidBearerToken(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	m := NewAuthMiddleware(&stubJWTService{claims: &auth.Claims{UserID: userID}})

	r := httptest.NewRequest(http.MethodGet, "/events", nil)
	r.Header.Set("Authorization", "Bearer sometoken")

	w, gotUserID, called := runAuthenticated(t, m, r)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
	assert.Equal(t, userID, gotUserID)
}

func TestAuthenticateTokenQueryParam(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	m := NewAuthMiddleware(&stubJWTService{claims: &auth.Claims{UserID: userID}})

	r := httptest.NewRequest(http.MethodGet, "/ws?token=sometoken", nil)

	w, gotUserID, called := runAuthenticated(t, m, r)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
	assert.Equal(t, userID, gotUserID)
}

func TestAuthenticateMissingToken(t *testing.T) {
	t.Parallel()

	m := NewAuthMiddleware(&stubJWTService{})

	r := httptest.NewRequest(http.MethodGet, "/events", nil)
	w, _, called := runAuthenticated(t, m, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, called)
}

func TestAuthenticateMalformedHeader(t *testing.T) {
	t.Parallel()

	m := NewAuthMiddleware(&stubJWTService{})

	r := httptest.NewRequest(http.MethodGet, "/events", nil)
	r.Header.Set("Authorization", "Token abc")
	w, _, called := runAuthenticated(t, m, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, called)
}

func TestAuthenticateRejectedToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
	}{
		{"expired", auth.ErrExpiredToken},
		{"invalid", auth.ErrInvalidToken},
		{"not yet valid", auth.ErrTokenNotYetValid},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := NewAuthMiddleware(&stubJWTService{err: tt.err})
			r := httptest.NewRequest(http.MethodGet, "/events", nil)
			r.Header.Set("Authorization", "Bearer sometoken")

			w, _, called := runAuthenticated(t, m, r)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.False(t, called)
		})
	}
}

func TestGetUserIDAbsent(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/events", nil)
	_, ok := GetUserID(r)
	assert.False(t, ok)
}
