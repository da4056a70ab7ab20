package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calsync-io/calsync-api/internal/domain"
)

func TestNewProviderCredential(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	expiresAt := time.Now().UTC().Add(time.Hour)

	cred, err := domain.NewProviderCredential(userID, "access-1", "refresh-1", expiresAt)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, cred.ID)
	assert.Equal(t, userID, cred.UserID)
	assert.Equal(t, "access-1", cred.AccessToken)
	assert.Equal(t, "refresh-1", cred.RefreshToken)
	assert.Equal(t, expiresAt, cred.ExpiresAt)
	assert.False(t, cred.CreatedAt.IsZero())
}

func TestNewProviderCredentialValidation(t *testing.T) {
	t.Parallel()

	_, err := domain.NewProviderCredential(uuid.Nil, "access-1", "", time.Time{})
	assert.ErrorIs(t, err, domain.ErrEmptyCredentialUserID)

	_, err = domain.NewProviderCredential(uuid.New(), "", "", time.Time{})
	assert.ErrorIs(t, err, domain.ErrEmptyAccessToken)
}

func TestProviderCredentialExpired(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	cred, err := domain.NewProviderCredential(uuid.New(), "access-1", "", time.Time{})
	require.NoError(t, err)
	assert.False(t, cred.Expired(now), "zero expiry never expires")

	cred.ExpiresAt = now.Add(time.Minute)
	assert.False(t, cred.Expired(now))

	cred.ExpiresAt = now.Add(-time.Minute)
	assert.True(t, cred.Expired(now))
}
