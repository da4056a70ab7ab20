package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for ProviderCredential
var (
	ErrEmptyCredentialUserID = errors.New("credential user ID cannot be empty")
	ErrEmptyAccessToken      = errors.New("access token cannot be empty")
)

// ProviderCredential holds the token pair the sync engine uses to act on a
// user's behalf against the external calendar provider. Token acquisition and
// refresh happen elsewhere; this entity only stores the result. Overwriting
// with a newer pair is always safe (last writer wins).
type ProviderCredential struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewProviderCredential creates a credential for the given user.
// Returns an error if validation fails.
func NewProviderCredential(
	userID uuid.UUID,
	accessToken, refreshToken string,
	expiresAt time.Time,
) (*ProviderCredential, error) {
	now := time.Now().UTC()
	cred := &ProviderCredential{
		ID:           uuid.New(),
		UserID:       userID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := cred.Validate(); err != nil {
		return nil, err
	}

	return cred, nil
}

// Validate checks if the ProviderCredential has valid data.
func (c *ProviderCredential) Validate() error {
	if c.UserID == uuid.Nil {
		return ErrEmptyCredentialUserID
	}

	if c.AccessToken == "" {
		return ErrEmptyAccessToken
	}

	return nil
}

// Expired reports whether the access token has passed its expiry.
// Credentials with a zero expiry never expire.
func (c *ProviderCredential) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}
