package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/calsync-io/calsync-api/internal/domain"
)

// CredentialStore defines the interface for provider credential persistence.
type CredentialStore interface {
	// GetByUserID retrieves the credential stored for the user.
	// Returns ErrCredentialNotFound if the user has none.
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.ProviderCredential, error)

	// Upsert stores the credential, replacing any existing one for the same
	// user. Concurrent refreshes race safely: the last writer wins, which is
	// acceptable because any stored pair is provider-issued and valid.
	Upsert(ctx context.Context, cred *domain.ProviderCredential) error

	// Delete removes the user's credential.
	// Returns ErrCredentialNotFound if the user has none.
	Delete(ctx context.Context, userID uuid.UUID) error

	// DeleteExpired removes credentials whose expiry precedes the given time
	// and returns the number removed.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
