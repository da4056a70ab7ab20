package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/calsync-io/calsync-api/internal/domain"
	"github.com/calsync-io/calsync-api/internal/store"
)

// ClientFactory builds an authenticated ProviderClient from a stored
// credential. Kept as a function type so tests can substitute fakes and so
// the transport wiring stays out of the credential lookup path.
type ClientFactory func(cred *domain.ProviderCredential) ProviderClient

// StoreCredentialProvider resolves provider clients from credentials held in
// a CredentialStore. It implements CredentialProvider.
type StoreCredentialProvider struct {
	credentials store.CredentialStore
	factory     ClientFactory
	now         func() time.Time
}

// NewStoreCredentialProvider creates a credential provider backed by the
// given store. The factory is invoked once per GetClient call with the
// freshly loaded credential.
func NewStoreCredentialProvider(
	credentials store.CredentialStore,
	factory ClientFactory,
) (*StoreCredentialProvider, error) {
	if credentials == nil {
		return nil, fmt.Errorf("credential store cannot be nil")
	}
	if factory == nil {
		return nil, fmt.Errorf("client factory cannot be nil")
	}
	return &StoreCredentialProvider{
		credentials: credentials,
		factory:     factory,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// GetClient loads the user's stored credential and builds a client from it.
// A missing or expired credential yields ErrNoCredential: both mean the user
// must reconnect the provider, so callers treat them identically.
func (p *StoreCredentialProvider) GetClient(ctx context.Context, userID uuid.UUID) (ProviderClient, error) {
	cred, err := p.credentials.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrCredentialNotFound) {
			return nil, ErrNoCredential
		}
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}

	if cred.Expired(p.now()) {
		return nil, fmt.Errorf("%w: credential expired at %s", ErrNoCredential, cred.ExpiresAt.Format(time.RFC3339))
	}

	return p.factory(cred), nil
}
