package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calsync-io/calsync-api/internal/domain"
	"github.com/calsync-io/calsync-api/internal/store"
)

type stubCredentialStore struct {
	store.CredentialStore
	getFn func(ctx context.Context, userID uuid.UUID) (*domain.ProviderCredential, error)
}

func (s *stubCredentialStore) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.ProviderCredential, error) {
	return s.getFn(ctx, userID)
}

func staticFactory(client ProviderClient) ClientFactory {
	return func(*domain.ProviderCredential) ProviderClient { return client }
}

func TestNewStoreCredentialProviderRequiresDependencies(t *testing.T) {
	t.Parallel()

	_, err := NewStoreCredentialProvider(nil, staticFactory(nil))
	assert.Error(t, err)

	_, err = NewStoreCredentialProvider(&stubCredentialStore{}, nil)
	assert.Error(t, err)
}

func TestGetClientBuildsClientFromStoredCredential(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	want := &fakeClient{}
	credStore := &stubCredentialStore{
		getFn: func(ctx context.Context, id uuid.UUID) (*domain.ProviderCredential, error) {
			assert.Equal(t, userID, id)
			return &domain.ProviderCredential{
				ID:          uuid.New(),
				UserID:      id,
				AccessToken: "token-1",
				ExpiresAt:   time.Now().UTC().Add(time.Hour),
			}, nil
		},
	}

	provider, err := NewStoreCredentialProvider(credStore, staticFactory(want))
	require.NoError(t, err)

	client, err := provider.GetClient(context.Background(), userID)
	require.NoError(t, err)
	assert.Same(t, want, client)
}

func TestGetClientMissingCredential(t *testing.T) {
	t.Parallel()

	credStore := &stubCredentialStore{
		getFn: func(context.Context, uuid.UUID) (*domain.ProviderCredential, error) {
			return nil, store.ErrCredentialNotFound
		},
	}

	provider, err := NewStoreCredentialProvider(credStore, staticFactory(&fakeClient{}))
	require.NoError(t, err)

	_, err = provider.GetClient(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestGetClientExpiredCredential(t *testing.T) {
	t.Parallel()

	credStore := &stubCredentialStore{
		getFn: func(_ context.Context, id uuid.UUID) (*domain.ProviderCredential, error) {
			return &domain.ProviderCredential{
				ID:          uuid.New(),
				UserID:      id,
				AccessToken: "token-1",
				ExpiresAt:   time.Now().UTC().Add(-time.Minute),
			}, nil
		},
	}

	provider, err := NewStoreCredentialProvider(credStore, staticFactory(&fakeClient{}))
	require.NoError(t, err)

	_, err = provider.GetClient(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestGetClientStoreFailure(t *testing.T) {
	t.Parallel()

	storeErr := errors.New("connection refused")
	credStore := &stubCredentialStore{
		getFn: func(context.Context, uuid.UUID) (*domain.ProviderCredential, error) {
			return nil, storeErr
		},
	}

	provider, err := NewStoreCredentialProvider(credStore, staticFactory(&fakeClient{}))
	require.NoError(t, err)

	_, err = provider.GetClient(context.Background(), uuid.New())
	assert.ErrorIs(t, err, storeErr)
	assert.NotErrorIs(t, err, ErrNoCredential)
}
