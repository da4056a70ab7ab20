package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/calsync-io/calsync-api/internal/domain"
	"github.com/calsync-io/calsync-api/internal/platform/logger"
	"github.com/calsync-io/calsync-api/internal/store"
)

// PostgresCredentialStore implements the store.CredentialStore interface
// using PostgreSQL.
type PostgresCredentialStore struct {
	db store.DBTX
}

// NewPostgresCredentialStore creates a new PostgresCredentialStore.
func NewPostgresCredentialStore(db store.DBTX) *PostgresCredentialStore {
	return &PostgresCredentialStore{db: db}
}

var _ store.CredentialStore = (*PostgresCredentialStore)(nil)

// GetByUserID retrieves the credential stored for the user.
func (s *PostgresCredentialStore) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.ProviderCredential, error) {
	query := `
		SELECT id, user_id, access_token, refresh_token, expires_at, created_at, updated_at
		FROM provider_credentials
		WHERE user_id = $1
	`

	var cred domain.ProviderCredential
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&cred.ID,
		&cred.UserID,
		&cred.AccessToken,
		&cred.RefreshToken,
		&cred.ExpiresAt,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("failed to get credential: %w", MapError(err))
	}
	return &cred, nil
}

// Upsert stores the credential, replacing any existing one for the same user.
// Last writer wins on conflict; any stored pair is provider-issued and valid.
func (s *PostgresCredentialStore) Upsert(ctx context.Context, cred *domain.ProviderCredential) error {
	log := logger.FromContext(ctx)

	if err := cred.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO provider_credentials
			(id, user_id, access_token, refresh_token, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE
		SET access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		cred.ID,
		cred.UserID,
		cred.AccessToken,
		cred.RefreshToken,
		cred.ExpiresAt,
		cred.CreatedAt,
		cred.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to upsert credential", "user_id", cred.UserID, "error", err)
		return fmt.Errorf("failed to upsert credential: %w", MapError(err))
	}
	return nil
}

// Delete removes the user's credential.
func (s *PostgresCredentialStore) Delete(ctx context.Context, userID uuid.UUID) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM provider_credentials WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", MapError(err))
	}
	return CheckRowsAffected(result, store.ErrCredentialNotFound)
}

// DeleteExpired removes credentials whose expiry precedes the given time.
func (s *PostgresCredentialStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM provider_credentials WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired credentials: %w", MapError(err))
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return removed, nil
}
