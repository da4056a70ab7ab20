package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/calsync-io/calsync-api/internal/domain"
	"github.com/calsync-io/calsync-api/internal/events"
	"github.com/calsync-io/calsync-api/internal/job"
	"github.com/calsync-io/calsync-api/internal/store"
	"github.com/calsync-io/calsync-api/internal/sync"
)

// syncRunner is the slice of the sync engine the handler needs.
type syncRunner interface {
	Sync(ctx context.Context, userID uuid.UUID) (*sync.Result, error)
}

// SyncEventsPayload is the payload of a sync-events job.
type SyncEventsPayload struct {
	UserID uuid.UUID `json:"user_id"`
}

// ConnectProviderPayload is the payload of a connect-provider job. It carries
// the provider-issued token pair to store for the user.
type ConnectProviderPayload struct {
	UserID       uuid.UUID `json:"user_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// CleanupExpiredTokensPayload is the payload of a cleanup-expired-tokens job.
// UserID identifies who requested the run, not whose credentials are removed.
// Before overrides the expiry cutoff; when absent the handler uses now.
type CleanupExpiredTokensPayload struct {
	UserID uuid.UUID  `json:"user_id"`
	Before *time.Time `json:"before,omitempty"`
}

// NewSyncEventsHandler builds the handler for sync-events jobs: one full
// inbound reconciliation for the payload's user. Re-running is idempotent, so
// at-least-once execution is safe.
func NewSyncEventsHandler(engine syncRunner, logger *slog.Logger) job.Handler {
	log := logger.With("component", "sync_events_handler")

	return func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
		var p SyncEventsPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, job.Terminal(fmt.Errorf("invalid sync payload: %w", err))
		}

		result, err := engine.Sync(ctx, p.UserID)
		if err != nil {
			// A user with no stored credential cannot be synced no matter how
			// often we retry.
			if errors.Is(err, sync.ErrNoCredential) {
				return nil, job.Terminal(err)
			}
			return nil, err
		}

		log.Info("sync job finished", "user_id", p.UserID, "summary", result.Summary())
		return marshalResult(result.Summary(), result)
	}
}

// NewConnectProviderHandler builds the handler for connect-provider jobs:
// store the token pair, then request an initial sync for the user. Upsert
// semantics make re-running harmless.
func NewConnectProviderHandler(
	credentials store.CredentialStore,
	emitter events.EventEmitter,
	logger *slog.Logger,
) job.Handler {
	log := logger.With("component", "connect_provider_handler")

	return func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
		var p ConnectProviderPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, job.Terminal(fmt.Errorf("invalid connect payload: %w", err))
		}

		cred, err := domain.NewProviderCredential(p.UserID, p.AccessToken, p.RefreshToken, p.ExpiresAt)
		if err != nil {
			return nil, job.Terminal(fmt.Errorf("invalid credential: %w", err))
		}

		if err := credentials.Upsert(ctx, cred); err != nil {
			return nil, fmt.Errorf("failed to store credential: %w", err)
		}

		log.Info("provider credential stored", "user_id", p.UserID)

		// Kick off the first sync. Failure to enqueue is not fatal to the
		// connection itself: the next scheduled sync covers it.
		event, err := events.NewJobRequestEvent(job.TypeSyncEvents, SyncEventsPayload{UserID: p.UserID})
		if err == nil {
			err = emitter.EmitEvent(ctx, event)
		}
		if err != nil {
			log.Warn("failed to request initial sync after connect",
				"error", err,
				"user_id", p.UserID)
		}

		return marshalResult("provider connected", map[string]any{
			"initial_sync_requested": err == nil,
		})
	}
}

// NewCleanupExpiredTokensHandler builds the handler for
// cleanup-expired-tokens jobs: remove every credential past its expiry.
func NewCleanupExpiredTokensHandler(credentials store.CredentialStore, logger *slog.Logger) job.Handler {
	log := logger.With("component", "cleanup_expired_tokens_handler")

	return func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
		var p CleanupExpiredTokensPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, job.Terminal(fmt.Errorf("invalid cleanup payload: %w", err))
		}

		before := time.Now().UTC()
		if p.Before != nil {
			before = p.Before.UTC()
		}

		removed, err := credentials.DeleteExpired(ctx, before)
		if err != nil {
			return nil, fmt.Errorf("failed to delete expired credentials: %w", err)
		}

		log.Info("expired credentials removed", "count", removed)
		return marshalResult(
			fmt.Sprintf("removed %d expired credentials", removed),
			map[string]any{"removed": removed},
		)
	}
}

// marshalResult wraps a handler outcome with the human-readable summary the
// notification bridge renders.
func marshalResult(summary string, detail any) (json.RawMessage, error) {
	raw, err := json.Marshal(detail)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job result: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to shape job result: %w", err)
	}
	summaryRaw, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job summary: %w", err)
	}
	fields["summary"] = summaryRaw

	return json.Marshal(fields)
}
