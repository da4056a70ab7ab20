package service

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/calsync-io/calsync-api/internal/domain"
	"github.com/calsync-io/calsync-api/internal/store"
	"github.com/calsync-io/calsync-api/internal/sync"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockEventStore implements store.EventStore with overridable functions.
type mockEventStore struct {
	getByIDFn           func(ctx context.Context, id uuid.UUID) (*domain.CalendarEvent, error)
	createFn            func(ctx context.Context, event *domain.CalendarEvent) error
	updateFn            func(ctx context.Context, event *domain.CalendarEvent) error
	deleteFn            func(ctx context.Context, id uuid.UUID) error
	findByProviderIDsFn func(ctx context.Context, userID uuid.UUID, calID string, ids []string) ([]*domain.CalendarEvent, error)
	createManyFn        func(ctx context.Context, events []*domain.CalendarEvent) (int64, error)
	updateManyFn        func(ctx context.Context, events []*domain.CalendarEvent) error
	listFn              func(ctx context.Context, params store.ListEventsParams) ([]*domain.CalendarEvent, error)
	countByUserFn       func(ctx context.Context, userID uuid.UUID) (int64, error)
}

func (m *mockEventStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.CalendarEvent, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrEventNotFound
}

func (m *mockEventStore) Create(ctx context.Context, event *domain.CalendarEvent) error {
	if m.createFn != nil {
		return m.createFn(ctx, event)
	}
	return nil
}

func (m *mockEventStore) Update(ctx context.Context, event *domain.CalendarEvent) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, event)
	}
	return nil
}

func (m *mockEventStore) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockEventStore) FindByProviderIDs(ctx context.Context, userID uuid.UUID, calID string, ids []string) ([]*domain.CalendarEvent, error) {
	if m.findByProviderIDsFn != nil {
		return m.findByProviderIDsFn(ctx, userID, calID, ids)
	}
	return nil, nil
}

func (m *mockEventStore) CreateMany(ctx context.Context, events []*domain.CalendarEvent) (int64, error) {
	if m.createManyFn != nil {
		return m.createManyFn(ctx, events)
	}
	return int64(len(events)), nil
}

func (m *mockEventStore) UpdateMany(ctx context.Context, events []*domain.CalendarEvent) error {
	if m.updateManyFn != nil {
		return m.updateManyFn(ctx, events)
	}
	return nil
}

func (m *mockEventStore) List(ctx context.Context, params store.ListEventsParams) ([]*domain.CalendarEvent, error) {
	if m.listFn != nil {
		return m.listFn(ctx, params)
	}
	return nil, nil
}

func (m *mockEventStore) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	if m.countByUserFn != nil {
		return m.countByUserFn(ctx, userID)
	}
	return 0, nil
}

func (m *mockEventStore) WithTx(*sql.Tx) store.EventStore { return m }

var _ store.EventStore = (*mockEventStore)(nil)

// mockCredentialStore implements store.CredentialStore.
type mockCredentialStore struct {
	getByUserIDFn   func(ctx context.Context, userID uuid.UUID) (*domain.ProviderCredential, error)
	upsertFn        func(ctx context.Context, cred *domain.ProviderCredential) error
	deleteFn        func(ctx context.Context, userID uuid.UUID) error
	deleteExpiredFn func(ctx context.Context, before time.Time) (int64, error)
}

func (m *mockCredentialStore) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.ProviderCredential, error) {
	if m.getByUserIDFn != nil {
		return m.getByUserIDFn(ctx, userID)
	}
	return nil, store.ErrCredentialNotFound
}

func (m *mockCredentialStore) Upsert(ctx context.Context, cred *domain.ProviderCredential) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, cred)
	}
	return nil
}

func (m *mockCredentialStore) Delete(ctx context.Context, userID uuid.UUID) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID)
	}
	return nil
}

func (m *mockCredentialStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	if m.deleteExpiredFn != nil {
		return m.deleteExpiredFn(ctx, before)
	}
	return 0, nil
}

var _ store.CredentialStore = (*mockCredentialStore)(nil)

// mockProviderClient implements sync.ProviderClient.
type mockProviderClient struct {
	listEventsFn  func(ctx context.Context, req sync.ListRequest) (sync.Page, error)
	createEventFn func(ctx context.Context, calID string, ev sync.ProviderEvent) (sync.ProviderEvent, error)
	updateEventFn func(ctx context.Context, calID string, ev sync.ProviderEvent) error
	deleteEventFn func(ctx context.Context, calID, eventID string) error
}

func (m *mockProviderClient) ListEvents(ctx context.Context, req sync.ListRequest) (sync.Page, error) {
	if m.listEventsFn != nil {
		return m.listEventsFn(ctx, req)
	}
	return sync.Page{}, nil
}

func (m *mockProviderClient) CreateEvent(ctx context.Context, calID string, ev sync.ProviderEvent) (sync.ProviderEvent, error) {
	if m.createEventFn != nil {
		return m.createEventFn(ctx, calID, ev)
	}
	ev.ID = "provider-" + uuid.NewString()
	return ev, nil
}

func (m *mockProviderClient) UpdateEvent(ctx context.Context, calID string, ev sync.ProviderEvent) error {
	if m.updateEventFn != nil {
		return m.updateEventFn(ctx, calID, ev)
	}
	return nil
}

func (m *mockProviderClient) DeleteEvent(ctx context.Context, calID, eventID string) error {
	if m.deleteEventFn != nil {
		return m.deleteEventFn(ctx, calID, eventID)
	}
	return nil
}

var _ sync.ProviderClient = (*mockProviderClient)(nil)

// mockCredentialProvider implements sync.CredentialProvider.
type mockCredentialProvider struct {
	client sync.ProviderClient
	err    error
}

func (m *mockCredentialProvider) GetClient(context.Context, uuid.UUID) (sync.ProviderClient, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.client == nil {
		return nil, sync.ErrNoCredential
	}
	return m.client, nil
}

var _ sync.CredentialProvider = (*mockCredentialProvider)(nil)
