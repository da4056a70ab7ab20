package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/calsync-io/calsync-api/internal/domain"
	"github.com/calsync-io/calsync-api/internal/pagination"
	"github.com/calsync-io/calsync-api/internal/platform/cache"
	"github.com/calsync-io/calsync-api/internal/store"
	"github.com/calsync-io/calsync-api/internal/sync"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200

	listOperation = "events.list"
)

// EventInput carries the caller-editable fields of an event. Used for both
// create and update (full replace).
type EventInput struct {
	Title       string    `json:"title" validate:"required,max=512"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	StartAt     time.Time `json:"start_at" validate:"required"`
	EndAt       time.Time `json:"end_at"`
	AllDay      bool      `json:"all_day"`
}

// ListParams describes one page request over a user's events.
type ListParams struct {
	From   time.Time
	To     time.Time
	Cursor string
	Limit  int
}

// EventPage is one page of events plus the cursor for the next page, empty
// when this page is the last.
type EventPage struct {
	Events     []*domain.CalendarEvent `json:"events"`
	NextCursor string                  `json:"next_cursor,omitempty"`
}

// EventService provides calendar event operations. Mutations are written
// locally first and then propagated to the connected provider best-effort: a
// provider failure is logged, never surfaced, and repaired by the next sync.
type EventService interface {
	GetEvent(ctx context.Context, userID, eventID uuid.UUID) (*domain.CalendarEvent, error)
	CreateEvent(ctx context.Context, userID uuid.UUID, input EventInput) (*domain.CalendarEvent, error)
	UpdateEvent(ctx context.Context, userID, eventID uuid.UUID, input EventInput) (*domain.CalendarEvent, error)
	DeleteEvent(ctx context.Context, userID, eventID uuid.UUID) error
	ListEvents(ctx context.Context, userID uuid.UUID, params ListParams) (*EventPage, error)
}

type eventServiceImpl struct {
	events      store.EventStore
	credentials sync.CredentialProvider
	cache       cache.Cache
	cacheTTL    time.Duration
	calendarID  string
	logger      *slog.Logger
	now         func() time.Time
}

// NewEventService creates an EventService.
func NewEventService(
	events store.EventStore,
	credentials sync.CredentialProvider,
	cacheGateway cache.Cache,
	cacheTTL time.Duration,
	calendarID string,
	logger *slog.Logger,
) (EventService, error) {
	if events == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "events store cannot be nil"}
	}
	if credentials == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "credential provider cannot be nil"}
	}
	if cacheGateway == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "cache cannot be nil"}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if calendarID == "" {
		calendarID = "primary"
	}

	return &eventServiceImpl{
		events:      events,
		credentials: credentials,
		cache:       cacheGateway,
		cacheTTL:    cacheTTL,
		calendarID:  calendarID,
		logger:      logger.With("component", "event_service"),
		now:         time.Now,
	}, nil
}

// GetEvent retrieves one event, enforcing ownership.
func (s *eventServiceImpl) GetEvent(ctx context.Context, userID, eventID uuid.UUID) (*domain.CalendarEvent, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, newServiceError("get_event", "failed to retrieve event", err)
	}
	if event.UserID != userID {
		return nil, ErrNotOwned
	}
	return event, nil
}

// CreateEvent saves a new local event and propagates it to the provider.
func (s *eventServiceImpl) CreateEvent(ctx context.Context, userID uuid.UUID, input EventInput) (*domain.CalendarEvent, error) {
	event, err := domain.NewCalendarEvent(userID, input.Title, input.StartAt, input.EndAt, input.AllDay)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	event.Description = input.Description
	event.Location = input.Location

	if err := s.events.Create(ctx, event); err != nil {
		s.logger.Error("failed to create event",
			"error", err,
			"user_id", userID)
		return nil, newServiceError("create_event", "failed to save event", err)
	}

	s.invalidateListings(ctx, userID)
	s.propagateCreate(ctx, event)
	return event, nil
}

// UpdateEvent replaces an event's editable fields and propagates the change.
func (s *eventServiceImpl) UpdateEvent(ctx context.Context, userID, eventID uuid.UUID, input EventInput) (*domain.CalendarEvent, error) {
	event, err := s.GetEvent(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}

	event.Title = input.Title
	event.Description = input.Description
	event.Location = input.Location
	event.StartAt = input.StartAt
	event.EndAt = input.EndAt
	event.AllDay = input.AllDay
	event.UpdatedAt = s.now().UTC()

	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if err := s.events.Update(ctx, event); err != nil {
		s.logger.Error("failed to update event",
			"error", err,
			"event_id", eventID,
			"user_id", userID)
		return nil, newServiceError("update_event", "failed to save event", err)
	}

	s.invalidateListings(ctx, userID)
	s.propagateUpdate(ctx, event)
	return event, nil
}

// DeleteEvent removes an event locally and from the provider.
func (s *eventServiceImpl) DeleteEvent(ctx context.Context, userID, eventID uuid.UUID) error {
	event, err := s.GetEvent(ctx, userID, eventID)
	if err != nil {
		return err
	}

	if err := s.events.Delete(ctx, eventID); err != nil {
		return newServiceError("delete_event", "failed to delete event", err)
	}

	s.invalidateListings(ctx, userID)
	s.propagateDelete(ctx, event)
	return nil
}

// ListEvents returns one keyset page of the user's events. First pages (no
// cursor) are served from cache when fresh; cursor pages always hit the
// store, since the cache key deliberately excludes the cursor.
func (s *eventServiceImpl) ListEvents(ctx context.Context, userID uuid.UUID, params ListParams) (*EventPage, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	var after *pagination.Cursor
	if params.Cursor != "" {
		after = pagination.Decode(params.Cursor)
		if after == nil {
			return nil, ErrInvalidCursor
		}
	}

	var key string
	if after == nil {
		key = cache.Key(listOperation, userID, map[string]string{
			"from":  formatTimeParam(params.From),
			"to":    formatTimeParam(params.To),
			"limit": strconv.Itoa(limit),
		})
		if raw, ok := s.cache.Get(ctx, key); ok {
			var page EventPage
			if err := json.Unmarshal(raw, &page); err == nil {
				return &page, nil
			}
			// Corrupt entry: treat as a miss, it gets overwritten below.
		}
	}

	// Request one extra row to learn whether a next page exists.
	events, err := s.events.List(ctx, store.ListEventsParams{
		UserID: userID,
		From:   params.From,
		To:     params.To,
		After:  after,
		Limit:  limit + 1,
	})
	if err != nil {
		return nil, newServiceError("list_events", "failed to list events", err)
	}

	page := &EventPage{Events: events}
	if len(events) > limit {
		page.Events = events[:limit]
		last := page.Events[limit-1]
		page.NextCursor = pagination.Encode(pagination.Cursor{
			SortValue: last.StartAt,
			ID:        last.ID,
		})
	}

	if key != "" {
		if raw, err := json.Marshal(page); err == nil {
			s.cache.Set(ctx, key, raw, s.cacheTTL)
		}
	}
	return page, nil
}

// invalidateListings drops the user's cached listing pages after a mutation.
func (s *eventServiceImpl) invalidateListings(ctx context.Context, userID uuid.UUID) {
	s.cache.DeleteByPattern(ctx, cache.OperationPattern(listOperation, userID))
}

// propagateCreate pushes a locally created event to the provider and records
// the provider reference it assigns. Best-effort only.
func (s *eventServiceImpl) propagateCreate(ctx context.Context, event *domain.CalendarEvent) {
	client, ok := s.providerClient(ctx, event.UserID)
	if !ok {
		return
	}

	created, err := client.CreateEvent(ctx, s.calendarID, toProviderEvent(event))
	if err != nil {
		s.logger.Warn("failed to propagate event creation to provider",
			"error", err,
			"event_id", event.ID,
			"user_id", event.UserID)
		return
	}

	event.ProviderEventID = created.ID
	event.ProviderCalendarID = s.calendarID
	event.MarkSynced(s.now().UTC())
	if err := s.events.Update(ctx, event); err != nil {
		s.logger.Warn("failed to record provider reference after creation",
			"error", err,
			"event_id", event.ID)
	}
}

func (s *eventServiceImpl) propagateUpdate(ctx context.Context, event *domain.CalendarEvent) {
	if !event.HasProviderRef() {
		return
	}
	client, ok := s.providerClient(ctx, event.UserID)
	if !ok {
		return
	}

	if err := client.UpdateEvent(ctx, event.ProviderCalendarID, toProviderEvent(event)); err != nil {
		s.logger.Warn("failed to propagate event update to provider",
			"error", err,
			"event_id", event.ID,
			"user_id", event.UserID)
		return
	}

	event.MarkSynced(s.now().UTC())
	if err := s.events.Update(ctx, event); err != nil {
		s.logger.Warn("failed to record sync time after update", "error", err, "event_id", event.ID)
	}
}

func (s *eventServiceImpl) propagateDelete(ctx context.Context, event *domain.CalendarEvent) {
	if !event.HasProviderRef() {
		return
	}
	client, ok := s.providerClient(ctx, event.UserID)
	if !ok {
		return
	}

	if err := client.DeleteEvent(ctx, event.ProviderCalendarID, event.ProviderEventID); err != nil {
		s.logger.Warn("failed to propagate event deletion to provider",
			"error", err,
			"event_id", event.ID,
			"user_id", event.UserID)
	}
}

// providerClient resolves the user's provider client. Users without a stored
// credential simply keep their events local.
func (s *eventServiceImpl) providerClient(ctx context.Context, userID uuid.UUID) (sync.ProviderClient, bool) {
	client, err := s.credentials.GetClient(ctx, userID)
	if err != nil {
		if !errors.Is(err, sync.ErrNoCredential) {
			s.logger.Warn("failed to acquire provider client",
				"error", err,
				"user_id", userID)
		}
		return nil, false
	}
	return client, true
}

// toProviderEvent converts a local event into the provider's representation.
func toProviderEvent(event *domain.CalendarEvent) sync.ProviderEvent {
	pe := sync.ProviderEvent{
		ID:          event.ProviderEventID,
		CalendarID:  event.ProviderCalendarID,
		Title:       event.Title,
		Description: event.Description,
		Location:    event.Location,
		UpdatedAt:   event.UpdatedAt,
	}
	if event.AllDay {
		pe.Start = sync.EventTime{Date: event.StartAt.Format("2006-01-02")}
		pe.End = sync.EventTime{Date: event.EndAt.Format("2006-01-02")}
	} else {
		pe.Start = sync.EventTime{DateTime: event.StartAt}
		pe.End = sync.EventTime{DateTime: event.EndAt}
	}
	return pe
}

func formatTimeParam(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
