package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/calsync-io/calsync-api/internal/domain"
	"github.com/calsync-io/calsync-api/internal/pagination"
)

// ListEventsParams describes a keyset-paginated listing query over a user's
// events. The cursor, when present, resumes after the (StartAt, ID) position
// it encodes.
type ListEventsParams struct {
	UserID uuid.UUID
	From   time.Time
	To     time.Time
	After  *pagination.Cursor
	Limit  int
}

// EventStore defines the interface for calendar event persistence.
type EventStore interface {
	// GetByID retrieves an event by its unique ID.
	// Returns ErrEventNotFound if the event does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.CalendarEvent, error)

	// Create saves a single event.
	// Returns ErrProviderRefExists if another event already holds the same
	// provider reference for this user.
	Create(ctx context.Context, event *domain.CalendarEvent) error

	// Update modifies an existing event.
	// Returns ErrEventNotFound if the event does not exist.
	Update(ctx context.Context, event *domain.CalendarEvent) error

	// Delete removes an event by its ID.
	// Returns ErrEventNotFound if the event does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// FindByProviderIDs retrieves the user's events whose provider reference
	// matches any of the given provider event IDs within one provider
	// calendar. Used by the sync engine for batch lookups; IDs with no local
	// match are simply absent from the result.
	FindByProviderIDs(
		ctx context.Context,
		userID uuid.UUID,
		providerCalendarID string,
		providerEventIDs []string,
	) ([]*domain.CalendarEvent, error)

	// CreateMany saves a batch of events and returns the number actually
	// created. Events whose provider reference already exists are skipped,
	// not failed, so a concurrent duplicate insert never aborts the batch.
	CreateMany(ctx context.Context, events []*domain.CalendarEvent) (int64, error)

	// UpdateMany applies a batch of updates. Missing rows are skipped.
	UpdateMany(ctx context.Context, events []*domain.CalendarEvent) error

	// List returns one page of the user's events ordered by (start_at, id)
	// ascending. Callers request limit+1 rows to detect a following page.
	List(ctx context.Context, params ListEventsParams) ([]*domain.CalendarEvent, error)

	// CountByUser returns the total number of events stored for the user.
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)

	// WithTx returns a new EventStore instance that uses the provided
	// transaction. The transaction is created and managed by the caller.
	WithTx(tx *sql.Tx) EventStore
}
