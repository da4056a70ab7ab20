package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/calsync-io/calsync-api/internal/domain"
	"github.com/calsync-io/calsync-api/internal/platform/logger"
	"github.com/calsync-io/calsync-api/internal/store"
)

// PostgresEventStore implements the store.EventStore interface using PostgreSQL.
type PostgresEventStore struct {
	db store.DBTX
}

// NewPostgresEventStore creates a new PostgresEventStore.
func NewPostgresEventStore(db store.DBTX) *PostgresEventStore {
	return &PostgresEventStore{db: db}
}

// Compile-time check.
var _ store.EventStore = (*PostgresEventStore)(nil)

const eventColumns = `id, user_id, title, description, location, start_at, end_at, all_day,
	provider_event_id, provider_calendar_id, last_synced_at, created_at, updated_at`

// GetByID retrieves an event by its unique ID.
func (s *PostgresEventStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.CalendarEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	event, err := scanEvent(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", MapError(err))
	}
	return event, nil
}

// Create saves a single event.
func (s *PostgresEventStore) Create(ctx context.Context, event *domain.CalendarEvent) error {
	log := logger.FromContext(ctx)

	if err := event.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO events
			(id, user_id, title, description, location, start_at, end_at, all_day,
			 provider_event_id, provider_calendar_id, last_synced_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.UserID,
		event.Title,
		event.Description,
		event.Location,
		event.StartAt,
		event.EndAt,
		event.AllDay,
		event.ProviderEventID,
		event.ProviderCalendarID,
		nullTime(event.LastSyncedAt),
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return store.ErrProviderRefExists
		}
		log.Error("failed to create event", "event_id", event.ID, "error", err)
		return fmt.Errorf("failed to create event: %w", MapError(err))
	}
	return nil
}

// Update modifies an existing event.
func (s *PostgresEventStore) Update(ctx context.Context, event *domain.CalendarEvent) error {
	log := logger.FromContext(ctx)

	if err := event.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		UPDATE events
		SET title = $1, description = $2, location = $3, start_at = $4, end_at = $5,
			all_day = $6, last_synced_at = $7, updated_at = $8
		WHERE id = $9
	`

	result, err := s.db.ExecContext(ctx, query,
		event.Title,
		event.Description,
		event.Location,
		event.StartAt,
		event.EndAt,
		event.AllDay,
		nullTime(event.LastSyncedAt),
		event.UpdatedAt,
		event.ID,
	)
	if err != nil {
		log.Error("failed to update event", "event_id", event.ID, "error", err)
		return fmt.Errorf("failed to update event: %w", MapError(err))
	}
	return CheckRowsAffected(result, store.ErrEventNotFound)
}

// Delete removes an event by its ID.
func (s *PostgresEventStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", MapError(err))
	}
	return CheckRowsAffected(result, store.ErrEventNotFound)
}

// FindByProviderIDs retrieves the user's events matching any of the given
// provider event IDs within one provider calendar. One query regardless of
// batch size.
func (s *PostgresEventStore) FindByProviderIDs(
	ctx context.Context,
	userID uuid.UUID,
	providerCalendarID string,
	providerEventIDs []string,
) ([]*domain.CalendarEvent, error) {
	if len(providerEventIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE user_id = $1 AND provider_calendar_id = $2 AND provider_event_id = ANY($3)
	`

	rows, err := s.db.QueryContext(ctx, query, userID, providerCalendarID, providerEventIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query events by provider ids: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	return collectEvents(rows)
}

// CreateMany saves a batch of events in one statement and returns the number
// actually inserted. ON CONFLICT DO NOTHING makes a concurrent duplicate
// insert a skip instead of a batch failure.
func (s *PostgresEventStore) CreateMany(ctx context.Context, events []*domain.CalendarEvent) (int64, error) {
	if len(events) == 0 {
		return 0, nil
	}

	const fieldsPerRow = 13
	placeholders := make([]string, 0, len(events))
	args := make([]any, 0, len(events)*fieldsPerRow)

	for i, event := range events {
		if err := event.Validate(); err != nil {
			return 0, fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
		}

		base := i * fieldsPerRow
		marks := make([]string, fieldsPerRow)
		for j := range marks {
			marks[j] = fmt.Sprintf("$%d", base+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(marks, ", ")+")")

		args = append(args,
			event.ID,
			event.UserID,
			event.Title,
			event.Description,
			event.Location,
			event.StartAt,
			event.EndAt,
			event.AllDay,
			event.ProviderEventID,
			event.ProviderCalendarID,
			nullTime(event.LastSyncedAt),
			event.CreatedAt,
			event.UpdatedAt,
		)
	}

	query := `
		INSERT INTO events
			(id, user_id, title, description, location, start_at, end_at, all_day,
			 provider_event_id, provider_calendar_id, last_synced_at, created_at, updated_at)
		VALUES ` + strings.Join(placeholders, ", ") + `
		ON CONFLICT DO NOTHING
	`

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to create events: %w", MapError(err))
	}

	created, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return created, nil
}

// UpdateMany applies a batch of updates. Rows that no longer exist are
// skipped, matching the duplicate-safe semantics of CreateMany.
func (s *PostgresEventStore) UpdateMany(ctx context.Context, events []*domain.CalendarEvent) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE events
		SET title = $1, description = $2, location = $3, start_at = $4, end_at = $5,
			all_day = $6, last_synced_at = $7, updated_at = $8
		WHERE id = $9
	`

	for _, event := range events {
		if err := event.Validate(); err != nil {
			return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
		}

		_, err := s.db.ExecContext(ctx, query,
			event.Title,
			event.Description,
			event.Location,
			event.StartAt,
			event.EndAt,
			event.AllDay,
			nullTime(event.LastSyncedAt),
			event.UpdatedAt,
			event.ID,
		)
		if err != nil {
			log.Error("failed to update event in batch", "event_id", event.ID, "error", err)
			return fmt.Errorf("failed to update event %s: %w", event.ID, MapError(err))
		}
	}
	return nil
}

// List returns one page of the user's events ordered by (start_at, id)
// ascending, resuming after the cursor position when one is given.
func (s *PostgresEventStore) List(ctx context.Context, params store.ListEventsParams) ([]*domain.CalendarEvent, error) {
	var conditions []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conditions = append(conditions, "user_id = "+arg(params.UserID))
	if !params.From.IsZero() {
		conditions = append(conditions, "start_at >= "+arg(params.From))
	}
	if !params.To.IsZero() {
		conditions = append(conditions, "start_at < "+arg(params.To))
	}
	if params.After != nil {
		// Keyset predicate: strictly after the cursor's (start_at, id) pair.
		conditions = append(conditions, fmt.Sprintf("(start_at, id) > (%s, %s)",
			arg(params.After.SortValue), arg(params.After.ID)))
	}

	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY start_at ASC, id ASC
		LIMIT ` + arg(params.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	return collectEvents(rows)
}

// CountByUser returns the total number of events stored for the user.
func (s *PostgresEventStore) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", MapError(err))
	}
	return count, nil
}

// WithTx returns a new store instance bound to the given transaction.
func (s *PostgresEventStore) WithTx(tx *sql.Tx) store.EventStore {
	return &PostgresEventStore{db: tx}
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*domain.CalendarEvent, error) {
	var event domain.CalendarEvent
	var lastSyncedAt sql.NullTime

	err := row.Scan(
		&event.ID,
		&event.UserID,
		&event.Title,
		&event.Description,
		&event.Location,
		&event.StartAt,
		&event.EndAt,
		&event.AllDay,
		&event.ProviderEventID,
		&event.ProviderCalendarID,
		&lastSyncedAt,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastSyncedAt.Valid {
		event.LastSyncedAt = &lastSyncedAt.Time
	}
	return &event, nil
}

func collectEvents(rows *sql.Rows) ([]*domain.CalendarEvent, error) {
	var events []*domain.CalendarEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}
	return events, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
