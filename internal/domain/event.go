package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for CalendarEvent
var (
	ErrEmptyEventID     = errors.New("event ID cannot be empty")
	ErrEmptyEventUserID = errors.New("event user ID cannot be empty")
	ErrEmptyEventTitle  = errors.New("event title cannot be empty")
	ErrInvalidTimeRange = errors.New("event end cannot precede event start")
)

// DefaultEventDuration is assumed when a source carries a start but no end.
const DefaultEventDuration = time.Hour

// CalendarEvent represents a single entry in a user's calendar. An event may
// carry a reference to its counterpart on the external provider; locally
// created events have no reference until they are propagated outward.
type CalendarEvent struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	StartAt     time.Time `json:"start_at"`
	EndAt       time.Time `json:"end_at"`
	AllDay      bool      `json:"all_day"`

	// Provider reference. At most one local event per user may carry a given
	// (provider_calendar_id, provider_event_id) pair; both fields are empty
	// for events that only exist locally.
	ProviderEventID    string     `json:"provider_event_id,omitempty"`
	ProviderCalendarID string     `json:"provider_calendar_id,omitempty"`
	LastSyncedAt       *time.Time `json:"last_synced_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCalendarEvent creates a locally originated event for the given user.
// It generates a new UUID, applies the default duration when end is zero,
// and sets the creation/update timestamps.
// Returns an error if validation fails.
func NewCalendarEvent(
	userID uuid.UUID,
	title string,
	startAt, endAt time.Time,
	allDay bool,
) (*CalendarEvent, error) {
	if endAt.IsZero() {
		endAt = startAt.Add(DefaultEventDuration)
	}

	now := time.Now().UTC()
	event := &CalendarEvent{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     title,
		StartAt:   startAt,
		EndAt:     endAt,
		AllDay:    allDay,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := event.Validate(); err != nil {
		return nil, err
	}

	return event, nil
}

// Validate checks if the CalendarEvent has valid data.
// Returns an error if any field fails validation.
func (e *CalendarEvent) Validate() error {
	if e.ID == uuid.Nil {
		return ErrEmptyEventID
	}

	if e.UserID == uuid.Nil {
		return ErrEmptyEventUserID
	}

	if e.Title == "" {
		return ErrEmptyEventTitle
	}

	if !e.StartAt.IsZero() && !e.EndAt.IsZero() && e.EndAt.Before(e.StartAt) {
		return ErrInvalidTimeRange
	}

	return nil
}

// HasProviderRef reports whether this event is linked to a provider event.
func (e *CalendarEvent) HasProviderRef() bool {
	return e.ProviderEventID != "" && e.ProviderCalendarID != ""
}

// MarkSynced records a successful reconciliation against the provider.
func (e *CalendarEvent) MarkSynced(at time.Time) {
	t := at.UTC()
	e.LastSyncedAt = &t
	e.UpdatedAt = t
}
