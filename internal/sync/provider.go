package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Errors surfaced by provider interactions.
var (
	// ErrNoCredential means the user has no stored provider credential.
	// Retrying cannot fix it, so sync jobs fail terminally on it.
	ErrNoCredential = errors.New("no provider credential for user")

	// ErrTransient wraps provider failures worth retrying (rate limits,
	// timeouts). Use Transient() to wrap and errors.Is to test.
	ErrTransient = errors.New("transient provider error")
)

// Transient marks err as a retryable provider failure.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// EventTime is a provider-side event boundary: all-day events carry a
// date-only value, timed events a full timestamp.
type EventTime struct {
	// DateTime is set for timed events; zero for all-day events.
	DateTime time.Time

	// Date is set for all-day events, formatted 2006-01-02; empty otherwise.
	Date string
}

// IsZero reports whether the boundary is absent entirely.
func (t EventTime) IsZero() bool {
	return t.DateTime.IsZero() && t.Date == ""
}

// Resolve returns the boundary as a timestamp plus whether it was date-only.
func (t EventTime) Resolve() (time.Time, bool, error) {
	if t.Date != "" {
		d, err := time.Parse("2006-01-02", t.Date)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("invalid all-day date %q: %w", t.Date, err)
		}
		return d.UTC(), true, nil
	}
	if !t.DateTime.IsZero() {
		return t.DateTime.UTC(), false, nil
	}
	return time.Time{}, false, nil
}

// ProviderEvent is one event as the provider reports it.
type ProviderEvent struct {
	ID          string
	CalendarID  string
	Title       string
	Description string
	Location    string
	Start       EventTime
	End         EventTime
	Cancelled   bool
	UpdatedAt   time.Time
}

// ListRequest describes one page request against the provider's listing
// endpoint.
type ListRequest struct {
	CalendarID string
	From       time.Time
	To         time.Time
	MaxResults int

	// PageToken is the provider's own next-page token; empty for the first
	// page. It is unrelated to the local pagination codec.
	PageToken string
}

// Page is one page of the provider's event list.
type Page struct {
	Events        []ProviderEvent
	NextPageToken string
}

// ProviderClient is an authenticated client for one user's provider account.
type ProviderClient interface {
	// ListEvents returns one page of events within the requested window.
	ListEvents(ctx context.Context, req ListRequest) (Page, error)

	// CreateEvent creates a single event and returns it with the
	// provider-assigned id filled in.
	CreateEvent(ctx context.Context, calendarID string, event ProviderEvent) (ProviderEvent, error)

	// UpdateEvent updates a single event in place.
	UpdateEvent(ctx context.Context, calendarID string, event ProviderEvent) error

	// DeleteEvent removes a single event.
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}

// CredentialProvider acquires an authenticated client for a user. Token
// storage and refresh are its implementation's concern.
type CredentialProvider interface {
	// GetClient returns a client acting as the given user.
	// Returns ErrNoCredential if the user has no stored credential.
	GetClient(ctx context.Context, userID uuid.UUID) (ProviderClient, error)
}
