package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calsync-io/calsync-api/internal/domain"
)

func TestNewCalendarEvent(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	start := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)

	event, err := domain.NewCalendarEvent(userID, "Standup", start, end, false)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, userID, event.UserID)
	assert.Equal(t, "Standup", event.Title)
	assert.Equal(t, start, event.StartAt)
	assert.Equal(t, end, event.EndAt)
	assert.False(t, event.AllDay)
	assert.False(t, event.CreatedAt.IsZero())
	assert.Equal(t, event.CreatedAt, event.UpdatedAt)
}

func TestNewCalendarEventAppliesDefaultDuration(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	event, err := domain.NewCalendarEvent(uuid.New(), "Open ended", start, time.Time{}, false)
	require.NoError(t, err)

	assert.Equal(t, start.Add(domain.DefaultEventDuration), event.EndAt)
}

func TestNewCalendarEventValidation(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	_, err := domain.NewCalendarEvent(uuid.Nil, "Title", start, start.Add(time.Hour), false)
	assert.ErrorIs(t, err, domain.ErrEmptyEventUserID)

	_, err = domain.NewCalendarEvent(uuid.New(), "", start, start.Add(time.Hour), false)
	assert.ErrorIs(t, err, domain.ErrEmptyEventTitle)

	_, err = domain.NewCalendarEvent(uuid.New(), "Backwards", start, start.Add(-time.Hour), false)
	assert.ErrorIs(t, err, domain.ErrInvalidTimeRange)
}

func TestHasProviderRef(t *testing.T) {
	t.Parallel()

	event, err := domain.NewCalendarEvent(uuid.New(), "Local", time.Now().UTC(), time.Time{}, false)
	require.NoError(t, err)
	assert.False(t, event.HasProviderRef())

	event.ProviderEventID = "ev-1"
	assert.False(t, event.HasProviderRef(), "both reference fields are required")

	event.ProviderCalendarID = "primary"
	assert.True(t, event.HasProviderRef())
}

func TestMarkSynced(t *testing.T) {
	t.Parallel()

	event, err := domain.NewCalendarEvent(uuid.New(), "Synced", time.Now().UTC(), time.Time{}, false)
	require.NoError(t, err)
	require.Nil(t, event.LastSyncedAt)

	at := time.Date(2025, 6, 10, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	event.MarkSynced(at)

	require.NotNil(t, event.LastSyncedAt)
	assert.Equal(t, at.UTC(), *event.LastSyncedAt)
	assert.Equal(t, at.UTC(), event.UpdatedAt)
}
