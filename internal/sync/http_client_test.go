package sync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calsync-io/calsync-api/internal/domain"
)

func newHTTPTestClient(t *testing.T, handler http.Handler) *HTTPProviderClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	factory := NewHTTPClientFactory(HTTPClientOptions{
		BaseURL:    server.URL,
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
	})
	client := factory(&domain.ProviderCredential{AccessToken: "token-abc"})
	return client.(*HTTPProviderClient)
}

func TestHTTPClientListEvents(t *testing.T) {
	t.Parallel()

	var gotQuery string
	var gotAuth string
	client := newHTTPTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/calendars/primary/events", r.URL.Path)
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")

		_ = json.NewEncoder(w).Encode(wireEventList{
			Events: []wireEvent{
				{
					ID:    "ev-1",
					Title: "Standup",
					Start: wireEventTime{DateTime: "2025-06-01T09:00:00Z"},
					End:   wireEventTime{DateTime: "2025-06-01T09:15:00Z"},
				},
				{
					ID:     "ev-2",
					Title:  "Offsite",
					Start:  wireEventTime{Date: "2025-06-02"},
					End:    wireEventTime{Date: "2025-06-03"},
					Status: "cancelled",
				},
			},
			NextPageToken: "page-2",
		})
	}))

	page, err := client.ListEvents(context.Background(), ListRequest{
		CalendarID: "primary",
		From:       time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		To:         time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		MaxResults: 100,
		PageToken:  "page-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer token-abc", gotAuth)
	assert.Contains(t, gotQuery, "time_min=2025-05-01T00%3A00%3A00Z")
	assert.Contains(t, gotQuery, "max_results=100")
	assert.Contains(t, gotQuery, "page_token=page-1")

	require.Len(t, page.Events, 2)
	assert.Equal(t, "page-2", page.NextPageToken)

	timed := page.Events[0]
	assert.Equal(t, "ev-1", timed.ID)
	assert.Equal(t, "primary", timed.CalendarID)
	assert.Equal(t, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC), timed.Start.DateTime)
	assert.False(t, timed.Cancelled)

	allDay := page.Events[1]
	assert.Equal(t, "2025-06-02", allDay.Start.Date)
	assert.True(t, allDay.Start.DateTime.IsZero())
	assert.True(t, allDay.Cancelled)
}

func TestHTTPClientCreateEventReturnsAssignedID(t *testing.T) {
	t.Parallel()

	client := newHTTPTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/calendars/work/events", r.URL.Path)

		var body wireEvent
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Dentist", body.Title)
		assert.Empty(t, body.ID)

		body.ID = "ev-created"
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(body)
	}))

	created, err := client.CreateEvent(context.Background(), "work", ProviderEvent{
		Title: "Dentist",
		Start: EventTime{DateTime: time.Date(2025, 6, 5, 14, 0, 0, 0, time.UTC)},
		End:   EventTime{DateTime: time.Date(2025, 6, 5, 15, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)
	assert.Equal(t, "ev-created", created.ID)
	assert.Equal(t, "work", created.CalendarID)
}

func TestHTTPClientRetriesThenTransient(t *testing.T) {
	t.Parallel()

	var calls int
	client := newHTTPTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := client.ListEvents(context.Background(), ListRequest{CalendarID: "primary"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransient)
	assert.Equal(t, 3, calls)
}

func TestHTTPClientRecoversAfterRateLimit(t *testing.T) {
	t.Parallel()

	var calls int
	client := newHTTPTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(wireEventList{})
	}))

	page, err := client.ListEvents(context.Background(), ListRequest{CalendarID: "primary"})
	require.NoError(t, err)
	assert.Empty(t, page.Events)
	assert.Equal(t, 2, calls)
}

func TestHTTPClientClientErrorIsNotTransient(t *testing.T) {
	t.Parallel()

	var calls int
	client := newHTTPTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "bad time range"})
	}))

	_, err := client.ListEvents(context.Background(), ListRequest{CalendarID: "primary"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTransient)
	assert.Contains(t, err.Error(), "bad time range")
	assert.Equal(t, 1, calls)
}

func TestHTTPClientDeleteMissingEventSucceeds(t *testing.T) {
	t.Parallel()

	client := newHTTPTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))

	err := client.DeleteEvent(context.Background(), "primary", "ev-gone")
	assert.NoError(t, err)
}
