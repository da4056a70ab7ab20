package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/calsync-io/calsync-api/internal/domain"
)

// HTTPClientOptions configures the HTTP-backed provider client.
type HTTPClientOptions struct {
	// BaseURL is the provider API root, without a trailing slash.
	BaseURL string

	// HTTPClient overrides the underlying transport; a 20s-timeout default
	// is used when nil.
	HTTPClient *http.Client

	UserAgent  string
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// NewHTTPClientFactory returns a ClientFactory producing HTTPProviderClients
// that authenticate with the credential's access token.
func NewHTTPClientFactory(opts HTTPClientOptions) ClientFactory {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}

	return func(cred *domain.ProviderCredential) ProviderClient {
		return &HTTPProviderClient{
			baseURL:     baseURL,
			accessToken: cred.AccessToken,
			httpClient:  httpClient,
			userAgent:   strings.TrimSpace(opts.UserAgent),
			maxRetries:  maxRetries,
			baseDelay:   baseDelay,
			maxDelay:    maxDelay,
		}
	}
}

// HTTPProviderClient talks to the calendar provider's REST API on behalf of
// one user. Rate limits and server errors are retried with exponential
// backoff and surface as ErrTransient once retries are exhausted.
type HTTPProviderClient struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	userAgent   string
	maxRetries  int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

type wireEventTime struct {
	DateTime string `json:"date_time,omitempty"`
	Date     string `json:"date,omitempty"`
}

type wireEvent struct {
	ID          string        `json:"id,omitempty"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Location    string        `json:"location,omitempty"`
	Start       wireEventTime `json:"start"`
	End         wireEventTime `json:"end"`
	Status      string        `json:"status,omitempty"`
	UpdatedAt   time.Time     `json:"updated_at,omitempty"`
}

type wireEventList struct {
	Events        []wireEvent `json:"events"`
	NextPageToken string      `json:"next_page_token,omitempty"`
}

const statusCancelled = "cancelled"

// ListEvents fetches one page of events within the requested window.
func (c *HTTPProviderClient) ListEvents(ctx context.Context, req ListRequest) (Page, error) {
	query := url.Values{}
	if !req.From.IsZero() {
		query.Set("time_min", req.From.UTC().Format(time.RFC3339))
	}
	if !req.To.IsZero() {
		query.Set("time_max", req.To.UTC().Format(time.RFC3339))
	}
	if req.MaxResults > 0 {
		query.Set("max_results", strconv.Itoa(req.MaxResults))
	}
	if req.PageToken != "" {
		query.Set("page_token", req.PageToken)
	}

	path := fmt.Sprintf("/calendars/%s/events", url.PathEscape(req.CalendarID))
	body, err := c.do(ctx, http.MethodGet, path+"?"+query.Encode(), nil)
	if err != nil {
		return Page{}, err
	}

	var list wireEventList
	if err := json.Unmarshal(body, &list); err != nil {
		return Page{}, fmt.Errorf("failed to decode event list: %w", err)
	}

	page := Page{
		Events:        make([]ProviderEvent, 0, len(list.Events)),
		NextPageToken: list.NextPageToken,
	}
	for _, we := range list.Events {
		page.Events = append(page.Events, fromWireEvent(req.CalendarID, we))
	}
	return page, nil
}

// CreateEvent creates a single event and returns it with the provider's id.
func (c *HTTPProviderClient) CreateEvent(ctx context.Context, calendarID string, event ProviderEvent) (ProviderEvent, error) {
	path := fmt.Sprintf("/calendars/%s/events", url.PathEscape(calendarID))
	body, err := c.do(ctx, http.MethodPost, path, toWireEvent(event))
	if err != nil {
		return ProviderEvent{}, err
	}

	var created wireEvent
	if err := json.Unmarshal(body, &created); err != nil {
		return ProviderEvent{}, fmt.Errorf("failed to decode created event: %w", err)
	}
	return fromWireEvent(calendarID, created), nil
}

// UpdateEvent replaces a single event in place.
func (c *HTTPProviderClient) UpdateEvent(ctx context.Context, calendarID string, event ProviderEvent) error {
	if event.ID == "" {
		return fmt.Errorf("event id is required for update")
	}
	path := fmt.Sprintf("/calendars/%s/events/%s", url.PathEscape(calendarID), url.PathEscape(event.ID))
	_, err := c.do(ctx, http.MethodPut, path, toWireEvent(event))
	return err
}

// DeleteEvent removes a single event. Deleting an event the provider no
// longer has succeeds, so deletes stay idempotent.
func (c *HTTPProviderClient) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	path := fmt.Sprintf("/calendars/%s/events/%s", url.PathEscape(calendarID), url.PathEscape(eventID))
	_, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		var apiErr *providerAPIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusNotFound || apiErr.StatusCode == http.StatusGone) {
			return nil
		}
		return err
	}
	return nil
}

// providerAPIError is a non-retryable provider response.
type providerAPIError struct {
	StatusCode int
	Message    string
}

func (e *providerAPIError) Error() string {
	return fmt.Sprintf("provider request failed: status=%d message=%s", e.StatusCode, e.Message)
}

func (c *HTTPProviderClient) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var bodyBytes []byte
	if payload != nil {
		var err error
		bodyBytes, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	requestURL := c.baseURL + path
	var lastErr error
	for attempt := 0; ; attempt++ {
		var reader io.Reader
		if bodyBytes != nil {
			reader = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, requestURL, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
		if bodyBytes != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if attempt < c.maxRetries {
				if waitErr := c.sleep(ctx, attempt+1, ""); waitErr != nil {
					return nil, waitErr
				}
				continue
			}
			return nil, Transient(lastErr)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("failed to read response body: %w", readErr)
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			return respBody, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = &providerAPIError{StatusCode: resp.StatusCode, Message: responseMessage(respBody)}
			if attempt < c.maxRetries {
				if waitErr := c.sleep(ctx, attempt+1, resp.Header.Get("Retry-After")); waitErr != nil {
					return nil, waitErr
				}
				continue
			}
			return nil, Transient(lastErr)
		}

		return nil, &providerAPIError{StatusCode: resp.StatusCode, Message: responseMessage(respBody)}
	}
}

func (c *HTTPProviderClient) sleep(ctx context.Context, attempt int, retryAfterHeader string) error {
	delay := c.retryDelay(attempt, retryAfterHeader)
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *HTTPProviderClient) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	if retryAfter := parseRetryAfterSeconds(retryAfterHeader); retryAfter > 0 {
		if retryAfter > c.maxDelay {
			return c.maxDelay
		}
		return retryAfter
	}
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			return c.maxDelay
		}
	}
	if delay > c.maxDelay {
		return c.maxDelay
	}
	return delay
}

func parseRetryAfterSeconds(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func responseMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		if msg := strings.TrimSpace(parsed.Message); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(parsed.Error); msg != "" {
			return msg
		}
	}
	return strings.TrimSpace(string(body))
}

func toWireEvent(event ProviderEvent) wireEvent {
	we := wireEvent{
		ID:          event.ID,
		Title:       event.Title,
		Description: event.Description,
		Location:    event.Location,
		Start:       toWireEventTime(event.Start),
		End:         toWireEventTime(event.End),
	}
	if event.Cancelled {
		we.Status = statusCancelled
	}
	return we
}

func toWireEventTime(t EventTime) wireEventTime {
	if t.Date != "" {
		return wireEventTime{Date: t.Date}
	}
	if !t.DateTime.IsZero() {
		return wireEventTime{DateTime: t.DateTime.UTC().Format(time.RFC3339)}
	}
	return wireEventTime{}
}

func fromWireEvent(calendarID string, we wireEvent) ProviderEvent {
	return ProviderEvent{
		ID:          we.ID,
		CalendarID:  calendarID,
		Title:       we.Title,
		Description: we.Description,
		Location:    we.Location,
		Start:       fromWireEventTime(we.Start),
		End:         fromWireEventTime(we.End),
		Cancelled:   we.Status == statusCancelled,
		UpdatedAt:   we.UpdatedAt,
	}
}

func fromWireEventTime(t wireEventTime) EventTime {
	if t.Date != "" {
		return EventTime{Date: t.Date}
	}
	if t.DateTime == "" {
		return EventTime{}
	}
	parsed, err := time.Parse(time.RFC3339, t.DateTime)
	if err != nil {
		return EventTime{}
	}
	return EventTime{DateTime: parsed}
}
