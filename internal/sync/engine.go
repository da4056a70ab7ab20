package sync

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/calsync-io/calsync-api/internal/domain"
	"github.com/calsync-io/calsync-api/internal/job"
	"github.com/calsync-io/calsync-api/internal/platform/cache"
	"github.com/calsync-io/calsync-api/internal/store"
)

// Result aggregates the outcome of one synchronization run. It is transient:
// surfaced as the job result, never persisted on its own.
type Result struct {
	Scanned      int `json:"scanned"`
	Created      int `json:"created"`
	Updated      int `json:"updated"`
	Deleted      int `json:"deleted"`
	Skipped      int `json:"skipped"`
	PagesVisited int `json:"pages_visited"`
}

// Summary renders the result as a human-readable completion message.
func (r *Result) Summary() string {
	return fmt.Sprintf(
		"synchronized %d events across %d pages (%d created, %d updated)",
		r.Scanned, r.PagesVisited, r.Created, r.Updated,
	)
}

// Config holds the engine's tunables.
type Config struct {
	// MonthsBack and MonthsForward define the sync window around now: wide
	// enough to catch edits to recent past events and upcoming ones without
	// paging the entire history.
	MonthsBack    int
	MonthsForward int

	// MaxResults is the page size requested from the provider.
	MaxResults int

	// MaxPages is a defensive ceiling against runaway pagination.
	MaxPages int

	// BatchSize bounds the sub-batches written to local storage.
	BatchSize int

	// CalendarID names the provider calendar to reconcile.
	CalendarID string

	// DeleteCancelled controls whether events cancelled upstream are removed
	// locally. Off by default: the user's local events are never silently
	// deleted.
	DeleteCancelled bool
}

// DefaultConfig returns an engine Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		MonthsBack:      3,
		MonthsForward:   6,
		MaxResults:      100,
		MaxPages:        50,
		BatchSize:       50,
		CalendarID:      "primary",
		DeleteCancelled: false,
	}
}

// Engine reconciles a user's provider events into local storage. Re-running
// a sync is always safe: creation is duplicate-safe and updates are
// idempotent by value, so the engine re-converges to the same state.
type Engine struct {
	credentials CredentialProvider
	events      store.EventStore
	cache       cache.Cache
	config      Config
	logger      *slog.Logger

	// db scopes each storage batch to one transaction. When nil (in-memory
	// stores) batch writes go directly through the store.
	db *sql.DB

	// now is swappable for tests.
	now func() time.Time
}

// NewEngine creates a sync engine.
func NewEngine(
	credentials CredentialProvider,
	events store.EventStore,
	db *sql.DB,
	cacheGateway cache.Cache,
	config Config,
	logger *slog.Logger,
) *Engine {
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if config.MaxPages <= 0 {
		config.MaxPages = 50
	}
	if config.CalendarID == "" {
		config.CalendarID = "primary"
	}

	return &Engine{
		credentials: credentials,
		events:      events,
		db:          db,
		cache:       cacheGateway,
		config:      config,
		logger:      logger.With("component", "sync_engine"),
		now:         time.Now,
	}
}

// Sync runs one inbound reconciliation for the user: pages through the
// provider's listing for the configured window, classifies each remote event
// as new or already known, and performs batched creates/updates locally.
func (e *Engine) Sync(ctx context.Context, userID uuid.UUID) (*Result, error) {
	client, err := e.credentials.GetClient(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire provider client: %w", err)
	}

	now := e.now().UTC()
	from := now.AddDate(0, -e.config.MonthsBack, 0)
	to := now.AddDate(0, e.config.MonthsForward, 0)

	logger := e.logger.With("user_id", userID)
	logger.Info("starting event sync", "from", from, "to", to)

	result := &Result{}
	pageToken := ""

	for result.PagesVisited < e.config.MaxPages {
		page, err := client.ListEvents(ctx, ListRequest{
			CalendarID: e.config.CalendarID,
			From:       from,
			To:         to,
			MaxResults: e.config.MaxResults,
			PageToken:  pageToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list provider events: %w", err)
		}

		result.PagesVisited++

		for _, batch := range chunk(page.Events, e.config.BatchSize) {
			if err := e.reconcileBatch(ctx, userID, batch, result); err != nil {
				return nil, err
			}
		}

		job.ReportProgress(ctx, fmt.Sprintf(
			"page %d: %d events scanned",
			result.PagesVisited, result.Scanned,
		))

		pageToken = page.NextPageToken
		if pageToken == "" {
			break
		}
	}

	if result.PagesVisited >= e.config.MaxPages && pageToken != "" {
		logger.Warn("page ceiling reached before provider list was exhausted",
			"max_pages", e.config.MaxPages)
	}

	// The sync changed data that listing queries may have cached.
	e.cache.DeleteByPattern(ctx, cache.UserPattern(userID))

	logger.Info("event sync finished",
		"scanned", result.Scanned,
		"created", result.Created,
		"updated", result.Updated,
		"skipped", result.Skipped,
		"pages", result.PagesVisited)

	return result, nil
}

// reconcileBatch processes one bounded sub-slice of a page inside a single
// transaction when a database handle is available, so a batch commits or
// rolls back as one unit.
func (e *Engine) reconcileBatch(
	ctx context.Context,
	userID uuid.UUID,
	batch []ProviderEvent,
	result *Result,
) error {
	if e.db == nil {
		return e.reconcile(ctx, e.events, userID, batch, result)
	}

	return store.RunInTransaction(ctx, e.db, func(ctx context.Context, tx *sql.Tx) error {
		return e.reconcile(ctx, e.events.WithTx(tx), userID, batch, result)
	})
}

// reconcile runs one batch against the given store view: one lookup query,
// one batched create, one batched update. A malformed record is skipped and
// logged, never fatal to the batch.
func (e *Engine) reconcile(
	ctx context.Context,
	events store.EventStore,
	userID uuid.UUID,
	batch []ProviderEvent,
	result *Result,
) error {
	logger := e.logger.With("user_id", userID)
	result.Scanned += len(batch)

	incoming := make([]ProviderEvent, 0, len(batch))
	var cancelled []ProviderEvent

	for _, pe := range batch {
		if pe.ID == "" || pe.Title == "" {
			logger.Warn("skipping malformed provider event",
				"provider_event_id", pe.ID)
			result.Skipped++
			continue
		}
		if pe.Cancelled {
			if e.config.DeleteCancelled {
				cancelled = append(cancelled, pe)
			} else {
				result.Skipped++
			}
			continue
		}
		incoming = append(incoming, pe)
	}

	ids := make([]string, 0, len(incoming)+len(cancelled))
	for _, pe := range incoming {
		ids = append(ids, pe.ID)
	}
	for _, pe := range cancelled {
		ids = append(ids, pe.ID)
	}
	if len(ids) == 0 {
		return nil
	}

	existing, err := events.FindByProviderIDs(ctx, userID, e.config.CalendarID, ids)
	if err != nil {
		return fmt.Errorf("failed to look up existing events: %w", err)
	}

	known := make(map[string]*domain.CalendarEvent, len(existing))
	for _, ev := range existing {
		known[ev.ProviderEventID] = ev
	}

	var toCreate []*domain.CalendarEvent
	var toUpdate []*domain.CalendarEvent

	for _, pe := range incoming {
		local, ok := known[pe.ID]
		if !ok {
			converted, err := e.convert(userID, pe)
			if err != nil {
				logger.Warn("skipping unconvertible provider event",
					"provider_event_id", pe.ID,
					"error", err)
				result.Skipped++
				continue
			}
			toCreate = append(toCreate, converted)
			continue
		}

		if err := e.apply(local, pe); err != nil {
			logger.Warn("skipping unconvertible provider event",
				"provider_event_id", pe.ID,
				"error", err)
			result.Skipped++
			continue
		}
		toUpdate = append(toUpdate, local)
	}

	if len(toCreate) > 0 {
		created, err := events.CreateMany(ctx, toCreate)
		if err != nil {
			return fmt.Errorf("failed to create events: %w", err)
		}
		result.Created += int(created)
	}

	if len(toUpdate) > 0 {
		if err := events.UpdateMany(ctx, toUpdate); err != nil {
			return fmt.Errorf("failed to update events: %w", err)
		}
		result.Updated += len(toUpdate)
	}

	for _, pe := range cancelled {
		local, ok := known[pe.ID]
		if !ok {
			continue
		}
		if err := events.Delete(ctx, local.ID); err != nil {
			logger.Warn("failed to delete cancelled event",
				"event_id", local.ID,
				"error", err)
			continue
		}
		result.Deleted++
	}

	return nil
}

// convert builds a local event from a provider event.
func (e *Engine) convert(userID uuid.UUID, pe ProviderEvent) (*domain.CalendarEvent, error) {
	start, end, allDay, err := resolveTimes(pe)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	event := &domain.CalendarEvent{
		ID:                 uuid.New(),
		UserID:             userID,
		Title:              pe.Title,
		Description:        pe.Description,
		Location:           pe.Location,
		StartAt:            start,
		EndAt:              end,
		AllDay:             allDay,
		ProviderEventID:    pe.ID,
		ProviderCalendarID: e.config.CalendarID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	event.MarkSynced(now)

	if err := event.Validate(); err != nil {
		return nil, err
	}
	return event, nil
}

// apply copies the provider's current state onto an existing local event.
func (e *Engine) apply(local *domain.CalendarEvent, pe ProviderEvent) error {
	start, end, allDay, err := resolveTimes(pe)
	if err != nil {
		return err
	}

	local.Title = pe.Title
	local.Description = pe.Description
	local.Location = pe.Location
	local.StartAt = start
	local.EndAt = end
	local.AllDay = allDay
	local.MarkSynced(e.now().UTC())
	return nil
}

// resolveTimes converts provider boundaries: all-day events carry date-only
// values; an event with no explicit end gets the default duration from its
// start.
func resolveTimes(pe ProviderEvent) (time.Time, time.Time, bool, error) {
	start, allDay, err := pe.Start.Resolve()
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	if start.IsZero() {
		return time.Time{}, time.Time{}, false, fmt.Errorf("event %q has no start", pe.ID)
	}

	end, _, err := pe.End.Resolve()
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	if end.IsZero() {
		end = start.Add(domain.DefaultEventDuration)
	}

	return start, end, allDay, nil
}

// chunk splits events into fixed-size sub-batches.
func chunk(events []ProviderEvent, size int) [][]ProviderEvent {
	if len(events) == 0 {
		return nil
	}

	var batches [][]ProviderEvent
	for start := 0; start < len(events); start += size {
		end := start + size
		if end > len(events) {
			end = len(events)
		}
		batches = append(batches, events[start:end])
	}
	return batches
}
