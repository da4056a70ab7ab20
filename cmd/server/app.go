package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/calsync-io/calsync-api/internal/config"
	"github.com/calsync-io/calsync-api/internal/events"
	"github.com/calsync-io/calsync-api/internal/job"
	"github.com/calsync-io/calsync-api/internal/notify"
	"github.com/calsync-io/calsync-api/internal/platform/cache"
	"github.com/calsync-io/calsync-api/internal/platform/postgres"
	"github.com/calsync-io/calsync-api/internal/service"
	"github.com/calsync-io/calsync-api/internal/service/auth"
	"github.com/calsync-io/calsync-api/internal/store"
	syncsvc "github.com/calsync-io/calsync-api/internal/sync"
)

// application holds the wired dependency graph.
type application struct {
	config *config.Config
	logger *slog.Logger

	db              *sql.DB
	eventStore      store.EventStore
	credentialStore store.CredentialStore

	jwtService   auth.JWTService
	eventService service.EventService
	manager      *job.Manager
	hub          *notify.Hub
}

// notifierFor selects where queue hooks publish: the websocket hub, or a
// discarding notifier when live notifications are switched off. The hub keeps
// accepting subscriptions either way.
func notifierFor(cfg config.NotifyConfig, hub *notify.Hub) notify.Notifier {
	if !cfg.Enabled {
		return notify.NopNotifier{}
	}
	return hub
}

// newApplication wires every component from configuration. Nothing is
// started yet; Run owns the lifecycle.
func newApplication(cfg *config.Config, logger *slog.Logger) (*application, error) {
	db, err := setupDatabase(cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(db, logger); err != nil {
		return nil, err
	}

	eventStore := postgres.NewPostgresEventStore(db)
	credentialStore := postgres.NewPostgresCredentialStore(db)
	jobStore := postgres.NewPostgresJobStore(db)

	memoryCache := cache.NewMemoryCache(logger)
	cacheTTL := time.Duration(cfg.Cache.TTLSeconds) * time.Second

	clientFactory := syncsvc.NewHTTPClientFactory(syncsvc.HTTPClientOptions{
		BaseURL:    cfg.Provider.BaseURL,
		HTTPClient: &http.Client{Timeout: time.Duration(cfg.Provider.TimeoutSeconds) * time.Second},
		MaxRetries: cfg.Provider.MaxRetries,
	})
	credentialProvider, err := syncsvc.NewStoreCredentialProvider(credentialStore, clientFactory)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential provider: %w", err)
	}

	engine := syncsvc.NewEngine(credentialProvider, eventStore, db, memoryCache, syncsvc.Config{
		MonthsBack:      cfg.Sync.MonthsBack,
		MonthsForward:   cfg.Sync.MonthsForward,
		MaxResults:      cfg.Sync.MaxResults,
		MaxPages:        cfg.Sync.MaxPages,
		BatchSize:       cfg.Sync.BatchSize,
		CalendarID:      cfg.Provider.CalendarID,
		DeleteCancelled: cfg.Sync.DeleteCancelled,
	}, logger)

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}

	eventService, err := service.NewEventService(
		eventStore,
		credentialProvider,
		memoryCache,
		cacheTTL,
		cfg.Provider.CalendarID,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create event service: %w", err)
	}

	hub := notify.NewHub(logger)
	hooks := notify.QueueHooks(notifierFor(cfg.Notify, hub), logger)

	emitter := events.NewInMemoryEventEmitter(logger)
	manager := job.NewManager(logger)

	queueConfig := queueConfigFrom(cfg.Queue)
	handlers := map[job.Type]job.Handler{
		job.TypeSyncEvents:           service.NewSyncEventsHandler(engine, logger),
		job.TypeConnectProvider:      service.NewConnectProviderHandler(credentialStore, emitter, logger),
		job.TypeCleanupExpiredTokens: service.NewCleanupExpiredTokensHandler(credentialStore, logger),
	}
	for jobType, handler := range handlers {
		q := job.NewQueue(jobType, handler, jobStore, queueConfig, logger)
		q.SetHooks(hooks)
		if err := manager.Register(q); err != nil {
			return nil, fmt.Errorf("failed to register queue: %w", err)
		}
	}

	// Events emitted by job handlers (e.g. connect-provider requesting an
	// initial sync) route back into the queues.
	emitter.RegisterHandler(events.NewSubmitHandler(manager, logger))

	return &application{
		config:          cfg,
		logger:          logger,
		db:              db,
		eventStore:      eventStore,
		credentialStore: credentialStore,
		jwtService:      jwtService,
		eventService:    eventService,
		manager:         manager,
		hub:             hub,
	}, nil
}

// Run starts the queues and HTTP server, then blocks until ctx is cancelled
// and everything has shut down.
func (app *application) Run(ctx context.Context) error {
	app.manager.StartAll()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           app.setupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("server listening", "port", app.config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		app.shutdown(srv)
		return err
	case <-ctx.Done():
		app.logger.Info("shutdown signal received")
		app.shutdown(srv)
		return nil
	}
}

func (app *application) shutdown(srv *http.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("http server shutdown failed", "error", err)
	}

	app.hub.Close()
	app.manager.StopAll()

	if err := app.db.Close(); err != nil {
		app.logger.Error("database close failed", "error", err)
	}

	app.logger.Info("shutdown complete")
}

func queueConfigFrom(cfg config.QueueConfig) job.QueueConfig {
	return job.QueueConfig{
		WorkerCount:  cfg.WorkerCount,
		PollInterval: time.Duration(cfg.PollIntervalSeconds) * time.Second,
		MaxAttempts:  cfg.MaxAttempts,
		BackoffBase:  time.Duration(cfg.BackoffBaseSeconds) * time.Second,
		BackoffCap:   time.Duration(cfg.BackoffCapSeconds) * time.Second,
		StalledAfter: time.Duration(cfg.StalledAfterMinutes) * time.Minute,
		Capacity:     cfg.Capacity,
		RetainCount:  cfg.RetainCount,
		RetainAge:    time.Duration(cfg.RetainDays) * 24 * time.Hour,
	}
}
