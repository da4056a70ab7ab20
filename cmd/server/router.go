package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/calsync-io/calsync-api/internal/api"
	apiMiddleware "github.com/calsync-io/calsync-api/internal/api/middleware"
)

// setupRouter configures the application router with all routes and
// middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)
	eventHandler := api.NewEventHandler(app.eventService, app.logger)
	jobHandler := api.NewJobHandler(app.manager, app.logger)
	wsHandler := api.NewWSHandler(app.hub, app.logger)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Get("/events", eventHandler.ListEvents)
			r.Post("/events", eventHandler.CreateEvent)
			r.Get("/events/{id}", eventHandler.GetEvent)
			r.Put("/events/{id}", eventHandler.UpdateEvent)
			r.Delete("/events/{id}", eventHandler.DeleteEvent)

			r.Post("/jobs", jobHandler.CreateJob)
			r.Get("/jobs/stats", jobHandler.GetStats)
			r.Get("/jobs/{id}", jobHandler.GetJob)

			r.Get("/ws", wsHandler.Subscribe)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
