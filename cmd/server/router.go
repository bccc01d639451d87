package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/phrazzld/eco-queue/internal/api"
	apiMiddleware "github.com/phrazzld/eco-queue/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	var validator apiMiddleware.TokenValidator
	if app.tokens != nil {
		validator = app.tokens
	}
	triggerAuth := apiMiddleware.NewTriggerAuth(app.config.Dispatch.TriggerSecret, validator)

	taskHandler := api.NewTaskHandler(app.tasks, app.governor, app.logger)
	dispatchHandler := api.NewDispatchHandler(app.chain, app.tasks, app.config.Dispatch.StuckAfter, app.logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(triggerAuth.Require)

		r.Post("/tasks", taskHandler.Enqueue)
		r.Get("/tasks", taskHandler.List)
		r.Delete("/tasks", taskHandler.Clear)
		r.Get("/tasks/{id}", taskHandler.Get)
		r.Delete("/tasks/{id}", taskHandler.Delete)
		r.Post("/tasks/{id}/retry", taskHandler.Retry)
		r.Get("/stats", taskHandler.Stats)

		r.Post("/dispatch/trigger", dispatchHandler.Trigger)
		r.Post("/dispatch/kick", dispatchHandler.Kick)
		r.Post("/dispatch/reset-stuck", dispatchHandler.ResetStuck)

		if app.ecosystems != nil {
			ecosystemHandler := api.NewEcosystemHandler(app.ecosystems)
			r.Get("/ecosystems", ecosystemHandler.List)
			r.Get("/ecosystems/{chatID}", ecosystemHandler.Get)
		}
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
