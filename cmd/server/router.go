package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lorecraft/graphd/internal/api"
	"github.com/lorecraft/graphd/internal/api/shared"
	"github.com/lorecraft/graphd/internal/platform/logger"
)

// setupRouter creates and configures the application router with all routes
// and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(app.traceMiddleware)

	episodeHandler := api.NewEpisodeHandler(app.episodeService)
	queueHandler := api.NewQueueHandler(app.queueManager)

	r.Route("/api", func(r chi.Router) {
		r.Post("/episodes", episodeHandler.CreateEpisode)
		r.Get("/episodes/{id}", episodeHandler.GetEpisode)
		r.Post("/episodes/{id}/retry", episodeHandler.RetryEpisode)

		r.Get("/queues/{groupID}", queueHandler.GetGroupStatus)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}

// traceMiddleware attaches a trace ID and a request-scoped logger to each
// request context.
func (app *application) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := shared.SetTraceID(r.Context())
		reqLogger := app.logger.With("trace_id", shared.GetTraceID(ctx))
		ctx = logger.WithLogger(ctx, reqLogger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
