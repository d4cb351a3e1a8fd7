package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func NewRouter(handler *Handler, health *HealthHandler, maxConcurrent int, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(RecoveryMiddleware(logger))
	r.Use(CORSMiddleware)
	r.Use(RequestContextMiddleware)
	r.Use(LoggingMiddleware(logger))

	// Probes and scrapes stay outside the concurrency cap.
	r.Get("/healthz", health.Liveness)
	r.Get("/readyz", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(NewInflightLimiter(maxConcurrent, logger).Middleware)

		r.Route("/api/v1", func(r chi.Router) {
			r.Post("/messages", handler.Message)
			r.Post("/buttons", handler.Button)
			r.Get("/chats/{chatID}/outbox", handler.Outbox)
			r.Get("/chats/{chatID}/favorites", handler.Favorites)
			r.Get("/stats/destinations", handler.Destinations)
			r.Post("/inventory", handler.Inventory)
		})
	})

	return r
}
