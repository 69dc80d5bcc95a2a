package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shivbardolabs/ShipOS-sub002/internal/handler"
	customMiddleware "github.com/shivbardolabs/ShipOS-sub002/internal/middleware"
)

func NewRouter(
	nh *handler.NotificationHandler,
	rlh *handler.RateLimitHandler,
	healthHandler *handler.HealthHandler,
) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(customMiddleware.MetricsMiddleware)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/notifications", func(r chi.Router) {
		r.Post("/", nh.Dispatch)
		r.Post("/retry", nh.RetryFailed)
		r.Get("/{id}", nh.GetByID)
		r.Post("/{id}/retry", nh.RetrySingle)
		r.Post("/{id}/receipt", nh.Receipt)
	})

	r.Route("/customers/{id}/rate-limit", func(r chi.Router) {
		r.Get("/", rlh.Status)
		r.Delete("/", rlh.Reset)
	})

	// Health & Readiness Routes
	r.Get("/healthz", healthHandler.Liveness)
	r.Get("/readyz", healthHandler.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
