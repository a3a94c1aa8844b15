package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pavila/library/pkg/health"
	"github.com/pavila/library/pkg/middleware"
	"github.com/pavila/library/services/review/internal/service"
)

// ServiceName labels metrics and spans emitted by the review service.
const ServiceName = "review-service"

// NewRouter creates a chi router with all review service routes registered.
func NewRouter(
	reviewService *service.ReviewService,
	info string,
	healthHandler *health.Handler,
	limit middleware.RateLimitConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(ServiceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	reviewHandler := NewReviewHandler(reviewService, info, logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(limit, logger))

		r.Get("/info", reviewHandler.Info)

		r.Post("/reviews", reviewHandler.CreateReview)
		// {id} is a book id on GET and a review id on PUT and DELETE.
		r.Get("/reviews/{id}", reviewHandler.ListByBook)
		r.Put("/reviews/{id}", reviewHandler.UpdateReview)
		r.Delete("/reviews/{id}", reviewHandler.DeleteReview)
	})

	return r
}
