package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pavila/library/pkg/health"
	"github.com/pavila/library/pkg/middleware"
	"github.com/pavila/library/services/book/internal/config"
	"github.com/pavila/library/services/book/internal/service"
)

// ServiceName labels metrics and spans emitted by the book service.
const ServiceName = "book-service"

// NewRouter creates a chi router with all book service routes registered.
func NewRouter(
	bookService *service.BookService,
	info config.Info,
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

	bookHandler := NewBookHandler(bookService, info, logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(limit, logger))

		r.Get("/info", bookHandler.Info)
		// Existence check used by the review service before it accepts a review.
		r.Get("/{id}/exists", bookHandler.Exists)

		r.Route("/books", func(r chi.Router) {
			r.Post("/", bookHandler.CreateBook)
			r.Get("/", bookHandler.ListBooks)
			r.Get("/{id}", bookHandler.GetBook)
			r.Put("/{id}", bookHandler.UpdateBook)
			r.Delete("/{id}", bookHandler.DeleteBook)
		})
	})

	return r
}
