package service

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/pavila/library/pkg/errors"
	"github.com/pavila/library/pkg/kafka"
	"github.com/pavila/library/pkg/logger"
	"github.com/pavila/library/services/book/internal/domain"
)

const tracerName = "github.com/pavila/library/services/book/internal/service"

// RecomputeRatingAndCount re-derives both aggregate fields from the review
// service's current list and persists them. It handles REVIEW_CREATED and
// REVIEW_DELETED.
//
// The result depends only on the fetched snapshot, so redelivered or
// reordered events converge on the same aggregate. Concurrent calls for one
// book are not serialised: the last write wins. A failed fetch and a missing
// book are terminal; store errors are returned as is and may be retried.
func (s *BookService) RecomputeRatingAndCount(ctx context.Context, bookID int64) error {
	return s.recompute(ctx, bookID, modeRatingAndCount, func(ctx context.Context, agg domain.Aggregate) error {
		return s.repo.UpdateAggregate(ctx, bookID, agg)
	})
}

// RecomputeRatingOnly handles RATING_UPDATE. It computes the aggregate the
// same way but writes only the average, since a rating edit never changes
// the count.
func (s *BookService) RecomputeRatingOnly(ctx context.Context, bookID int64) error {
	return s.recompute(ctx, bookID, modeRatingOnly, func(ctx context.Context, agg domain.Aggregate) error {
		return s.repo.UpdateAverageRating(ctx, bookID, agg.AverageRating)
	})
}

func (s *BookService) recompute(
	ctx context.Context,
	bookID int64,
	mode string,
	persist func(context.Context, domain.Aggregate) error,
) (err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "BookService.Recompute",
		trace.WithAttributes(
			attribute.Int64("book.id", bookID),
			attribute.String("recompute.mode", mode),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	log := logger.WithContext(ctx, s.logger).With(
		slog.Int64("book_id", bookID),
		slog.String("mode", mode),
	)

	reviews, err := s.reviews.ListByBookID(ctx, bookID)
	if err != nil {
		aggregateRecomputations.WithLabelValues(mode, outcomeFetchFailed).Inc()
		log.ErrorContext(ctx, "review snapshot unavailable, dropping recomputation",
			slog.String("error", err.Error()),
		)
		return kafka.Terminal(fmt.Errorf("fetch reviews of book %d: %w", bookID, err))
	}

	agg := domain.ComputeAggregate(reviews)

	if err := persist(ctx, agg); err != nil {
		if apperrors.IsNotFound(err) {
			aggregateRecomputations.WithLabelValues(mode, outcomeBookMissing).Inc()
			log.WarnContext(ctx, "book no longer exists, dropping recomputation")
			return kafka.Terminal(err)
		}
		aggregateRecomputations.WithLabelValues(mode, outcomeStoreError).Inc()
		return fmt.Errorf("persist aggregate of book %d: %w", bookID, err)
	}

	aggregateRecomputations.WithLabelValues(mode, outcomeApplied).Inc()
	log.InfoContext(ctx, "aggregate recomputed",
		slog.Float64("average_rating", agg.AverageRating),
		slog.Int("review_count", agg.ReviewCount),
	)
	return nil
}
