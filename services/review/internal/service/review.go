package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/pavila/library/pkg/errors"
	"github.com/pavila/library/pkg/events"
	"github.com/pavila/library/pkg/logger"
	"github.com/pavila/library/services/review/internal/domain"
	"github.com/pavila/library/services/review/internal/repository"
)

const tracerName = "github.com/pavila/library/services/review/internal/service"

// BookChecker answers whether a book exists in the book service.
type BookChecker interface {
	Exists(ctx context.Context, bookID int64) (bool, error)
}

// EventPublisher announces review lifecycle changes. Publication is
// fire-and-forget; the result only says whether the event was enqueued.
type EventPublisher interface {
	ReviewCreated(ctx context.Context, bookID int64) events.Enqueued
	ReviewDeleted(ctx context.Context, bookID int64) events.Enqueued
	RatingUpdated(ctx context.Context, bookID int64) events.Enqueued
}

// CreateReviewInput holds the parameters for creating a review.
type CreateReviewInput struct {
	BookID  int64
	Rating  int
	Comment string
}

// UpdateReviewInput holds the replacement rating and comment of a review.
type UpdateReviewInput struct {
	Rating  int
	Comment string
}

// ReviewService implements the business logic for review operations.
type ReviewService struct {
	repo      repository.ReviewRepository
	books     BookChecker
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewReviewService creates a new review service.
func NewReviewService(repo repository.ReviewRepository, books BookChecker, publisher EventPublisher, logger *slog.Logger) *ReviewService {
	return &ReviewService{
		repo:      repo,
		books:     books,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateReview stores a review of an existing book and announces it with
// REVIEW_CREATED. The book must be confirmed to exist first: a negative
// answer and an unreachable book service both fail with NotFound and
// nothing is written.
func (s *ReviewService) CreateReview(ctx context.Context, input *CreateReviewInput) (*domain.Review, error) {
	if input.BookID <= 0 {
		return nil, apperrors.InvalidInput("bookId must be a positive integer")
	}
	if err := domain.ValidateContent(input.Rating, input.Comment); err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "ReviewService.CreateReview",
		trace.WithAttributes(attribute.Int64("book.id", input.BookID)))
	defer span.End()

	log := logger.WithContext(ctx, s.logger)

	if err := s.ensureBookExists(ctx, input.BookID); err != nil {
		log.InfoContext(ctx, "review rejected",
			slog.Int64("book_id", input.BookID),
			slog.String("reason", err.Error()),
		)
		return nil, err
	}

	now := s.now()
	review := &domain.Review{
		BookID:    input.BookID,
		Rating:    input.Rating,
		Comment:   input.Comment,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, review); err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}

	log.InfoContext(ctx, "review created",
		slog.Int64("review_id", review.ID),
		slog.Int64("book_id", review.BookID),
		slog.Int("rating", review.Rating),
	)

	s.publisher.ReviewCreated(ctx, review.BookID)
	return review, nil
}

func (s *ReviewService) ensureBookExists(ctx context.Context, bookID int64) error {
	exists, err := s.books.Exists(ctx, bookID)
	switch {
	case err != nil:
		bookExistenceChecks.WithLabelValues(existenceUnavailable).Inc()
		logger.WithContext(ctx, s.logger).WarnContext(ctx, "book existence unknown, rejecting review",
			slog.Int64("book_id", bookID),
			slog.String("error", err.Error()),
		)
		return apperrors.NotFound("book", strconv.FormatInt(bookID, 10))
	case !exists:
		bookExistenceChecks.WithLabelValues(existenceMissing).Inc()
		return apperrors.NotFound("book", strconv.FormatInt(bookID, 10))
	default:
		bookExistenceChecks.WithLabelValues(existenceFound).Inc()
		return nil
	}
}

// ListByBookID returns the reviews of a book in id order.
func (s *ReviewService) ListByBookID(ctx context.Context, bookID int64) ([]domain.Summary, error) {
	reviews, err := s.repo.ListByBookID(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("list reviews of book %d: %w", bookID, err)
	}

	out := make([]domain.Summary, 0, len(reviews))
	for i := range reviews {
		out = append(out, reviews[i].Summary())
	}
	return out, nil
}

// UpdateReview replaces the rating and comment of a review. Fields are
// compared by value: when neither changed nothing is written or published.
// RATING_UPDATE is published only when the rating moved.
func (s *ReviewService) UpdateReview(ctx context.Context, id int64, input *UpdateReviewInput) (*domain.Review, error) {
	if err := domain.ValidateContent(input.Rating, input.Comment); err != nil {
		return nil, err
	}

	review, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	log := logger.WithContext(ctx, s.logger).With(
		slog.Int64("review_id", review.ID),
		slog.Int64("book_id", review.BookID),
	)

	change := review.Apply(input.Rating, input.Comment, s.now())
	if change.None() {
		log.DebugContext(ctx, "review unchanged, skipping update")
		return review, nil
	}

	if err := s.repo.Update(ctx, review); err != nil {
		return nil, fmt.Errorf("update review %d: %w", id, err)
	}

	log.InfoContext(ctx, "review updated",
		slog.Bool("rating_changed", change.Rating),
		slog.Bool("comment_changed", change.Comment),
	)

	if change.Rating {
		s.publisher.RatingUpdated(ctx, review.BookID)
	}
	return review, nil
}

// DeleteReview removes a review and announces it with REVIEW_DELETED.
func (s *ReviewService) DeleteReview(ctx context.Context, id int64) error {
	review, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete review %d: %w", id, err)
	}

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "review deleted",
		slog.Int64("review_id", id),
		slog.Int64("book_id", review.BookID),
	)

	s.publisher.ReviewDeleted(ctx, review.BookID)
	return nil
}

// DeleteAllByBookID removes every review of a deleted book. It succeeds
// when there is nothing left to delete, so redelivered BOOK_DELETED events
// are harmless.
func (s *ReviewService) DeleteAllByBookID(ctx context.Context, bookID int64) error {
	n, err := s.repo.DeleteByBookID(ctx, bookID)
	if err != nil {
		return fmt.Errorf("delete reviews of book %d: %w", bookID, err)
	}

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "reviews of deleted book removed",
		slog.Int64("book_id", bookID),
		slog.Int64("deleted", n),
	)
	return nil
}
