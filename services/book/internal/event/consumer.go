package event

import (
	"context"
	"log/slog"

	"github.com/pavila/library/pkg/events"
)

// ConsumerGroup is the consumer group reading review events.
const ConsumerGroup = "book-service-review-events"

// Recomputer rebuilds a book's aggregate from the review service.
type Recomputer interface {
	RecomputeRatingAndCount(ctx context.Context, bookID int64) error
	RecomputeRatingOnly(ctx context.Context, bookID int64) error
}

// NewRouter routes review lifecycle events to the recomputation engine.
// Creations and deletions change the count; rating edits only the average.
func NewRouter(svc Recomputer, logger *slog.Logger) *events.Router {
	return events.NewRouter(logger).
		Handle(events.TypeReviewCreated, svc.RecomputeRatingAndCount).
		Handle(events.TypeReviewDeleted, svc.RecomputeRatingAndCount).
		Handle(events.TypeRatingUpdate, svc.RecomputeRatingOnly)
}
