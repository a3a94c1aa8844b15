package event

import (
	"context"

	"github.com/pavila/library/pkg/events"
)

// SourceReviewService stamps envelopes published by this service.
const SourceReviewService = "review-service"

// Producer publishes review lifecycle events for the book service. Every
// method returns as soon as the event is enqueued.
type Producer struct {
	publisher *events.Publisher
}

// NewProducer creates a Producer over publisher.
func NewProducer(publisher *events.Publisher) *Producer {
	return &Producer{publisher: publisher}
}

// ReviewCreated announces a new review of bookID.
func (p *Producer) ReviewCreated(ctx context.Context, bookID int64) events.Enqueued {
	return p.publish(ctx, bookID, events.TypeReviewCreated)
}

// ReviewDeleted announces that a review of bookID is gone.
func (p *Producer) ReviewDeleted(ctx context.Context, bookID int64) events.Enqueued {
	return p.publish(ctx, bookID, events.TypeReviewDeleted)
}

// RatingUpdated announces that a review of bookID changed its rating.
func (p *Producer) RatingUpdated(ctx context.Context, bookID int64) events.Enqueued {
	return p.publish(ctx, bookID, events.TypeRatingUpdate)
}

func (p *Producer) publish(ctx context.Context, bookID int64, t events.Type) events.Enqueued {
	return p.publisher.Publish(ctx, events.ReviewEventsTopic, events.LibraryEvent{BookID: bookID, Type: t})
}
