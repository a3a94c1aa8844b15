package event

import (
	"context"

	"github.com/pavila/library/pkg/events"
)

// SourceBookService stamps envelopes published by this service.
const SourceBookService = "book-service"

// Producer publishes book lifecycle events for the review service.
type Producer struct {
	publisher *events.Publisher
}

// NewProducer creates a Producer over publisher.
func NewProducer(publisher *events.Publisher) *Producer {
	return &Producer{publisher: publisher}
}

// BookDeleted announces that bookID is gone and its reviews should follow.
func (p *Producer) BookDeleted(ctx context.Context, bookID int64) events.Enqueued {
	return p.publisher.Publish(ctx, events.BookEventsTopic, events.LibraryEvent{
		BookID: bookID,
		Type:   events.TypeBookDeleted,
	})
}
