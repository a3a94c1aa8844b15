package event

import (
	"context"
	"log/slog"

	"github.com/pavila/library/pkg/events"
)

// ConsumerGroup is the consumer group reading book events.
const ConsumerGroup = "review-service-book-events"

// CascadeDeleter removes every review of a deleted book.
type CascadeDeleter interface {
	DeleteAllByBookID(ctx context.Context, bookID int64) error
}

// NewRouter routes BOOK_DELETED to the cascade. Other discriminants on the
// book topic are acknowledged and ignored.
func NewRouter(svc CascadeDeleter, logger *slog.Logger) *events.Router {
	return events.NewRouter(logger).
		Handle(events.TypeBookDeleted, svc.DeleteAllByBookID)
}
