package repository

import (
	"context"

	"github.com/pavila/library/services/review/internal/domain"
)

// ReviewRepository defines the persistence operations for reviews.
type ReviewRepository interface {
	// Create inserts review and fills in its ID and timestamps.
	Create(ctx context.Context, review *domain.Review) error

	// GetByID returns the review or a NotFound error.
	GetByID(ctx context.Context, id int64) (*domain.Review, error)

	// ListByBookID returns every review of a book ordered by id. An empty
	// slice, not an error, when there are none.
	ListByBookID(ctx context.Context, bookID int64) ([]domain.Review, error)

	// Update writes rating, comment and updated_at in one statement.
	Update(ctx context.Context, review *domain.Review) error

	// Delete removes a review, returning NotFound if it was already gone.
	Delete(ctx context.Context, id int64) error

	// DeleteByBookID removes every review of a book and returns how many
	// rows went. Zero is not an error.
	DeleteByBookID(ctx context.Context, bookID int64) (int64, error)
}
