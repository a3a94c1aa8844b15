package repository

import (
	"context"

	"github.com/pavila/library/services/book/internal/domain"
)

// BookRepository defines the persistence operations for books.
type BookRepository interface {
	// Create inserts book and fills in its ID, ReviewCount and timestamps.
	Create(ctx context.Context, book *domain.Book) error

	// GetByID returns the book or a NotFound error.
	GetByID(ctx context.Context, id int64) (*domain.Book, error)

	// List returns one page of books in id order and the total number of
	// books. An out-of-range page yields no books.
	List(ctx context.Context, offset, limit int) ([]domain.Book, int, error)

	// Update writes the descriptive fields only.
	Update(ctx context.Context, book *domain.Book) error

	// Delete removes a book, returning NotFound if it was already gone.
	Delete(ctx context.Context, id int64) error

	// ExistsByID reports whether a book row is present.
	ExistsByID(ctx context.Context, id int64) (bool, error)

	// UpdateAggregate writes both average_rating and review_count.
	UpdateAggregate(ctx context.Context, id int64, agg domain.Aggregate) error

	// UpdateAverageRating writes average_rating and leaves review_count.
	UpdateAverageRating(ctx context.Context, id int64, avg float64) error
}
