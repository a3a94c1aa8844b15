package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/pavila/library/pkg/database"
	apperrors "github.com/pavila/library/pkg/errors"
	"github.com/pavila/library/services/review/internal/domain"
	"github.com/pavila/library/services/review/internal/repository"
)

var _ repository.ReviewRepository = (*ReviewRepository)(nil)

// ReviewRepository implements repository.ReviewRepository using PostgreSQL.
type ReviewRepository struct {
	db database.DBTX
}

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(db database.DBTX) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create inserts a review and scans back the generated id and timestamps.
func (r *ReviewRepository) Create(ctx context.Context, review *domain.Review) (err error) {
	const query = `
		INSERT INTO reviews (book_id, rating, comment)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`

	ctx, end := database.TraceQuery(ctx, "CreateReview", query)
	defer func() { end(err) }()

	if err = r.db.QueryRow(ctx, query, review.BookID, review.Rating, review.Comment).
		Scan(&review.ID, &review.CreatedAt, &review.UpdatedAt); err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

// GetByID retrieves a review by its id.
func (r *ReviewRepository) GetByID(ctx context.Context, id int64) (_ *domain.Review, err error) {
	const query = `
		SELECT id, book_id, rating, comment, created_at, updated_at
		FROM reviews
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "GetReview", query)
	defer func() { end(err) }()

	var rv domain.Review
	err = r.db.QueryRow(ctx, query, id).Scan(
		&rv.ID, &rv.BookID, &rv.Rating, &rv.Comment, &rv.CreatedAt, &rv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("review", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("get review %d: %w", id, err)
	}
	return &rv, nil
}

// ListByBookID returns all reviews for a book in id order.
func (r *ReviewRepository) ListByBookID(ctx context.Context, bookID int64) (_ []domain.Review, err error) {
	const query = `
		SELECT id, book_id, rating, comment, created_at, updated_at
		FROM reviews
		WHERE book_id = $1
		ORDER BY id`

	ctx, end := database.TraceQuery(ctx, "ListReviewsByBook", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, bookID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []domain.Review{}
	for rows.Next() {
		var rv domain.Review
		if err = rows.Scan(&rv.ID, &rv.BookID, &rv.Rating, &rv.Comment, &rv.CreatedAt, &rv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, rv)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review rows: %w", err)
	}
	return reviews, nil
}

// Update persists rating, comment and updated_at.
func (r *ReviewRepository) Update(ctx context.Context, review *domain.Review) (err error) {
	const query = `
		UPDATE reviews
		SET rating = $2, comment = $3, updated_at = $4
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "UpdateReview", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, review.ID, review.Rating, review.Comment, review.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update review %d: %w", review.ID, err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("review", strconv.FormatInt(review.ID, 10))
	}
	return nil
}

// Delete removes one review.
func (r *ReviewRepository) Delete(ctx context.Context, id int64) (err error) {
	const query = `DELETE FROM reviews WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "DeleteReview", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete review %d: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("review", strconv.FormatInt(id, 10))
	}
	return nil
}

// DeleteByBookID removes every review of a book.
func (r *ReviewRepository) DeleteByBookID(ctx context.Context, bookID int64) (_ int64, err error) {
	const query = `DELETE FROM reviews WHERE book_id = $1`

	ctx, end := database.TraceQuery(ctx, "DeleteReviewsByBook", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, bookID)
	if err != nil {
		return 0, fmt.Errorf("delete reviews of book %d: %w", bookID, err)
	}
	return ct.RowsAffected(), nil
}
