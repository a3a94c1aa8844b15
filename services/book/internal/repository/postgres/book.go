package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/pavila/library/pkg/database"
	apperrors "github.com/pavila/library/pkg/errors"
	"github.com/pavila/library/services/book/internal/domain"
	"github.com/pavila/library/services/book/internal/repository"
)

var _ repository.BookRepository = (*BookRepository)(nil)

const bookColumns = `id, title, author, publication_year, isbn, average_rating, review_count, created_at, updated_at`

// BookRepository implements repository.BookRepository using PostgreSQL.
type BookRepository struct {
	db database.DBTX
}

// NewBookRepository creates a new PostgreSQL-backed book repository.
func NewBookRepository(db database.DBTX) *BookRepository {
	return &BookRepository{db: db}
}

func scanBook(row pgx.Row, b *domain.Book, extra ...any) error {
	dest := append([]any{
		&b.ID, &b.Title, &b.Author, &b.PublicationYear, &b.ISBN,
		&b.AverageRating, &b.ReviewCount, &b.CreatedAt, &b.UpdatedAt,
	}, extra...)
	return row.Scan(dest...)
}

func notFound(id int64) error {
	return apperrors.NotFound("book", strconv.FormatInt(id, 10))
}

// Create inserts a book. The aggregate starts empty: no average, zero reviews.
func (r *BookRepository) Create(ctx context.Context, book *domain.Book) (err error) {
	const query = `
		INSERT INTO books (title, author, publication_year, isbn)
		VALUES ($1, $2, $3, $4)
		RETURNING id, review_count, created_at, updated_at`

	ctx, end := database.TraceQuery(ctx, "CreateBook", query)
	defer func() { end(err) }()

	book.AverageRating = nil
	if err = r.db.QueryRow(ctx, query, book.Title, book.Author, book.PublicationYear, book.ISBN).
		Scan(&book.ID, &book.ReviewCount, &book.CreatedAt, &book.UpdatedAt); err != nil {
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

// GetByID retrieves a book by its id.
func (r *BookRepository) GetByID(ctx context.Context, id int64) (_ *domain.Book, err error) {
	const query = `SELECT ` + bookColumns + ` FROM books WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "GetBook", query)
	defer func() { end(err) }()

	var b domain.Book
	if err = scanBook(r.db.QueryRow(ctx, query, id), &b); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("get book %d: %w", id, err)
	}
	return &b, nil
}

// List returns a page of books. The total comes from count(*) OVER() in the
// same query, so an empty page reports a total of zero.
func (r *BookRepository) List(ctx context.Context, offset, limit int) (_ []domain.Book, _ int, err error) {
	const query = `
		SELECT ` + bookColumns + `, count(*) OVER() AS total_count
		FROM books
		ORDER BY id
		LIMIT $1 OFFSET $2`

	ctx, end := database.TraceQuery(ctx, "ListBooks", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	var (
		books []domain.Book
		total int
	)
	for rows.Next() {
		var b domain.Book
		if err = scanBook(rows, &b, &total); err != nil {
			return nil, 0, fmt.Errorf("scan book row: %w", err)
		}
		books = append(books, b)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate book rows: %w", err)
	}
	return books, total, nil
}

// Update writes title, author, publication year and ISBN, and reads back the
// aggregate columns it never writes.
func (r *BookRepository) Update(ctx context.Context, book *domain.Book) (err error) {
	const query = `
		UPDATE books
		SET title = $2, author = $3, publication_year = $4, isbn = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING average_rating, review_count, updated_at`

	ctx, end := database.TraceQuery(ctx, "UpdateBook", query)
	defer func() { end(err) }()

	err = r.db.QueryRow(ctx, query, book.ID, book.Title, book.Author, book.PublicationYear, book.ISBN).
		Scan(&book.AverageRating, &book.ReviewCount, &book.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound(book.ID)
		}
		return fmt.Errorf("update book %d: %w", book.ID, err)
	}
	return nil
}

// Delete removes one book.
func (r *BookRepository) Delete(ctx context.Context, id int64) (err error) {
	const query = `DELETE FROM books WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "DeleteBook", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete book %d: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

// ExistsByID answers the existence RPC. It has no side effects.
func (r *BookRepository) ExistsByID(ctx context.Context, id int64) (_ bool, err error) {
	const query = `SELECT EXISTS (SELECT 1 FROM books WHERE id = $1)`

	ctx, end := database.TraceQuery(ctx, "BookExists", query)
	defer func() { end(err) }()

	var exists bool
	if err = r.db.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check book %d exists: %w", id, err)
	}
	return exists, nil
}

// UpdateAggregate persists a full recomputation.
func (r *BookRepository) UpdateAggregate(ctx context.Context, id int64, agg domain.Aggregate) (err error) {
	const query = `
		UPDATE books
		SET average_rating = $2, review_count = $3, updated_at = NOW()
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "UpdateBookAggregate", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, id, agg.AverageRating, agg.ReviewCount)
	if err != nil {
		return fmt.Errorf("update aggregate of book %d: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

// UpdateAverageRating persists a rating-only recomputation.
func (r *BookRepository) UpdateAverageRating(ctx context.Context, id int64, avg float64) (err error) {
	const query = `
		UPDATE books
		SET average_rating = $2, updated_at = NOW()
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "UpdateBookRating", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, id, avg)
	if err != nil {
		return fmt.Errorf("update rating of book %d: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}
