package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	apperrors "github.com/pavila/library/pkg/errors"
	"github.com/pavila/library/pkg/events"
	"github.com/pavila/library/pkg/logger"
	"github.com/pavila/library/pkg/pagination"
	"github.com/pavila/library/services/book/internal/domain"
	"github.com/pavila/library/services/book/internal/repository"
)

// ReviewLister reads the current reviews of a book from the review service.
type ReviewLister interface {
	ListByBookID(ctx context.Context, bookID int64) ([]domain.ReviewSnapshot, error)
}

// EventPublisher announces book deletions. The result only says whether the
// event was enqueued.
type EventPublisher interface {
	BookDeleted(ctx context.Context, bookID int64) events.Enqueued
}

// BookInput holds the descriptive fields of a book.
type BookInput struct {
	Title           string
	Author          string
	PublicationYear string
	ISBN            string
}

func (in *BookInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return apperrors.InvalidInput("title must not be blank")
	}
	if strings.TrimSpace(in.Author) == "" {
		return apperrors.InvalidInput("author must not be blank")
	}
	return nil
}

// BookService implements the business logic for book operations.
type BookService struct {
	repo      repository.BookRepository
	reviews   ReviewLister
	publisher EventPublisher
	logger    *slog.Logger
}

// NewBookService creates a new book service.
func NewBookService(repo repository.BookRepository, reviews ReviewLister, publisher EventPublisher, logger *slog.Logger) *BookService {
	return &BookService{
		repo:      repo,
		reviews:   reviews,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateBook stores a new book with an empty aggregate.
func (s *BookService) CreateBook(ctx context.Context, input *BookInput) (*domain.Book, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	book := &domain.Book{
		Title:           input.Title,
		Author:          input.Author,
		PublicationYear: input.PublicationYear,
		ISBN:            input.ISBN,
	}
	if err := s.repo.Create(ctx, book); err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "book created",
		slog.Int64("book_id", book.ID),
		slog.String("isbn", book.ISBN),
	)
	return book, nil
}

// ListBooks returns one page of books. A page with no books is NotFound.
func (s *BookService) ListBooks(ctx context.Context, params pagination.Params) (pagination.Result[domain.Book], error) {
	books, total, err := s.repo.List(ctx, params.Offset(), params.PerPage)
	if err != nil {
		return pagination.Result[domain.Book]{}, fmt.Errorf("list books: %w", err)
	}
	if len(books) == 0 {
		logger.WithContext(ctx, s.logger).WarnContext(ctx, "no books on requested page",
			slog.Int("page", params.Page),
			slog.Int("per_page", params.PerPage),
		)
		return pagination.Result[domain.Book]{}, apperrors.NotFoundMessage("no books found")
	}
	return pagination.NewResult(books, total, params), nil
}

// GetBookDetails returns a book with its current reviews. If the review
// service cannot answer, the book is still returned with no reviews and
// ReviewsUnavailable set.
func (s *BookService) GetBookDetails(ctx context.Context, id int64) (*domain.BookDetails, error) {
	book, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	details := &domain.BookDetails{Book: book, Reviews: []domain.ReviewSnapshot{}}
	reviews, err := s.reviews.ListByBookID(ctx, id)
	if err != nil {
		logger.WithContext(ctx, s.logger).WarnContext(ctx, "serving book without reviews",
			slog.Int64("book_id", id),
			slog.String("error", err.Error()),
		)
		details.ReviewsUnavailable = true
		return details, nil
	}
	details.Reviews = reviews
	return details, nil
}

// UpdateBook replaces the descriptive fields of a book. The aggregate is
// left as the last recomputation wrote it.
func (s *BookService) UpdateBook(ctx context.Context, id int64, input *BookInput) (*domain.Book, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	book, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	book.Title = input.Title
	book.Author = input.Author
	book.PublicationYear = input.PublicationYear
	book.ISBN = input.ISBN

	if err := s.repo.Update(ctx, book); err != nil {
		return nil, fmt.Errorf("update book %d: %w", id, err)
	}

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "book updated", slog.Int64("book_id", id))
	return book, nil
}

// DeleteBook removes a book and publishes BOOK_DELETED so the review
// service drops its reviews.
func (s *BookService) DeleteBook(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "book deleted", slog.Int64("book_id", id))
	s.publisher.BookDeleted(ctx, id)
	return nil
}

// Exists reports whether the book is present. It backs the existence RPC
// and has no side effects.
func (s *BookService) Exists(ctx context.Context, id int64) (bool, error) {
	exists, err := s.repo.ExistsByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("check book %d: %w", id, err)
	}
	return exists, nil
}
