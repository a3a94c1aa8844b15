package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavila/library/pkg/database"
	apperrors "github.com/pavila/library/pkg/errors"
	"github.com/pavila/library/services/book/internal/domain"
)

var now = time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

var columns = []string{
	"id", "title", "author", "publication_year", "isbn",
	"average_rating", "review_count", "created_at", "updated_at",
}

func floatPtr(f float64) *float64 { return &f }

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	return database.NewMockPool(t)
}

func TestBookRepository_Create(t *testing.T) {
	mock := newMock(t)
	repo := NewBookRepository(mock)

	mock.ExpectQuery("INSERT INTO books").
		WithArgs("Dune", "Frank Herbert", "1965", "9780441013593").
		WillReturnRows(pgxmock.NewRows([]string{"id", "review_count", "created_at", "updated_at"}).
			AddRow(int64(1), 0, now, now))

	b := &domain.Book{Title: "Dune", Author: "Frank Herbert", PublicationYear: "1965", ISBN: "9780441013593", AverageRating: floatPtr(3)}
	require.NoError(t, repo.Create(context.Background(), b))
	assert.Equal(t, int64(1), b.ID)
	assert.Nil(t, b.AverageRating)
	assert.Zero(t, b.ReviewCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepository_GetByID(t *testing.T) {
	mock := newMock(t)
	repo := NewBookRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM books WHERE id").
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow(int64(1), "Dune", "Frank Herbert", "1965", "9780441013593", floatPtr(4.5), 2, now, now))

	b, err := repo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Dune", b.Title)
	require.NotNil(t, b.AverageRating)
	assert.InDelta(t, 4.5, *b.AverageRating, 1e-9)
	assert.Equal(t, 2, b.ReviewCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepository_GetByID_NullAverage(t *testing.T) {
	mock := newMock(t)
	repo := NewBookRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM books WHERE id").
		WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow(int64(2), "Emma", "Jane Austen", "1915", "0141439580", (*float64)(nil), 0, now, now))

	b, err := repo.GetByID(context.Background(), 2)
	require.NoError(t, err)
	assert.Nil(t, b.AverageRating)
}

func TestBookRepository_GetByID_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewBookRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM books WHERE id").
		WithArgs(int64(9)).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 9)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestBookRepository_List(t *testing.T) {
	mock := newMock(t)
	repo := NewBookRepository(mock)

	mock.ExpectQuery("SELECT .+ count\\(\\*\\) OVER\\(\\) AS total_count FROM books ORDER BY id LIMIT \\$1 OFFSET \\$2").
		WithArgs(2, 0).
		WillReturnRows(pgxmock.NewRows(append(columns, "total_count")).
			AddRow(int64(1), "Dune", "Frank Herbert", "1965", "9780441013593", floatPtr(4), 3, now, now, 5).
			AddRow(int64(2), "Emma", "Jane Austen", "1915", "0141439580", (*float64)(nil), 0, now, now, 5))

	books, total, err := repo.List(context.Background(), 0, 2)
	require.NoError(t, err)
	assert.Len(t, books, 2)
	assert.Equal(t, 5, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepository_List_Empty(t *testing.T) {
	mock := newMock(t)
	repo := NewBookRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM books").
		WithArgs(20, 100).
		WillReturnRows(pgxmock.NewRows(append(columns, "total_count")))

	books, total, err := repo.List(context.Background(), 100, 20)
	require.NoError(t, err)
	assert.Empty(t, books)
	assert.Zero(t, total)
}

func TestBookRepository_Update_LeavesAggregate(t *testing.T) {
	mock := newMock(t)
	repo := NewBookRepository(mock)

	mock.ExpectQuery("UPDATE books SET title = \\$2, author = \\$3, publication_year = \\$4, isbn = \\$5, updated_at = NOW\\(\\) WHERE id = \\$1").
		WithArgs(int64(1), "Dune Messiah", "Frank Herbert", "1969", "0593098234").
		WillReturnRows(pgxmock.NewRows([]string{"average_rating", "review_count", "updated_at"}).
			AddRow(floatPtr(4.0), 3, now))

	b := &domain.Book{ID: 1, Title: "Dune Messiah", Author: "Frank Herbert", PublicationYear: "1969", ISBN: "0593098234"}
	require.NoError(t, repo.Update(context.Background(), b))
	assert.Equal(t, 3, b.ReviewCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepository_Update_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewBookRepository(mock)

	mock.ExpectQuery("UPDATE books").
		WithArgs(int64(4), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	err := repo.Update(context.Background(), &domain.Book{ID: 4})
	assert.True(t, apperrors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepository_Delete(t *testing.T) {
	mock := newMock(t)
	repo := NewBookRepository(mock)

	mock.ExpectExec("DELETE FROM books WHERE id").WithArgs(int64(1)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM books WHERE id").WithArgs(int64(1)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, repo.Delete(context.Background(), 1))
	assert.True(t, apperrors.IsNotFound(repo.Delete(context.Background(), 1)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepository_ExistsByID(t *testing.T) {
	mock := newMock(t)
	repo := NewBookRepository(mock)

	mock.ExpectQuery("SELECT EXISTS").WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT EXISTS").WithArgs(int64(2)).
		WillReturnError(errors.New("conn closed"))

	ok, err := repo.ExistsByID(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = repo.ExistsByID(context.Background(), 2)
	assert.Error(t, err)
}

func TestBookRepository_UpdateAggregate(t *testing.T) {
	mock := newMock(t)
	repo := NewBookRepository(mock)

	mock.ExpectExec("UPDATE books SET average_rating = \\$2, review_count = \\$3").
		WithArgs(int64(7), 4.0, 3).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE books SET average_rating").
		WithArgs(int64(8), 0.0, 0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, repo.UpdateAggregate(context.Background(), 7, domain.Aggregate{AverageRating: 4.0, ReviewCount: 3}))
	assert.True(t, apperrors.IsNotFound(repo.UpdateAggregate(context.Background(), 8, domain.Aggregate{})))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepository_UpdateAverageRating(t *testing.T) {
	mock := newMock(t)
	repo := NewBookRepository(mock)

	mock.ExpectExec("UPDATE books SET average_rating = \\$2, updated_at = NOW\\(\\) WHERE id = \\$1").
		WithArgs(int64(7), 2.0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.UpdateAverageRating(context.Background(), 7, 2.0))
	assert.NoError(t, mock.ExpectationsWereMet())
}
