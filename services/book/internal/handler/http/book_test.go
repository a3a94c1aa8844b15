package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/pavila/library/pkg/errors"
	"github.com/pavila/library/pkg/events"
	"github.com/pavila/library/pkg/events/memory"
	"github.com/pavila/library/pkg/health"
	"github.com/pavila/library/pkg/httputil"
	"github.com/pavila/library/pkg/middleware"
	"github.com/pavila/library/services/book/internal/config"
	"github.com/pavila/library/services/book/internal/domain"
	"github.com/pavila/library/services/book/internal/event"
	"github.com/pavila/library/services/book/internal/service"
)

// ============================================================================
// Mocks
// ============================================================================

type mockBookRepository struct {
	mock.Mock
}

func (m *mockBookRepository) Create(ctx context.Context, book *domain.Book) error {
	return m.Called(ctx, book).Error(0)
}

func (m *mockBookRepository) GetByID(ctx context.Context, id int64) (*domain.Book, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Book), args.Error(1)
}

func (m *mockBookRepository) List(ctx context.Context, offset, limit int) ([]domain.Book, int, error) {
	args := m.Called(ctx, offset, limit)
	return args.Get(0).([]domain.Book), args.Int(1), args.Error(2)
}

func (m *mockBookRepository) Update(ctx context.Context, book *domain.Book) error {
	return m.Called(ctx, book).Error(0)
}

func (m *mockBookRepository) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockBookRepository) ExistsByID(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockBookRepository) UpdateAggregate(ctx context.Context, id int64, agg domain.Aggregate) error {
	return m.Called(ctx, id, agg).Error(0)
}

func (m *mockBookRepository) UpdateAverageRating(ctx context.Context, id int64, avg float64) error {
	return m.Called(ctx, id, avg).Error(0)
}

type mockReviewLister struct {
	mock.Mock
}

func (m *mockReviewLister) ListByBookID(ctx context.Context, bookID int64) ([]domain.ReviewSnapshot, error) {
	args := m.Called(ctx, bookID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ReviewSnapshot), args.Error(1)
}

// ============================================================================
// Helpers
// ============================================================================

type testEnv struct {
	repo    *mockBookRepository
	reviews *mockReviewLister
	bus     *memory.Bus
	router  http.Handler
}

func setup() *testEnv {
	return setupWithLimit(middleware.RateLimitConfig{})
}

func setupWithLimit(limit middleware.RateLimitConfig) *testEnv {
	logger := slog.New(slog.DiscardHandler)
	env := &testEnv{
		repo:    new(mockBookRepository),
		reviews: new(mockReviewLister),
		bus:     memory.NewBus(),
	}
	producer := event.NewProducer(events.NewPublisher(env.bus, event.SourceBookService, logger))
	svc := service.NewBookService(env.repo, env.reviews, producer, logger)
	info := config.Info{Message: "Welcome to the book service", Email: "books@library.local", Version: "1.2.0"}
	env.router = NewRouter(svc, info, health.NewHandler(), limit, logger)
	return env
}

func (e *testEnv) do(method, target string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *httputil.ErrorResponse {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return resp.Error
}

func validBook() map[string]any {
	return map[string]any{
		"title":           "Dune",
		"author":          "Frank Herbert",
		"publicationYear": "1965",
		"isbn":            "9780441013593",
	}
}

// ============================================================================
// Tests
// ============================================================================

func TestCreateBook_Created(t *testing.T) {
	env := setup()
	env.repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Book")).
		Run(func(args mock.Arguments) { args.Get(1).(*domain.Book).ID = 1 }).
		Return(nil)

	rec := env.do(http.MethodPost, "/api/books", validBook())

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(1), resp.Data["id"])
	assert.Nil(t, resp.Data["averageRating"])
	assert.Equal(t, float64(0), resp.Data["reviewCount"])
}

func TestCreateBook_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value any
	}{
		{"blank title", "title", "  "},
		{"long author", "author", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"},
		{"year too early", "publicationYear", "1899"},
		{"isbn letters", "isbn", "97804410135X3"},
		{"isbn wrong length", "isbn", "12345"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setup()
			body := validBook()
			body[tt.field] = tt.value

			rec := env.do(http.MethodPost, "/api/books", body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			errResp := decodeError(t, rec)
			assert.Equal(t, "VALIDATION_ERROR", errResp.Code)
			assert.Contains(t, errResp.Fields, tt.field)
			env.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestListBooks_Page(t *testing.T) {
	env := setup()
	env.repo.On("List", mock.Anything, 0, 20).Return([]domain.Book{{ID: 1, Title: "Dune"}}, 1, nil)

	rec := env.do(http.MethodGet, "/api/books", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data struct {
			Data       []domain.Book `json:"data"`
			TotalCount int           `json:"total_count"`
			Page       int           `json:"page"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data.Data, 1)
	assert.Equal(t, 1, resp.Data.TotalCount)
	assert.Equal(t, 1, resp.Data.Page)
}

func TestListBooks_EmptyPageIs404(t *testing.T) {
	env := setup()
	env.repo.On("List", mock.Anything, 20, 10).Return([]domain.Book{}, 0, nil)

	rec := env.do(http.MethodGet, "/api/books?page=3&per_page=10", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Code)
}

func TestGetBook_WithReviews(t *testing.T) {
	env := setup()
	avg := 4.0
	env.repo.On("GetByID", mock.Anything, int64(1)).
		Return(&domain.Book{ID: 1, Title: "Dune", AverageRating: &avg, ReviewCount: 1}, nil)
	env.reviews.On("ListByBookID", mock.Anything, int64(1)).
		Return([]domain.ReviewSnapshot{{ReviewID: 3, Rating: 4, Comment: "solid"}}, nil)

	rec := env.do(http.MethodGet, "/api/books/1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Dune", resp.Data["title"])
	assert.Equal(t, 4.0, resp.Data["averageRating"])
	assert.Len(t, resp.Data["reviews"], 1)
	assert.NotContains(t, resp.Data, "reviews_unavailable")
}

func TestGetBook_ReviewsUnavailable(t *testing.T) {
	env := setup()
	env.repo.On("GetByID", mock.Anything, int64(1)).Return(&domain.Book{ID: 1, Title: "Dune"}, nil)
	env.reviews.On("ListByBookID", mock.Anything, int64(1)).
		Return(nil, apperrors.ServiceUnavailable("review-service is unavailable"))

	rec := env.do(http.MethodGet, "/api/books/1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp.Data["reviews_unavailable"])
	assert.Equal(t, []any{}, resp.Data["reviews"])
}

func TestGetBook_InvalidID(t *testing.T) {
	env := setup()

	rec := env.do(http.MethodGet, "/api/books/abc", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PARAMETER", decodeError(t, rec).Code)
}

func TestUpdateBook_OK(t *testing.T) {
	env := setup()
	env.repo.On("GetByID", mock.Anything, int64(1)).Return(&domain.Book{ID: 1, Title: "Dune"}, nil)
	env.repo.On("Update", mock.Anything, mock.AnythingOfType("*domain.Book")).Return(nil)

	body := validBook()
	body["title"] = "Dune Messiah"
	rec := env.do(http.MethodPut, "/api/books/1", body)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data domain.Book `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Dune Messiah", resp.Data.Title)
}

func TestUpdateBook_NotFound(t *testing.T) {
	env := setup()
	env.repo.On("GetByID", mock.Anything, int64(9)).Return(nil, apperrors.NotFound("book", "9"))

	rec := env.do(http.MethodPut, "/api/books/9", validBook())

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteBook_NoContentAndEvent(t *testing.T) {
	env := setup()
	env.repo.On("Delete", mock.Anything, int64(1)).Return(nil)

	rec := env.do(http.MethodDelete, "/api/books/1", nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.Bytes())
	pending := env.bus.Pending(events.BookEventsTopic)
	require.Len(t, pending, 1)
	assert.Equal(t, string(events.TypeBookDeleted), pending[0].EventType)
	assert.Equal(t, "1", pending[0].AggregateID)
}

func TestExists_BareBoolean(t *testing.T) {
	env := setup()
	env.repo.On("ExistsByID", mock.Anything, int64(1)).Return(true, nil)
	env.repo.On("ExistsByID", mock.Anything, int64(2)).Return(false, nil)

	rec := env.do(http.MethodGet, "/api/1/exists", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `true`, rec.Body.String())

	rec = env.do(http.MethodGet, "/api/2/exists", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `false`, rec.Body.String())
}

func TestExists_StoreError(t *testing.T) {
	env := setup()
	env.repo.On("ExistsByID", mock.Anything, int64(1)).Return(false, errors.New("conn refused"))

	rec := env.do(http.MethodGet, "/api/1/exists", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestInfo(t *testing.T) {
	env := setup()

	rec := env.do(http.MethodGet, "/api/info", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Welcome to the book service","email":"books@library.local","version":"1.2.0"}`, rec.Body.String())
}

func TestHealthLive(t *testing.T) {
	env := setup()

	rec := env.do(http.MethodGet, "/health/live", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_AppliesToAPIOnly(t *testing.T) {
	env := setupWithLimit(middleware.RateLimitConfig{RPS: 0.001, Burst: 1})
	env.repo.On("ExistsByID", mock.Anything, int64(1)).Return(true, nil)

	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/1/exists", nil).Code)

	rec := env.do(http.MethodGet, "/api/1/exists", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", decodeError(t, rec).Code)

	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/health/live", nil).Code)
}
