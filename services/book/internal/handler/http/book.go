package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavila/library/pkg/httputil"
	"github.com/pavila/library/pkg/pagination"
	"github.com/pavila/library/pkg/validator"
	"github.com/pavila/library/services/book/internal/config"
	"github.com/pavila/library/services/book/internal/service"
)

const maxBodyBytes = 1 << 20

// BookHandler handles HTTP requests for book endpoints.
type BookHandler struct {
	service *service.BookService
	info    config.Info
	logger  *slog.Logger
}

// NewBookHandler creates a new book HTTP handler.
func NewBookHandler(svc *service.BookService, info config.Info, logger *slog.Logger) *BookHandler {
	return &BookHandler{
		service: svc,
		info:    info,
		logger:  logger,
	}
}

// --- Request DTOs ---

// BookRequest is the JSON request body for creating or replacing a book.
type BookRequest struct {
	Title           string `json:"title" validate:"notblank,max=100"`
	Author          string `json:"author" validate:"notblank,max=50"`
	PublicationYear string `json:"publicationYear" validate:"pubyear"`
	ISBN            string `json:"isbn" validate:"isbn_digits"`
}

func (req *BookRequest) toInput() *service.BookInput {
	return &service.BookInput{
		Title:           req.Title,
		Author:          req.Author,
		PublicationYear: req.PublicationYear,
		ISBN:            req.ISBN,
	}
}

// --- Handlers ---

// CreateBook handles POST /api/books
func (h *BookHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req BookRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	book, err := h.service.CreateBook(r.Context(), req.toInput())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, book)
}

// ListBooks handles GET /api/books?page=&per_page=
func (h *BookHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ListBooks(r.Context(), pagination.FromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, result)
}

// GetBook handles GET /api/books/{id}
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, "book id", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	details, err := h.service.GetBookDetails(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, details)
}

// UpdateBook handles PUT /api/books/{id}
func (h *BookHandler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, "book id", chi.URLParam(r, "id"))
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req BookRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	book, err := h.service.UpdateBook(r.Context(), id, req.toInput())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, book)
}

// DeleteBook handles DELETE /api/books/{id}
func (h *BookHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, "book id", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.DeleteBook(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Exists handles GET /api/{id}/exists. The body is a bare JSON boolean.
func (h *BookHandler) Exists(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, "book id", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	exists, err := h.service.Exists(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, exists)
}

// Info handles GET /api/info
func (h *BookHandler) Info(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.info)
}
