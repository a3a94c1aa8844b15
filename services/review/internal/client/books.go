// Package client holds the review service's synchronous view of the book
// service.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/pavila/library/pkg/errors"
	"github.com/pavila/library/pkg/httpclient"
	"github.com/pavila/library/pkg/logger"
)

const bookServiceName = "book-service"

// BookClient asks the book service whether a book exists.
type BookClient struct {
	doer    httpclient.Doer
	baseURL string
	timeout time.Duration
	logger  *slog.Logger
}

// NewBookClient creates a client for baseURL. Each Exists call is bounded by
// timeout; doer is normally a *httpclient.CircuitBreakerClient.
func NewBookClient(doer httpclient.Doer, baseURL string, timeout time.Duration, logger *slog.Logger) *BookClient {
	return &BookClient{
		doer:    doer,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		logger:  logger,
	}
}

// Exists calls GET /api/{id}/exists. Transport failures, timeouts and an
// open breaker come back as ServiceUnavailable errors; the caller decides
// what an unknown answer means.
func (c *BookClient) Exists(ctx context.Context, bookID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/api/%s/exists", c.baseURL, strconv.FormatInt(bookID, 10))

	var exists bool
	if err := httpclient.GetJSON(ctx, c.doer, url, bookServiceName, &exists); err != nil {
		if apperrors.IsNotFound(err) {
			return false, nil
		}
		logger.WithContext(ctx, c.logger).WarnContext(ctx, "book existence check failed",
			slog.Int64("book_id", bookID),
			slog.String("error", err.Error()),
		)
		return false, httpclient.AsUnavailable(err, bookServiceName)
	}
	return exists, nil
}
