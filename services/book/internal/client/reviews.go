// Package client calls the review service's review-list RPC.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pavila/library/pkg/httpclient"
	"github.com/pavila/library/pkg/logger"
	"github.com/pavila/library/services/book/internal/domain"
)

const reviewServiceName = "review-service"

// ReviewClient fetches the current reviews of a book.
type ReviewClient struct {
	doer    httpclient.Doer
	baseURL string
	timeout time.Duration
	logger  *slog.Logger
}

// NewReviewClient creates a client for baseURL with a per-call timeout.
func NewReviewClient(doer httpclient.Doer, baseURL string, timeout time.Duration, logger *slog.Logger) *ReviewClient {
	return &ReviewClient{
		doer:    doer,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		logger:  logger,
	}
}

// ListByBookID calls GET /api/reviews/{bookId}. A null body is an empty
// list. Transport failures, timeouts and an open breaker come back as
// ServiceUnavailable; error responses keep the classification the review
// service sent.
func (c *ReviewClient) ListByBookID(ctx context.Context, bookID int64) ([]domain.ReviewSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/api/reviews/%d", c.baseURL, bookID)

	var reviews []domain.ReviewSnapshot
	if err := httpclient.GetJSON(ctx, c.doer, url, reviewServiceName, &reviews); err != nil {
		logger.WithContext(ctx, c.logger).WarnContext(ctx, "review list fetch failed",
			slog.Int64("book_id", bookID),
			slog.String("error", err.Error()),
		)
		return nil, httpclient.AsUnavailable(err, reviewServiceName)
	}
	if reviews == nil {
		reviews = []domain.ReviewSnapshot{}
	}
	return reviews, nil
}
