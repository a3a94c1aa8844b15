package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/pavila/library/pkg/errors"
)

const (
	MinRating        = 1
	MaxRating        = 5
	MaxCommentLength = 100
)

// Review is a rating of one book. BookID is a weak reference: it is checked
// against the book service when the review is created and never again.
type Review struct {
	ID        int64     `json:"reviewId"`
	BookID    int64     `json:"bookId"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Summary is the review-list RPC representation consumed by the book service.
type Summary struct {
	ReviewID int64  `json:"reviewId"`
	Rating   int    `json:"rating"`
	Comment  string `json:"comment"`
}

// Summary returns r as served by GET /api/reviews/{bookId}.
func (r *Review) Summary() Summary {
	return Summary{ReviewID: r.ID, Rating: r.Rating, Comment: r.Comment}
}

// Change records which fields an update actually modified.
type Change struct {
	Rating  bool
	Comment bool
}

// None reports whether the update left the review as it was.
func (c Change) None() bool {
	return !c.Rating && !c.Comment
}

// Apply sets rating and comment on r, comparing by value, and reports what
// changed. UpdatedAt moves only when something did.
func (r *Review) Apply(rating int, comment string, now time.Time) Change {
	c := Change{
		Rating:  r.Rating != rating,
		Comment: r.Comment != comment,
	}
	if c.None() {
		return c
	}
	r.Rating, r.Comment, r.UpdatedAt = rating, comment, now
	return c
}

// ValidateContent checks the rating range and comment length shared by
// create and update.
func ValidateContent(rating int, comment string) error {
	if rating < MinRating || rating > MaxRating {
		return apperrors.InvalidInput(fmt.Sprintf("rating must be between %d and %d", MinRating, MaxRating))
	}
	if strings.TrimSpace(comment) == "" {
		return apperrors.InvalidInput("comment must not be blank")
	}
	if utf8.RuneCountInString(comment) > MaxCommentLength {
		return apperrors.InvalidInput(fmt.Sprintf("comment must not exceed %d characters", MaxCommentLength))
	}
	return nil
}
