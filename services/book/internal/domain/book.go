package domain

import "time"

// Book is a catalogue entry. AverageRating and ReviewCount are derived from
// the review service and written only by aggregate recomputation; book
// mutations never touch them. AverageRating stays nil until the first
// recomputation.
type Book struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	PublicationYear string    `json:"publicationYear"`
	ISBN            string    `json:"isbn"`
	AverageRating   *float64  `json:"averageRating"`
	ReviewCount     int       `json:"reviewCount"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// ReviewSnapshot is one review as returned by the review-list RPC.
type ReviewSnapshot struct {
	ReviewID int64  `json:"reviewId"`
	Rating   int    `json:"rating"`
	Comment  string `json:"comment"`
}

// BookDetails is a book together with its current reviews. When the review
// service could not be reached Reviews is empty and ReviewsUnavailable is
// set.
type BookDetails struct {
	*Book
	Reviews            []ReviewSnapshot `json:"reviews"`
	ReviewsUnavailable bool             `json:"reviews_unavailable,omitempty"`
}
