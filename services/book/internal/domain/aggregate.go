package domain

// Aggregate is the derived rating summary of a book.
type Aggregate struct {
	AverageRating float64
	ReviewCount   int
}

// ComputeAggregate derives the aggregate from a complete review snapshot.
// The average is the arithmetic mean rounded half-up to one decimal, 0.0
// for no reviews. It depends on nothing but the snapshot, so recomputing
// from the same reviews always yields the same result.
func ComputeAggregate(reviews []ReviewSnapshot) Aggregate {
	n := len(reviews)
	if n == 0 {
		return Aggregate{}
	}

	var sum int64
	for _, r := range reviews {
		sum += int64(r.Rating)
	}

	// Ratings are positive, so integer division floors: tenths is
	// floor(10*sum/n + 0.5) without going through floating point.
	tenths := (20*sum + int64(n)) / (2 * int64(n))
	return Aggregate{
		AverageRating: float64(tenths) / 10,
		ReviewCount:   n,
	}
}
