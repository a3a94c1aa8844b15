package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recomputation modes.
const (
	modeRatingAndCount = "rating_and_count"
	modeRatingOnly     = "rating_only"
)

// Recomputation outcomes.
const (
	outcomeApplied     = "applied"
	outcomeFetchFailed = "fetch_failed"
	outcomeBookMissing = "book_missing"
	outcomeStoreError  = "store_error"
)

var aggregateRecomputations = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "book_aggregate_recomputations_total",
		Help: "Aggregate recomputations triggered by review events, by mode and outcome.",
	},
	[]string{"mode", "outcome"},
)
