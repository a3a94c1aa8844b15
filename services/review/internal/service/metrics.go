package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes of the existence check guarding review creation.
const (
	existenceFound       = "found"
	existenceMissing     = "missing"
	existenceUnavailable = "unavailable"
)

var bookExistenceChecks = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "review_book_existence_checks_total",
		Help: "Book existence checks made before creating a review, by outcome.",
	},
	[]string{"outcome"},
)
