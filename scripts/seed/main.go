// Package main seeds a running library stack with books and reviews through
// the public HTTP APIs, then waits until every book's rating aggregate has
// caught up with its reviews. It doubles as a smoke test for the event flow
// between the two services.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"os"
	"time"

	pkgconfig "github.com/pavila/library/pkg/config"
	"github.com/pavila/library/pkg/httpclient"
	"github.com/pavila/library/pkg/logger"
)

type config struct {
	BookServiceURL   string        `env:"BOOK_SERVICE_URL" envDefault:"http://localhost:8081"`
	ReviewServiceURL string        `env:"REVIEW_SERVICE_URL" envDefault:"http://localhost:8082"`
	Books            int           `env:"SEED_BOOKS" envDefault:"10"`
	ReviewsPerBook   int           `env:"SEED_REVIEWS_PER_BOOK" envDefault:"5"`
	ConvergeTimeout  time.Duration `env:"SEED_CONVERGE_TIMEOUT" envDefault:"30s"`
	Seed             uint64        `env:"SEED_RANDOM" envDefault:"42"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
}

// --------------------------------------------------------------------------
// Seed data definitions
// --------------------------------------------------------------------------

type bookDef struct {
	title  string
	author string
	year   string
	isbn   string
}

var catalogue = []bookDef{
	{"Dune", "Frank Herbert", "1965", "9780441013593"},
	{"The Left Hand of Darkness", "Ursula K. Le Guin", "1969", "9780441478125"},
	{"Neuromancer", "William Gibson", "1984", "9780441569595"},
	{"The Name of the Rose", "Umberto Eco", "1980", "9780156001311"},
	{"Beloved", "Toni Morrison", "1987", "9781400033416"},
	{"The Remains of the Day", "Kazuo Ishiguro", "1989", "9780679731726"},
	{"Things Fall Apart", "Chinua Achebe", "1958", "0385474547"},
	{"One Hundred Years of Solitude", "Gabriel Garcia Marquez", "1967", "9780060883287"},
	{"The Road", "Cormac McCarthy", "2006", "9780307387899"},
	{"Wolf Hall", "Hilary Mantel", "2009", "9780312429980"},
}

var comments = []string{
	"Could not put it down.",
	"Slow start, strong finish.",
	"Not for me.",
	"Beautifully written.",
	"Overrated.",
	"Would read again.",
}

// --------------------------------------------------------------------------
// Wire shapes
// --------------------------------------------------------------------------

type envelope[T any] struct {
	Data T `json:"data"`
}

type book struct {
	ID            int64    `json:"id"`
	Title         string   `json:"title"`
	AverageRating *float64 `json:"averageRating"`
	ReviewCount   int      `json:"reviewCount"`
}

type review struct {
	ID     int64 `json:"reviewId"`
	Rating int   `json:"rating"`
}

// seeded is what the seeder created for one book.
type seeded struct {
	id      int64
	title   string
	ratings []int
}

func main() {
	var cfg config
	if err := pkgconfig.Load(&cfg); err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New("seed", cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute+cfg.ConvergeTimeout)
	defer cancel()

	s := &seeder{
		cfg:    cfg,
		client: httpclient.New(httpclient.DefaultConfig()),
		rng:    rand.New(rand.NewPCG(cfg.Seed, cfg.Seed)),
		log:    log,
	}

	books, err := s.seed(ctx)
	if err != nil {
		log.Error("seeding failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("seed data written", slog.Int("books", len(books)))

	if err := s.awaitConvergence(ctx, books); err != nil {
		log.Error("aggregates did not converge", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("all book aggregates converged")
}

type seeder struct {
	cfg    config
	client *httpclient.Client
	rng    *rand.Rand
	log    *slog.Logger
}

// seed creates the books, their reviews, and then exercises one rating update
// and one review deletion per book so every event type flows.
func (s *seeder) seed(ctx context.Context) ([]seeded, error) {
	out := make([]seeded, 0, s.cfg.Books)
	for i := 0; i < s.cfg.Books; i++ {
		def := catalogue[i%len(catalogue)]

		var created envelope[book]
		err := httpclient.SendJSON(ctx, s.client, http.MethodPost, s.cfg.BookServiceURL+"/api/books", "book-service",
			map[string]string{"title": def.title, "author": def.author, "publicationYear": def.year, "isbn": def.isbn},
			&created)
		if err != nil {
			return nil, fmt.Errorf("create book %q: %w", def.title, err)
		}

		b := seeded{id: created.Data.ID, title: def.title}
		var reviewIDs []int64
		for j := 0; j < s.cfg.ReviewsPerBook; j++ {
			rating := 1 + s.rng.IntN(5)
			var r envelope[review]
			err := httpclient.SendJSON(ctx, s.client, http.MethodPost, s.cfg.ReviewServiceURL+"/api/reviews", "review-service",
				map[string]any{"bookId": b.id, "rating": rating, "comment": comments[s.rng.IntN(len(comments))]},
				&r)
			if err != nil {
				return nil, fmt.Errorf("create review for book %d: %w", b.id, err)
			}
			reviewIDs = append(reviewIDs, r.Data.ID)
			b.ratings = append(b.ratings, rating)
		}

		if len(reviewIDs) >= 2 {
			rating := 1 + s.rng.IntN(5)
			err := httpclient.SendJSON(ctx, s.client, http.MethodPut, fmt.Sprintf("%s/api/reviews/%d", s.cfg.ReviewServiceURL, reviewIDs[0]),
				"review-service", map[string]any{"rating": rating, "comment": "Changed my mind."}, nil)
			if err != nil {
				return nil, fmt.Errorf("update review %d: %w", reviewIDs[0], err)
			}
			b.ratings[0] = rating

			last := len(reviewIDs) - 1
			err = httpclient.SendJSON(ctx, s.client, http.MethodDelete, fmt.Sprintf("%s/api/reviews/%d", s.cfg.ReviewServiceURL, reviewIDs[last]),
				"review-service", nil, nil)
			if err != nil {
				return nil, fmt.Errorf("delete review %d: %w", reviewIDs[last], err)
			}
			b.ratings = b.ratings[:last]
		}

		s.log.Debug("seeded book", slog.Int64("book_id", b.id), slog.Any("ratings", b.ratings))
		out = append(out, b)
	}
	return out, nil
}

// awaitConvergence polls every book until its aggregate matches the ratings
// the seeder left behind, or the timeout passes.
func (s *seeder) awaitConvergence(ctx context.Context, books []seeded) error {
	deadline := time.Now().Add(s.cfg.ConvergeTimeout)
	pending := books

	for len(pending) > 0 {
		var still []seeded
		for _, b := range pending {
			ok, err := s.converged(ctx, b)
			if err != nil {
				return err
			}
			if !ok {
				still = append(still, b)
			}
		}
		pending = still
		if len(pending) == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%d books still stale after %s", len(pending), s.cfg.ConvergeTimeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return nil
}

func (s *seeder) converged(ctx context.Context, b seeded) (bool, error) {
	var got envelope[book]
	if err := httpclient.GetJSON(ctx, s.client, fmt.Sprintf("%s/api/books/%d", s.cfg.BookServiceURL, b.id), "book-service", &got); err != nil {
		return false, fmt.Errorf("get book %d: %w", b.id, err)
	}

	want := expectedAverage(b.ratings)
	if got.Data.AverageRating == nil || got.Data.ReviewCount != len(b.ratings) || math.Abs(*got.Data.AverageRating-want) > 1e-9 {
		s.log.Debug("book not converged yet",
			slog.Int64("book_id", b.id),
			slog.Int("review_count", got.Data.ReviewCount),
			slog.Float64("want_average", want),
		)
		return false, nil
	}
	return true, nil
}

// expectedAverage is the mean rounded half-up to one decimal, 0 when empty.
func expectedAverage(ratings []int) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	n := len(ratings)
	return float64((20*sum+n)/(2*n)) / 10
}
