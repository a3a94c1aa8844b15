package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/pavila/library/pkg/database"
	"github.com/pavila/library/pkg/events"
	"github.com/pavila/library/pkg/health"
	"github.com/pavila/library/pkg/httpclient"
	pkgkafka "github.com/pavila/library/pkg/kafka"
	"github.com/pavila/library/pkg/tracing"
	"github.com/pavila/library/services/review/internal/client"
	"github.com/pavila/library/services/review/internal/config"
	"github.com/pavila/library/services/review/internal/event"
	handler "github.com/pavila/library/services/review/internal/handler/http"
	"github.com/pavila/library/services/review/internal/repository/postgres"
	"github.com/pavila/library/services/review/internal/service"
	"github.com/pavila/library/services/review/migrations"
)

const idempotencyTTL = 24 * time.Hour

// App wires together all dependencies and runs the review service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	bookEvents     *pkgkafka.Consumer
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, handler.ServiceName)

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	if err := producer.PingWithRetry(ctx, 3); err != nil {
		logger.Warn("kafka unreachable, continuing in degraded mode",
			slog.String("error", err.Error()),
		)
	} else {
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Idempotency store for redelivered book events.
	var (
		redisClient *redis.Client
		store       pkgkafka.IdempotencyStore
	)
	if redisCfg := cfg.Redis(); redisCfg.Enabled() {
		redisClient, err = database.NewRedisClient(ctx, redisCfg)
		if err != nil {
			_ = producer.Close()
			pool.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		store = pkgkafka.NewRedisIdempotencyStore(redisClient, event.ConsumerGroup, idempotencyTTL)
		logger.Info("redis idempotency store enabled", slog.String("addr", redisCfg.Addr()))
	} else {
		store = pkgkafka.NewMemoryIdempotencyStore(idempotencyTTL)
	}

	// Existence checks go through retries, then the breaker.
	bookDoer := httpclient.NewCircuitBreakerClient(httpclient.New(httpclient.DefaultConfig()), cfg.BookBreaker(), logger)
	books := client.NewBookClient(bookDoer, cfg.BookServiceURL, cfg.BookExistsTimeout(), logger)

	repo := postgres.NewReviewRepository(pool)
	publisher := events.NewPublisher(producer, event.SourceReviewService, logger)
	reviewService := service.NewReviewService(repo, books, event.NewProducer(publisher), logger)

	router := event.NewRouter(reviewService, logger)
	bookEvents := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:   cfg.KafkaBrokers,
		GroupID:   event.ConsumerGroup,
		Topic:     events.BookEventsTopic,
		MinBytes:  1,
		MaxBytes:  10e6,
		EnableDLQ: cfg.KafkaDLQEnabled,
	}, pkgkafka.IdempotentHandler(store, router.Dispatch, logger), logger)

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})
	if redisClient != nil {
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler.NewRouter(reviewService, cfg.Info(), healthHandler, cfg.RateLimit(), logger),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		producer:       producer,
		httpServer:     httpServer,
		bookEvents:     bookEvents,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and the book event consumer, then blocks until
// the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	go func() {
		if err := a.bookEvents.Start(ctx); err != nil {
			errCh <- fmt.Errorf("book events consumer: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown stops components in dependency order: HTTP first so no new
// events are produced, then the tracer, the consumer, the producer and
// finally the stores.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.bookEvents.Close(); err != nil {
		a.logger.Error("book events consumer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
