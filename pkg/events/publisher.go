package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/pavila/library/pkg/kafka"
	"github.com/pavila/library/pkg/logger"
)

// Enqueued reports whether the local transport accepted an event. It says
// nothing about delivery to, or processing by, any consumer.
type Enqueued bool

// Writer is the transport a Publisher hands envelopes to. *kafka.Producer and
// *memory.Bus implement it.
type Writer interface {
	Publish(ctx context.Context, topic string, event *kafka.Event) error
}

const defaultEnqueueTimeout = 2 * time.Second

// Publisher turns LibraryEvents into envelopes and hands them to a Writer
// without waiting for any consumer.
type Publisher struct {
	writer  Writer
	source  string
	logger  *slog.Logger
	timeout time.Duration
}

// NewPublisher creates a publisher stamping envelopes with source.
func NewPublisher(w Writer, source string, logger *slog.Logger) *Publisher {
	return &Publisher{
		writer:  w,
		source:  source,
		logger:  logger,
		timeout: defaultEnqueueTimeout,
	}
}

// Publish enqueues ev on topic. It is detached from the caller's
// cancellation so a request finishing right after its write does not drop
// the event, and it never returns an error: failures are logged and
// reported as Enqueued(false).
func (p *Publisher) Publish(ctx context.Context, topic string, ev LibraryEvent) Enqueued {
	log := logger.WithContext(ctx, p.logger).With(
		slog.String("topic", topic),
		slog.String("event_type", string(ev.Type)),
		slog.Int64("book_id", ev.BookID),
	)

	env, err := ev.Envelope(p.source)
	if err != nil {
		log.ErrorContext(ctx, "failed to build event envelope", slog.String("error", err.Error()))
		return false
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		env.WithCorrelationID(id)
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	if err := p.writer.Publish(pctx, topic, env); err != nil {
		log.ErrorContext(ctx, "event not enqueued",
			slog.String("event_id", env.EventID),
			slog.String("error", err.Error()),
		)
		return false
	}

	log.InfoContext(ctx, "event enqueued", slog.String("event_id", env.EventID))
	return true
}
