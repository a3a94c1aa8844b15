package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pavila/library/pkg/kafka"
	"github.com/pavila/library/pkg/logger"
)

// HandlerFunc reacts to one event for bookID.
type HandlerFunc func(ctx context.Context, bookID int64) error

// Router maps discriminants to handlers. Discriminants without a handler,
// TypeUnknown included, are logged and acknowledged so newer producers never
// break older consumers.
type Router struct {
	handlers map[Type]HandlerFunc
	logger   *slog.Logger
}

// NewRouter creates an empty router.
func NewRouter(logger *slog.Logger) *Router {
	return &Router{
		handlers: make(map[Type]HandlerFunc),
		logger:   logger,
	}
}

// Handle registers h for t. Registering TypeUnknown panics.
func (r *Router) Handle(t Type, h HandlerFunc) *Router {
	if t == TypeUnknown {
		panic("events: cannot route TypeUnknown")
	}
	r.handlers[t] = h
	return r
}

// Routes returns the registered discriminants.
func (r *Router) Routes() []Type {
	out := make([]Type, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	return out
}

// Dispatch is a kafka.Handler. An unrouted discriminant is dropped with a
// warning before its payload is read, so payload shapes of event types this
// consumer does not know never fail delivery. A routed event whose payload
// cannot be decoded is terminal.
func (r *Router) Dispatch(ctx context.Context, env *kafka.Event) error {
	log := logger.WithContext(ctx, r.logger)

	h, ok := r.handlers[ParseType(env.EventType)]
	if !ok {
		log.WarnContext(ctx, "ignoring event with unhandled type",
			slog.String("event_type", env.EventType),
			slog.String("aggregate_id", env.AggregateID),
		)
		return nil
	}

	ev, err := Decode(env)
	if err != nil {
		return kafka.Terminal(err)
	}

	log.InfoContext(ctx, "event received",
		slog.String("event_type", string(ev.Type)),
		slog.Int64("book_id", ev.BookID),
	)
	if err := h(ctx, ev.BookID); err != nil {
		return fmt.Errorf("handle %s: %w", ev, err)
	}
	return nil
}
