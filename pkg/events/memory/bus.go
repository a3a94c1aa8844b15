// Package memory is an in-process event channel with the same contract as
// the Kafka transport: publishing only enqueues, delivery happens later and
// may be repeated.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pavila/library/pkg/kafka"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("memory bus closed")

type record struct {
	topic string
	value []byte
}

// Bus queues marshaled envelopes per topic and delivers them to subscribers
// when Drain is called.
type Bus struct {
	mu         sync.Mutex
	subs       map[string][]kafka.Handler
	pending    []record
	delivered  []record
	publishErr error
	closed     bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]kafka.Handler)}
}

// Subscribe registers h for topic.
func (b *Bus) Subscribe(topic string, h kafka.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = append(b.subs[topic], h)
}

// FailPublishes makes every following Publish return err. Pass nil to reset.
func (b *Bus) FailPublishes(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publishErr = err
}

// Publish enqueues event on topic. Subscribers are not invoked.
func (b *Bus) Publish(_ context.Context, topic string, event *kafka.Event) error {
	data, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if b.publishErr != nil {
		return b.publishErr
	}
	b.pending = append(b.pending, record{topic: topic, value: data})
	return nil
}

// Pending returns the envelopes queued on topic and not yet delivered.
func (b *Bus) Pending(topic string) []*kafka.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return decodeAll(b.pending, topic)
}

// Delivered returns every envelope already handed to topic's subscribers.
func (b *Bus) Delivered(topic string) []*kafka.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return decodeAll(b.delivered, topic)
}

// Drain delivers queued envelopes in publication order until none remain,
// including those published by handlers during the drain. Handler errors are
// collected and returned; the failing envelope is still considered delivered.
func (b *Bus) Drain(ctx context.Context) error {
	var errs []error
	for {
		b.mu.Lock()
		if len(b.pending) == 0 {
			b.mu.Unlock()
			return errors.Join(errs...)
		}
		rec := b.pending[0]
		b.pending = b.pending[1:]
		b.delivered = append(b.delivered, rec)
		handlers := append([]kafka.Handler(nil), b.subs[rec.topic]...)
		b.mu.Unlock()

		errs = append(errs, deliver(ctx, rec, handlers)...)
	}
}

// Redeliver hands every envelope already delivered on topic to its
// subscribers again, simulating at-least-once redelivery.
func (b *Bus) Redeliver(ctx context.Context, topic string) error {
	b.mu.Lock()
	var recs []record
	for _, r := range b.delivered {
		if r.topic == topic {
			recs = append(recs, r)
		}
	}
	handlers := append([]kafka.Handler(nil), b.subs[topic]...)
	b.mu.Unlock()

	var errs []error
	for _, rec := range recs {
		errs = append(errs, deliver(ctx, rec, handlers)...)
	}
	return errors.Join(errs...)
}

// Close rejects further publishes.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func deliver(ctx context.Context, rec record, handlers []kafka.Handler) []error {
	event, err := kafka.UnmarshalEvent(rec.value)
	if err != nil {
		return []error{err}
	}
	var errs []error
	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", rec.topic, event.EventType, err))
		}
	}
	return errs
}

func decodeAll(recs []record, topic string) []*kafka.Event {
	var out []*kafka.Event
	for _, r := range recs {
		if r.topic != topic {
			continue
		}
		if e, err := kafka.UnmarshalEvent(r.value); err == nil {
			out = append(out, e)
		}
	}
	return out
}
