package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavila/library/pkg/kafka"
)

func newEvent(t *testing.T, typ, aggregateID string) *kafka.Event {
	t.Helper()
	e, err := kafka.NewEvent(typ, aggregateID, "book", "test", map[string]string{"eventType": typ})
	require.NoError(t, err)
	return e
}

func TestBus_PublishOnlyEnqueues(t *testing.T) {
	bus := NewBus()
	called := false
	bus.Subscribe("t", func(context.Context, *kafka.Event) error {
		called = true
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), "t", newEvent(t, "REVIEW_CREATED", "1")))
	assert.False(t, called)
	assert.Len(t, bus.Pending("t"), 1)
	assert.Empty(t, bus.Pending("other"))
}

func TestBus_DrainDeliversInOrderIncludingCascades(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()
	var order []string

	bus.Subscribe("books", func(ctx context.Context, e *kafka.Event) error {
		order = append(order, "books:"+e.EventType)
		return bus.Publish(ctx, "reviews", newEvent(t, "CASCADE", e.AggregateID))
	})
	bus.Subscribe("reviews", func(_ context.Context, e *kafka.Event) error {
		order = append(order, "reviews:"+e.EventType)
		return nil
	})

	require.NoError(t, bus.Publish(ctx, "books", newEvent(t, "BOOK_DELETED", "7")))
	require.NoError(t, bus.Publish(ctx, "reviews", newEvent(t, "REVIEW_CREATED", "8")))
	require.NoError(t, bus.Drain(ctx))

	assert.Equal(t, []string{"books:BOOK_DELETED", "reviews:REVIEW_CREATED", "reviews:CASCADE"}, order)
	assert.Empty(t, bus.Pending("reviews"))
	assert.Len(t, bus.Delivered("reviews"), 2)
}

func TestBus_DrainCollectsErrors(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()
	boom := errors.New("boom")
	bus.Subscribe("t", func(context.Context, *kafka.Event) error { return boom })

	require.NoError(t, bus.Publish(ctx, "t", newEvent(t, "A", "1")))
	require.NoError(t, bus.Publish(ctx, "t", newEvent(t, "B", "2")))

	err := bus.Drain(ctx)
	require.ErrorIs(t, err, boom)
	assert.Len(t, bus.Delivered("t"), 2)
}

func TestBus_Redeliver(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()
	var ids []string
	bus.Subscribe("t", func(_ context.Context, e *kafka.Event) error {
		ids = append(ids, e.EventID)
		return nil
	})

	event := newEvent(t, "REVIEW_DELETED", "3")
	require.NoError(t, bus.Publish(ctx, "t", event))
	require.NoError(t, bus.Drain(ctx))
	require.NoError(t, bus.Redeliver(ctx, "t"))

	assert.Equal(t, []string{event.EventID, event.EventID}, ids)
}

func TestBus_FailuresAndClose(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()

	bus.FailPublishes(errors.New("full"))
	assert.Error(t, bus.Publish(ctx, "t", newEvent(t, "A", "1")))
	bus.FailPublishes(nil)
	assert.NoError(t, bus.Publish(ctx, "t", newEvent(t, "A", "1")))

	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Publish(ctx, "t", newEvent(t, "A", "1")), ErrClosed)
}
