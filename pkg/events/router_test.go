package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavila/library/pkg/kafka"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func envelope(t *testing.T, typ Type, bookID int64) *kafka.Event {
	t.Helper()
	env, err := LibraryEvent{BookID: bookID, Type: typ}.Envelope("test")
	require.NoError(t, err)
	return env
}

func TestRouter_DispatchesByType(t *testing.T) {
	var got []string
	record := func(name string) HandlerFunc {
		return func(_ context.Context, bookID int64) error {
			got = append(got, name)
			assert.Equal(t, int64(7), bookID)
			return nil
		}
	}

	r := NewRouter(newTestLogger()).
		Handle(TypeReviewCreated, record("count")).
		Handle(TypeReviewDeleted, record("count")).
		Handle(TypeRatingUpdate, record("rating"))

	ctx := context.Background()
	require.NoError(t, r.Dispatch(ctx, envelope(t, TypeReviewCreated, 7)))
	require.NoError(t, r.Dispatch(ctx, envelope(t, TypeRatingUpdate, 7)))
	require.NoError(t, r.Dispatch(ctx, envelope(t, TypeReviewDeleted, 7)))

	assert.Equal(t, []string{"count", "rating", "count"}, got)
	assert.ElementsMatch(t, []Type{TypeReviewCreated, TypeReviewDeleted, TypeRatingUpdate}, r.Routes())
}

func TestRouter_UnknownAndUnroutedAreDropped(t *testing.T) {
	called := false
	r := NewRouter(newTestLogger()).Handle(TypeBookDeleted, func(context.Context, int64) error {
		called = true
		return nil
	})

	ctx := context.Background()
	assert.NoError(t, r.Dispatch(ctx, &kafka.Event{EventType: "BOOK_ARCHIVED", AggregateID: "1"}))
	assert.NoError(t, r.Dispatch(ctx, envelope(t, TypeReviewCreated, 1)))
	assert.False(t, called)
}

func TestRouter_UnroutedPayloadIsNeverDecoded(t *testing.T) {
	called := false
	r := NewRouter(newTestLogger()).Handle(TypeBookDeleted, func(context.Context, int64) error {
		called = true
		return nil
	})

	tests := []struct {
		name string
		env  *kafka.Event
	}{
		{"book id as string", &kafka.Event{EventType: "BOOK_RENAMED", Data: json.RawMessage(`{"bookId":"7"}`)}},
		{"no book id", &kafka.Event{EventType: "AUTHOR_ADDED", Data: json.RawMessage(`{"authorId":3}`)}},
		{"malformed json", &kafka.Event{EventType: "SHELF_MOVED", Data: json.RawMessage(`{not json`)}},
		{"known type without route", &kafka.Event{EventType: "REVIEW_CREATED", AggregateID: "abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, r.Dispatch(context.Background(), tt.env))
		})
	}
	assert.False(t, called)
}

func TestRouter_UndecodableIsTerminal(t *testing.T) {
	r := NewRouter(newTestLogger()).Handle(TypeBookDeleted, func(context.Context, int64) error { return nil })

	err := r.Dispatch(context.Background(), &kafka.Event{EventType: "BOOK_DELETED", AggregateID: "not-a-number"})
	require.Error(t, err)
	assert.True(t, kafka.IsTerminal(err))
}

func TestRouter_HandlerErrorKeepsClassification(t *testing.T) {
	base := errors.New("connection refused")
	r := NewRouter(newTestLogger()).
		Handle(TypeBookDeleted, func(context.Context, int64) error { return base }).
		Handle(TypeReviewCreated, func(context.Context, int64) error { return kafka.Terminal(base) })

	err := r.Dispatch(context.Background(), envelope(t, TypeBookDeleted, 2))
	require.ErrorIs(t, err, base)
	assert.False(t, kafka.IsTerminal(err))

	err = r.Dispatch(context.Background(), envelope(t, TypeReviewCreated, 2))
	assert.True(t, kafka.IsTerminal(err))
}

func TestRouter_HandleUnknownPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewRouter(newTestLogger()).Handle(TypeUnknown, func(context.Context, int64) error { return nil })
	})
}
