package event

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pavila/library/pkg/events"
	"github.com/pavila/library/pkg/events/memory"
	"github.com/pavila/library/pkg/kafka"
)

type mockDeleter struct {
	mock.Mock
}

func (m *mockDeleter) DeleteAllByBookID(ctx context.Context, bookID int64) error {
	return m.Called(ctx, bookID).Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestProducer_PublishesReviewEvents(t *testing.T) {
	bus := memory.NewBus()
	p := NewProducer(events.NewPublisher(bus, SourceReviewService, testLogger()))
	ctx := context.Background()

	assert.True(t, bool(p.ReviewCreated(ctx, 7)))
	assert.True(t, bool(p.RatingUpdated(ctx, 7)))
	assert.True(t, bool(p.ReviewDeleted(ctx, 8)))

	pending := bus.Pending(events.ReviewEventsTopic)
	require.Len(t, pending, 3)

	var got []events.LibraryEvent
	for _, env := range pending {
		assert.Equal(t, SourceReviewService, env.Source)
		ev, err := events.Decode(env)
		require.NoError(t, err)
		got = append(got, ev)
	}
	assert.Equal(t, []events.LibraryEvent{
		{BookID: 7, Type: events.TypeReviewCreated},
		{BookID: 7, Type: events.TypeRatingUpdate},
		{BookID: 8, Type: events.TypeReviewDeleted},
	}, got)
}

func TestProducer_TransportFailureNotEnqueued(t *testing.T) {
	bus := memory.NewBus()
	bus.FailPublishes(errors.New("broker unreachable"))
	p := NewProducer(events.NewPublisher(bus, SourceReviewService, testLogger()))

	assert.False(t, bool(p.ReviewCreated(context.Background(), 7)))
	assert.Empty(t, bus.Pending(events.ReviewEventsTopic))
}

func envelope(t *testing.T, typ events.Type, bookID int64) *kafka.Event {
	t.Helper()
	env, err := events.LibraryEvent{BookID: bookID, Type: typ}.Envelope("book-service")
	require.NoError(t, err)
	return env
}

func TestRouter_BookDeletedCascades(t *testing.T) {
	svc := new(mockDeleter)
	svc.On("DeleteAllByBookID", mock.Anything, int64(7)).Return(nil)

	r := NewRouter(svc, testLogger())
	require.NoError(t, r.Dispatch(context.Background(), envelope(t, events.TypeBookDeleted, 7)))
	svc.AssertExpectations(t)
}

func TestRouter_IgnoresOtherTypes(t *testing.T) {
	svc := new(mockDeleter)
	r := NewRouter(svc, testLogger())

	unknown, err := kafka.NewEvent("BOOK_ARCHIVED", "7", events.AggregateTypeBook, "book-service",
		map[string]any{"bookId": 7, "eventType": "BOOK_ARCHIVED"})
	require.NoError(t, err)

	assert.NoError(t, r.Dispatch(context.Background(), unknown))
	assert.NoError(t, r.Dispatch(context.Background(), envelope(t, events.TypeReviewCreated, 7)))
	svc.AssertNotCalled(t, "DeleteAllByBookID", mock.Anything, mock.Anything)
}

func TestRouter_CascadeErrorIsRetryable(t *testing.T) {
	svc := new(mockDeleter)
	svc.On("DeleteAllByBookID", mock.Anything, int64(7)).Return(errors.New("connection reset"))

	err := NewRouter(svc, testLogger()).Dispatch(context.Background(), envelope(t, events.TypeBookDeleted, 7))
	require.Error(t, err)
	assert.False(t, kafka.IsTerminal(err))
}
