package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavila/library/pkg/kafka"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want Type
	}{
		{"REVIEW_CREATED", TypeReviewCreated},
		{"REVIEW_DELETED", TypeReviewDeleted},
		{"RATING_UPDATE", TypeRatingUpdate},
		{"BOOK_DELETED", TypeBookDeleted},
		{"REVIEW_CREATE", TypeUnknown},
		{"review_created", TypeUnknown},
		{"", TypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseType(tt.in))
		})
	}
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "library.review.events", ReviewEventsTopic)
	assert.Equal(t, "library.book.events", BookEventsTopic)
}

func TestEnvelope_WireShape(t *testing.T) {
	env, err := LibraryEvent{BookID: 7, Type: TypeReviewCreated}.Envelope("review-service")
	require.NoError(t, err)

	assert.Equal(t, "REVIEW_CREATED", env.EventType)
	assert.Equal(t, "7", env.AggregateID)
	assert.Equal(t, "book", env.AggregateType)
	assert.Equal(t, "review-service", env.Source)
	assert.JSONEq(t, `{"bookId":7,"eventType":"REVIEW_CREATED"}`, string(env.Data))
}

func TestDecode(t *testing.T) {
	env, err := LibraryEvent{BookID: 42, Type: TypeBookDeleted}.Envelope("book-service")
	require.NoError(t, err)

	ev, err := Decode(env)
	require.NoError(t, err)
	assert.Equal(t, LibraryEvent{BookID: 42, Type: TypeBookDeleted}, ev)
}

func TestDecode_UnknownDiscriminant(t *testing.T) {
	env := &kafka.Event{EventType: "REVIEW_ARCHIVED", AggregateID: "3", Data: json.RawMessage(`{"bookId":3}`)}

	ev, err := Decode(env)
	require.NoError(t, err)
	assert.Equal(t, TypeUnknown, ev.Type)
	assert.Equal(t, int64(3), ev.BookID)
}

func TestDecode_FallsBackToAggregateID(t *testing.T) {
	env := &kafka.Event{EventType: "RATING_UPDATE", AggregateID: "19"}

	ev, err := Decode(env)
	require.NoError(t, err)
	assert.Equal(t, int64(19), ev.BookID)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  *kafka.Event
	}{
		{"bad payload", &kafka.Event{EventType: "REVIEW_CREATED", Data: json.RawMessage(`{"bookId":"seven"}`)}},
		{"bad aggregate id", &kafka.Event{EventType: "REVIEW_CREATED", AggregateID: "abc"}},
		{"no book id", &kafka.Event{EventType: "REVIEW_CREATED", Data: json.RawMessage(`{}`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.env)
			assert.Error(t, err)
		})
	}
}
