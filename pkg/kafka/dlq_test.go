package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDLQTopic(t *testing.T) {
	assert.Equal(t, "library.dlq", DLQTopicPrefix)
	assert.Equal(t, "library.dlq.library.review.events", DLQTopic("library.review.events"))
}

func TestDeadLetterMessage_Headers(t *testing.T) {
	original := kafka.Message{
		Topic:     "library.book.events",
		Partition: 2,
		Offset:    41,
		Key:       []byte("7"),
		Value:     []byte(`{"event_type":"BOOK_DELETED"}`),
		Headers:   []kafka.Header{{Key: "event_type", Value: []byte("BOOK_DELETED")}},
	}

	msg := deadLetterMessage(original, errors.New("delete reviews: connection refused"), "review-service-book-events")

	assert.Equal(t, "library.dlq.library.book.events", msg.Topic)
	assert.Equal(t, original.Key, msg.Key)
	assert.Equal(t, original.Value, msg.Value)
	assert.Equal(t, "BOOK_DELETED", headerValue(msg.Headers, "event_type"))
	assert.Equal(t, "library.book.events", headerValue(msg.Headers, "dlq.original_topic"))
	assert.Equal(t, "2", headerValue(msg.Headers, "dlq.original_partition"))
	assert.Equal(t, "41", headerValue(msg.Headers, "dlq.original_offset"))
	assert.Equal(t, "review-service-book-events", headerValue(msg.Headers, "dlq.consumer_group"))
	assert.Equal(t, "delete reviews: connection refused", headerValue(msg.Headers, "dlq.error"))
}

func TestDLQProducer_Publish(t *testing.T) {
	w := &recordingWriter{}
	d := &DLQProducer{writer: w, logger: testLogger()}

	err := d.Publish(context.Background(), kafka.Message{Topic: "library.review.events", Offset: 3}, nil, "g")
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "library.dlq.library.review.events", w.msgs[0].Topic)
	assert.Empty(t, headerValue(w.msgs[0].Headers, "dlq.error"))

	w.err = errors.New("broker down")
	require.Error(t, d.Publish(context.Background(), kafka.Message{Topic: "x"}, nil, "g"))
}
