// Package events defines the library domain events exchanged between the
// book and review services, and the typed layer over pkg/kafka that
// publishes and routes them.
package events

import (
	"fmt"
	"strconv"

	"github.com/pavila/library/pkg/kafka"
)

// Type is the closed set of event discriminants. Anything else read off the
// wire decodes to TypeUnknown.
type Type string

const (
	TypeReviewCreated Type = "REVIEW_CREATED"
	TypeReviewDeleted Type = "REVIEW_DELETED"
	TypeRatingUpdate  Type = "RATING_UPDATE"
	TypeBookDeleted   Type = "BOOK_DELETED"
	TypeUnknown       Type = "UNKNOWN"
)

// ParseType maps a wire discriminant to a Type.
func ParseType(s string) Type {
	switch t := Type(s); t {
	case TypeReviewCreated, TypeReviewDeleted, TypeRatingUpdate, TypeBookDeleted:
		return t
	default:
		return TypeUnknown
	}
}

// Topics. Review lifecycle events flow review -> book, deletions book -> review.
var (
	ReviewEventsTopic = kafka.Topic("review", "events")
	BookEventsTopic   = kafka.Topic("book", "events")
)

// AggregateTypeBook is the envelope aggregate type; every event is keyed by
// the book it concerns.
const AggregateTypeBook = "book"

// LibraryEvent carries only the book id and the discriminant. Receivers
// always re-read current state instead of trusting payload values.
type LibraryEvent struct {
	BookID int64 `json:"bookId"`
	Type   Type  `json:"eventType"`
}

func (e LibraryEvent) String() string {
	return fmt.Sprintf("%s(book=%d)", e.Type, e.BookID)
}

// Envelope wraps e for the wire.
func (e LibraryEvent) Envelope(source string) (*kafka.Event, error) {
	return kafka.NewEvent(string(e.Type), strconv.FormatInt(e.BookID, 10), AggregateTypeBook, source, e)
}

type payload struct {
	BookID    *int64 `json:"bookId"`
	EventType string `json:"eventType"`
}

// Decode reads a LibraryEvent out of an envelope. The envelope's event_type
// is the discriminant. The book id comes from the payload, falling back to
// the aggregate id. Unrecognised discriminants are not an error.
func Decode(env *kafka.Event) (LibraryEvent, error) {
	ev := LibraryEvent{Type: ParseType(env.EventType)}

	var p payload
	if len(env.Data) > 0 {
		if err := env.UnmarshalData(&p); err != nil {
			return ev, fmt.Errorf("decode %s payload: %w", env.EventType, err)
		}
	}

	switch {
	case p.BookID != nil:
		ev.BookID = *p.BookID
	case env.AggregateID != "":
		id, err := strconv.ParseInt(env.AggregateID, 10, 64)
		if err != nil {
			return ev, fmt.Errorf("decode %s: aggregate id %q is not a book id", env.EventType, env.AggregateID)
		}
		ev.BookID = id
	default:
		return ev, fmt.Errorf("decode %s: missing book id", env.EventType)
	}

	return ev, nil
}
