package model

import (
	"maps"
	"time"
)

// -----------------------------------------------------------------------------
// Messages
// -----------------------------------------------------------------------------

// Message is the domain value framed over the wire.
type Message struct {
	EventName string            // Logical event name (e.g., "message")
	Headers   map[string]string // Unique keys, order irrelevant
	Payload   string            // Opaque text payload
}

// NewMessage builds a message with empty headers.
func NewMessage(eventName, payload string) Message {
	return Message{
		EventName: eventName,
		Headers:   map[string]string{},
		Payload:   payload,
	}
}

// Equal reports structural equality. Nil and empty headers are equal.
func (m Message) Equal(other Message) bool {
	return m.EventName == other.EventName &&
		m.Payload == other.Payload &&
		maps.Equal(m.Headers, other.Headers)
}

// -----------------------------------------------------------------------------
// Events
// -----------------------------------------------------------------------------

// EventKind tags an Event.
type EventKind uint8

const (
	EventReceived EventKind = iota + 1
	EventFailed
)

// String returns the lowercase name of the kind.
func (k EventKind) String() string {
	switch k {
	case EventReceived:
		return "received"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is a connection occurrence delivered to subscribers.
// Message is set for EventReceived, Err for EventFailed.
type Event struct {
	Kind    EventKind
	Message Message
	Err     error
	At      time.Time // Local time the event was published
}

// Received wraps a decoded inbound message.
func Received(m Message) Event {
	return Event{Kind: EventReceived, Message: m, At: time.Now()}
}

// Failed wraps a failure from the receive path.
func Failed(err error) Event {
	return Event{Kind: EventFailed, Err: err, At: time.Now()}
}
