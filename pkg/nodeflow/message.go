package nodeflow

import (
	"maps"

	"github.com/google/uuid"
)

// Message is the immutable envelope passed between nodes.
//
// A Message is never changed after construction. Nodes that need a different
// payload or metadata build a new Message with WithPayload or WithMetadata, so
// one Message value can be shared safely by every branch it is delivered to.
type Message struct {
	id       string
	payload  any
	metadata map[string]any
}

// NewMessage creates a message with a fresh id and empty metadata.
func NewMessage(payload any) Message {
	return Message{
		id:       uuid.NewString(),
		payload:  payload,
		metadata: map[string]any{},
	}
}

// NewMessageWithMetadata creates a message with a fresh id.
// The metadata map is copied; later changes by the caller are not visible.
func NewMessageWithMetadata(payload any, metadata map[string]any) Message {
	return NewMessageWithID(uuid.NewString(), payload, metadata)
}

// NewMessageWithID creates a message that keeps the supplied id verbatim.
// The metadata map is copied.
func NewMessageWithID(id string, payload any, metadata map[string]any) Message {
	return Message{
		id:       id,
		payload:  payload,
		metadata: copyMetadata(metadata),
	}
}

// ID returns the message id.
func (m Message) ID() string {
	return m.id
}

// Payload returns the message payload.
func (m Message) Payload() any {
	return m.payload
}

// Metadata returns a copy of the message metadata.
func (m Message) Metadata() map[string]any {
	return copyMetadata(m.metadata)
}

// Get returns a single metadata value without copying the map.
func (m Message) Get(key string) (any, bool) {
	v, ok := m.metadata[key]
	return v, ok
}

// Len returns the number of metadata entries.
func (m Message) Len() int {
	return len(m.metadata)
}

// WithMetadata returns a new message with a fresh id, the same payload and
// metadata extended with key set to value.
func (m Message) WithMetadata(key string, value any) Message {
	md := copyMetadata(m.metadata)
	md[key] = value
	return Message{
		id:       uuid.NewString(),
		payload:  m.payload,
		metadata: md,
	}
}

// WithPayload returns a new message with a fresh id, the given payload and a
// copy of the receiver's metadata.
func (m Message) WithPayload(payload any) Message {
	return Message{
		id:       uuid.NewString(),
		payload:  payload,
		metadata: copyMetadata(m.metadata),
	}
}

func copyMetadata(md map[string]any) map[string]any {
	out := make(map[string]any, len(md))
	maps.Copy(out, md)
	return out
}
