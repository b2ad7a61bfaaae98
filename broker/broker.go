package broker

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// eventBuffer sizes the subscriber channel for both implementations.
const eventBuffer = 100

var errBrokerClosed = errors.New("broker: closed")

// Event is an archive record for one routed chat message, published for
// downstream consumers (analytics, audit, history backfill).
type Event struct {
	SessionID string                 `json:"session_id"`
	From      string                 `json:"from"`
	Kind      string                 `json:"kind"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// MarshalBinary implements encoding.BinaryMarshaler for Redis publishing.
func (e Event) MarshalBinary() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (e *Event) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, e)
}

// MessageBroker abstracts the archive-event feed. Implementations are
// selected at startup from configuration.
type MessageBroker interface {
	Publish(ctx context.Context, channel string, event Event) error
	Subscribe(ctx context.Context, channel string) (<-chan Event, error)
	Close() error
	Type() string
}
