package history

import (
	"context"
	"fmt"
	"log"

	"github.com/abdelmounim-dev/support-relay/broker"
	"github.com/abdelmounim-dev/support-relay/metrics"
	"github.com/abdelmounim-dev/support-relay/relay"
)

// Service is the router's archive collaborator: it persists each routed
// message to the store and publishes an archive event on the broker for
// downstream consumers. Both halves are best-effort from the router's point
// of view; Service reports the store failure and only logs the broker one.
type Service struct {
	store   Store
	broker  broker.MessageBroker
	channel string
}

// NewService wires the archive service. broker may be nil when no event
// feed is configured.
func NewService(store Store, b broker.MessageBroker, channel string) *Service {
	return &Service{store: store, broker: b, channel: channel}
}

// Archive implements relay.Archiver.
func (s *Service) Archive(ctx context.Context, m relay.Message) error {
	if err := s.store.Save(ctx, m); err != nil {
		return fmt.Errorf("history save failed: %w", err)
	}

	if s.broker != nil {
		event := broker.Event{
			SessionID: m.SessionID,
			From:      string(m.From),
			Kind:      string(m.Type),
			Payload:   m.Payload,
			Timestamp: m.Timestamp,
		}
		if err := s.broker.Publish(ctx, s.channel, event); err != nil {
			// The archive feed is advisory; the stored copy is the record.
			log.Printf("Failed to publish archive event for session %s: %v", m.SessionID, err)
		} else {
			metrics.MessagesArchived.WithLabelValues(s.broker.Type()).Inc()
		}
	}
	return nil
}

var _ relay.Archiver = (*Service)(nil)
