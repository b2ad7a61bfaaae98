package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/go-redis/redis/v8"
)

// RedisBroker implements MessageBroker using Redis pub/sub. It can share
// the client used by the history store.
type RedisBroker struct {
	client *redis.Client
	mu     sync.RWMutex
	closed bool
}

// NewRedisBroker creates a Redis-backed message broker.
func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

// Publish sends an event to the specified channel.
func (b *RedisBroker) Publish(ctx context.Context, channel string, event Event) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return errBrokerClosed
	}
	b.mu.RUnlock()

	return b.client.Publish(ctx, channel, event).Err()
}

// Subscribe starts listening for events on the specified channel. The
// returned channel is closed when ctx is cancelled or the subscription
// drops.
func (b *RedisBroker) Subscribe(ctx context.Context, channel string) (<-chan Event, error) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return nil, errBrokerClosed
	}
	b.mu.RUnlock()

	pubsub := b.client.Subscribe(ctx, channel)

	// Receive forces the subscription to be established before we return.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	events := make(chan Event, eventBuffer)

	go func() {
		defer close(events)
		defer pubsub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-pubsub.Channel():
				if !ok {
					return
				}

				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					log.Printf("Event decode error: %v", err)
					continue
				}

				select {
				case events <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events, nil
}

// Close marks the broker closed. The shared Redis client is owned by the
// caller and is not closed here.
func (b *RedisBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Type returns the broker kind for metrics labels.
func (b *RedisBroker) Type() string { return "redis" }
