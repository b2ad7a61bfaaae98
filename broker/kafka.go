package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/cenkalti/backoff/v4"

	"github.com/abdelmounim-dev/support-relay/config"
)

const (
	publishInitialBackoff = 100 * time.Millisecond
	publishMaxBackoff     = 5 * time.Second
	subscribeReadyTimeout = 10 * time.Second
)

// KafkaBroker carries the archive feed on a Kafka topic. Events for one
// session share a partition key, so a downstream consumer sees each
// session's history in order.
type KafkaBroker struct {
	cfg           config.KafkaConfig
	producer      sarama.SyncProducer
	consumerGroup sarama.ConsumerGroup
	mu            sync.RWMutex
	closed        bool
}

// NewKafkaBroker connects the producer and consumer group described by cfg.
func NewKafkaBroker(cfg config.KafkaConfig) (*KafkaBroker, error) {
	sc := sarama.NewConfig()
	sc.Version = sarama.V4_0_0_0

	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = cfg.PublishRetries
	sc.Producer.Return.Successes = true
	sc.Producer.Compression = sarama.CompressionSnappy
	sc.Producer.Flush.Frequency = time.Duration(cfg.FlushIntervalMs) * time.Millisecond

	sc.Consumer.Return.Errors = true
	sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	sc.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		producer.Close()
		return nil, fmt.Errorf("kafka consumer group %q: %w", cfg.GroupID, err)
	}

	return &KafkaBroker{
		cfg:           cfg,
		producer:      producer,
		consumerGroup: consumerGroup,
	}, nil
}

// Publish sends one archive event, keyed by session id so per-session
// ordering survives partitioning. Transient broker faults are retried with
// exponential backoff up to the configured attempt count.
func (b *KafkaBroker) Publish(ctx context.Context, channel string, event Event) error {
	if b.isClosed() {
		return errBrokerClosed
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode archive event: %w", err)
	}

	record := &sarama.ProducerMessage{
		Topic:     channel,
		Key:       sarama.StringEncoder(event.SessionID),
		Value:     sarama.ByteEncoder(data),
		Timestamp: event.Timestamp,
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewExponentialBackOff(
				backoff.WithInitialInterval(publishInitialBackoff),
				backoff.WithMaxInterval(publishMaxBackoff),
			),
			uint64(b.cfg.PublishRetries),
		),
		ctx,
	)

	return backoff.RetryNotify(
		func() error {
			_, _, err := b.producer.SendMessage(record)
			return err
		},
		policy,
		func(err error, d time.Duration) {
			log.Printf("Retrying archive publish for session %s: %v (next attempt in %s)", event.SessionID, err, d)
		},
	)
}

// Subscribe joins the consumer group on channel and streams decoded archive
// events until ctx is cancelled. It blocks until the group holds its first
// partition assignment, so callers never publish into the window between
// "subscribed" and "consuming".
func (b *KafkaBroker) Subscribe(ctx context.Context, channel string) (<-chan Event, error) {
	if b.isClosed() {
		return nil, errBrokerClosed
	}

	events := make(chan Event, eventBuffer)
	handler := newArchiveFeedHandler(events)

	go func() {
		defer close(events)
		for {
			// Consume returns on every rebalance; loop until cancelled.
			err := b.consumerGroup.Consume(ctx, []string{channel}, handler)
			if ctx.Err() != nil || errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return
			}
			if err != nil {
				log.Printf("Archive feed consume error: %v", err)
				return
			}
		}
	}()

	go func() {
		for err := range b.consumerGroup.Errors() {
			log.Printf("Archive feed consumer error: %v", err)
		}
	}()

	select {
	case <-handler.ready:
		return events, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(subscribeReadyTimeout):
		return nil, fmt.Errorf("timed out waiting for a partition assignment on %s", channel)
	}
}

// Close shuts down the producer and consumer group. Safe to call more than
// once.
func (b *KafkaBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	producerErr := b.producer.Close()
	consumerErr := b.consumerGroup.Close()
	if producerErr != nil {
		return fmt.Errorf("close kafka producer: %w", producerErr)
	}
	if consumerErr != nil {
		return fmt.Errorf("close kafka consumer group: %w", consumerErr)
	}
	return nil
}

// Type returns the broker kind for metrics labels.
func (b *KafkaBroker) Type() string { return "kafka" }

func (b *KafkaBroker) isClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

// archiveFeedHandler adapts the consumer-group callbacks to an event channel.
type archiveFeedHandler struct {
	events chan<- Event
	ready  chan struct{}
	once   sync.Once
}

func newArchiveFeedHandler(events chan<- Event) *archiveFeedHandler {
	return &archiveFeedHandler{
		events: events,
		ready:  make(chan struct{}),
	}
}

// Setup signals readiness on the first partition assignment.
func (h *archiveFeedHandler) Setup(sarama.ConsumerGroupSession) error {
	h.once.Do(func() { close(h.ready) })
	return nil
}

func (h *archiveFeedHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim drains one partition claim. Undecodable records are marked
// and skipped; the feed is advisory and must not wedge on one bad record.
func (h *archiveFeedHandler) ConsumeClaim(cgs sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for record := range claim.Messages() {
		var event Event
		if err := json.Unmarshal(record.Value, &event); err != nil {
			log.Printf("Archive event decode error: %v", err)
			cgs.MarkMessage(record, "")
			continue
		}

		select {
		case h.events <- event:
			cgs.MarkMessage(record, "")
		case <-cgs.Context().Done():
			return nil
		}
	}
	return nil
}
