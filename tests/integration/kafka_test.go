package integration

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdelmounim-dev/support-relay/broker"
	"github.com/abdelmounim-dev/support-relay/config"
	"github.com/abdelmounim-dev/support-relay/relay"
)

// Needs a running Kafka cluster; gated like the Redis tests, with
// KAFKA_BROKERS pointing at the bootstrap servers.
func TestKafkaArchiveFeedRoundTrip(t *testing.T) {
	if os.Getenv("INTEGRATION") == "" {
		t.Skip("Skipping integration test: set INTEGRATION env var to run")
	}
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		t.Skip("Skipping Kafka test: set KAFKA_BROKERS to run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	kafkaBroker, err := broker.NewKafkaBroker(config.KafkaConfig{
		Brokers:         strings.Split(brokers, ","),
		GroupID:         "relay-integration-" + time.Now().Format("150405.000"),
		PublishRetries:  3,
		FlushIntervalMs: 100,
	})
	require.NoError(t, err)
	defer kafkaBroker.Close()

	topic := "chat-archive-integration"

	// Subscribe blocks until the group has a partition assignment, so the
	// publish below cannot race the join.
	events, err := kafkaBroker.Subscribe(ctx, topic)
	require.NoError(t, err)

	event := broker.Event{
		SessionID: "kafka-" + time.Now().Format("150405.000"),
		From:      string(relay.RoleClient),
		Kind:      string(relay.TypeMessage),
		Payload:   map[string]interface{}{"text": "archived via kafka"},
		Timestamp: time.Now(),
	}
	require.NoError(t, kafkaBroker.Publish(ctx, topic, event))

	for {
		select {
		case got, ok := <-events:
			require.True(t, ok, "event stream closed early")
			if got.SessionID != event.SessionID {
				continue // stale record from an earlier run
			}
			assert.Equal(t, event.Kind, got.Kind)
			assert.Equal(t, event.From, got.From)
			assert.Equal(t, "archived via kafka", got.Payload["text"])
			return
		case <-ctx.Done():
			t.Fatal("timed out waiting for the archive event")
		}
	}
}
