package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/abdelmounim-dev/support-relay/relay"
)

// Store defines the interface for message-history persistence.
type Store interface {
	// Save appends a routed message to its session's history.
	Save(ctx context.Context, m relay.Message) error
	// Recent returns up to limit of the newest messages for a session,
	// oldest first.
	Recent(ctx context.Context, sessionID string, limit int) ([]relay.Message, error)
	// Purge removes a session's history.
	Purge(ctx context.Context, sessionID string) error
}

// RedisStore implements Store using one Redis list per session.
type RedisStore struct {
	client     *redis.Client
	ttl        time.Duration
	maxEntries int64
}

// NewRedisStore creates a new RedisStore. Each session list expires after
// ttl of inactivity and is trimmed to maxEntries.
func NewRedisStore(client *redis.Client, ttl time.Duration, maxEntries int) Store {
	return &RedisStore{
		client:     client,
		ttl:        ttl,
		maxEntries: int64(maxEntries),
	}
}

func historyKey(sessionID string) string {
	return fmt.Sprintf("history:%s", sessionID)
}

// Save appends the message and refreshes the list TTL.
func (s *RedisStore) Save(ctx context.Context, m relay.Message) error {
	if !m.HasValidSessionID() {
		return fmt.Errorf("history: message has no session id")
	}

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	key := historyKey(m.SessionID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -s.maxEntries, -1)
	pipe.Expire(ctx, key, s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// Recent returns the newest messages for a session, oldest first.
func (s *RedisStore) Recent(ctx context.Context, sessionID string, limit int) ([]relay.Message, error) {
	entries, err := s.client.LRange(ctx, historyKey(sessionID), int64(-limit), -1).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	messages := make([]relay.Message, 0, len(entries))
	for _, entry := range entries {
		var m relay.Message
		if err := json.Unmarshal([]byte(entry), &m); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history entry: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, nil
}

// Purge removes a session's history list.
func (s *RedisStore) Purge(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, historyKey(sessionID)).Err()
}
