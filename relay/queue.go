package relay

import (
	"log"
	"time"

	"github.com/abdelmounim-dev/support-relay/metrics"
)

// QueueNotifier broadcasts the current set of unpaired sessions to every
// supervisor console so they can offer sessions for pairing. Triggered when
// an unpaired session appears, disappears, or gets paired.
type QueueNotifier struct {
	registry *ConnectionRegistry
	store    *SessionStore
}

// NewQueueNotifier wires the notifier to the shared registry and store.
func NewQueueNotifier(registry *ConnectionRegistry, store *SessionStore) *QueueNotifier {
	return &QueueNotifier{registry: registry, store: store}
}

// BroadcastQueueUpdate sends a SESSION_QUEUE_UPDATE to every supervisor
// with an open transport. One dead supervisor socket never stops delivery
// to the others.
func (q *QueueNotifier) BroadcastQueueUpdate() {
	update := q.snapshot()

	q.registry.ForEach(func(c Connection) bool {
		if !c.IsSupervisor() || c.Transport == nil || !c.Transport.IsOpen() {
			return true
		}
		if err := c.Transport.Send(update); err != nil {
			log.Printf("Queue update to supervisor %s failed: %v", c.ID, err)
		}
		return true
	})
	metrics.QueueBroadcasts.Inc()
}

// snapshot builds the queue update message from the waiting sessions.
func (q *QueueNotifier) snapshot() Message {
	waiting := q.store.Unpaired()
	now := time.Now()

	entries := make([]map[string]interface{}, 0, len(waiting))
	for _, sess := range waiting {
		entries = append(entries, map[string]interface{}{
			"sessionId":      sess.ID,
			"displayName":    sess.DisplayName,
			"createdAt":      sess.CreatedAt,
			"waitingSeconds": int(now.Sub(sess.CreatedAt).Seconds()),
		})
	}

	return NewMessage("", RoleServer, TypeQueueUpdate, map[string]interface{}{
		"count":    len(waiting),
		"sessions": entries,
	})
}
