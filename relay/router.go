package relay

import (
	"context"
	"log"
	"time"

	"github.com/abdelmounim-dev/support-relay/metrics"
)

const archiveTimeout = 5 * time.Second

// Archiver is the external storage collaborator for routed messages.
// Archiving is best-effort: a failure is logged and never aborts delivery.
type Archiver interface {
	Archive(ctx context.Context, m Message) error
}

// Router resolves the paired counterpart of a sending connection and
// delivers messages to its transport. Every failure path is reported as a
// boolean "not routed" or swallowed outright; no fault ever escapes to the
// calling transport handler.
type Router struct {
	registry *ConnectionRegistry
	store    *SessionStore
	archive  Archiver // may be nil
}

// NewRouter wires the router to the shared registry and session store.
// archive may be nil when message history is disabled.
func NewRouter(registry *ConnectionRegistry, store *SessionStore, archive Archiver) *Router {
	return &Router{
		registry: registry,
		store:    store,
		archive:  archive,
	}
}

// Route delivers m from the sending connection to its paired counterpart.
// Returns false when the sender is unknown, the session is missing or
// unpaired, the counterpart is gone, or the transport write fails. On
// success the session activity is refreshed and the message is archived
// best-effort.
func (r *Router) Route(senderConnectionID string, m Message) bool {
	sender, ok := r.registry.Get(senderConnectionID)
	if !ok {
		metrics.MessagesUnrouted.WithLabelValues("unknown_sender").Inc()
		return false
	}

	// The sender's registered session wins; fall back to the message's own
	// session id for the window before the registry record was updated.
	sessionID := sender.SessionID
	if !nonBlank(sessionID) {
		sessionID = m.SessionID
	}
	sess, ok := r.store.Get(sessionID)
	if !ok {
		metrics.MessagesUnrouted.WithLabelValues("unknown_session").Inc()
		return false
	}

	targetID, ok := sess.OtherParty(senderConnectionID)
	if !ok {
		metrics.MessagesUnrouted.WithLabelValues("unpaired").Inc()
		return false
	}

	target, ok := r.registry.Get(targetID)
	if !ok {
		metrics.MessagesUnrouted.WithLabelValues("unknown_target").Inc()
		return false
	}

	if !r.deliver(target, m) {
		metrics.MessagesUnrouted.WithLabelValues("delivery_failed").Inc()
		return false
	}

	r.store.Touch(sess.ID)
	metrics.MessagesRouted.Inc()

	if r.archive != nil {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := r.archive.Archive(ctx, m); err != nil {
			log.Printf("Failed to archive message for session %s: %v", sess.ID, err)
		}
	}
	return true
}

// NotifyDisconnect tells the counterpart of connectionID's session that the
// other party left. Best-effort: failures are swallowed so disconnect
// cleanup can always proceed.
func (r *Router) NotifyDisconnect(connectionID string) {
	conn, ok := r.registry.Get(connectionID)
	if !ok || !conn.HasSession() {
		return
	}
	sess, ok := r.store.Get(conn.SessionID)
	if !ok {
		return
	}
	targetID, ok := sess.OtherParty(connectionID)
	if !ok {
		return
	}
	target, ok := r.registry.Get(targetID)
	if !ok {
		return
	}
	if !r.deliver(target, DisconnectMessage(sess.ID, conn.Role)) {
		log.Printf("Disconnect notice for session %s not delivered to %s", sess.ID, targetID)
	}
}

// SendError delivers a server ERROR message directly to one connection.
// Silently does nothing when the connection is absent or the write fails.
func (r *Router) SendError(connectionID, text string) {
	conn, ok := r.registry.Get(connectionID)
	if !ok {
		return
	}
	r.deliver(conn, ErrorMessage(conn.SessionID, text))
}

// deliver writes to the target transport outside any store lock, so a slow
// or dead peer cannot stall unrelated sessions.
func (r *Router) deliver(target Connection, m Message) bool {
	if target.Transport == nil || !target.Transport.IsOpen() {
		return false
	}
	if err := target.Transport.Send(m); err != nil {
		log.Printf("Transport write to %s failed: %v", target.ID, err)
		return false
	}
	return true
}
