package legacy

import (
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/abdelmounim-dev/support-relay/metrics"
	"github.com/abdelmounim-dev/support-relay/relay"
)

type workerState int

const (
	awaitingConnect workerState = iota
	active
	closed
)

// Worker services one legacy connection: a small request/response state
// machine that translates wire frames into calls on the shared relay core.
// A fault while servicing one connection terminates only this worker.
type Worker struct {
	connectionID string
	codec        *Codec
	transport    *StreamTransport

	registry *relay.ConnectionRegistry
	store    *relay.SessionStore
	router   *relay.Router
	notifier *relay.QueueNotifier

	state     workerState
	sessionID string
}

// NewWorker prepares a worker for an accepted stream. The connection id is
// generated here, at accept time.
func NewWorker(codec *Codec, registry *relay.ConnectionRegistry, store *relay.SessionStore, router *relay.Router, notifier *relay.QueueNotifier) *Worker {
	return &Worker{
		connectionID: uuid.New().String(),
		codec:        codec,
		transport:    NewStreamTransport(codec),
		registry:     registry,
		store:        store,
		router:       router,
		notifier:     notifier,
		state:        awaitingConnect,
	}
}

// ConnectionID returns the id generated for this connection.
func (w *Worker) ConnectionID() string { return w.connectionID }

// Run processes frames until sign-off or stream failure. Blocking on the
// next inbound frame is local to this worker and never holds a shared lock.
func (w *Worker) Run() {
	defer w.cleanup()

	log.Printf("Legacy client connected: connectionId=%s addr=%s", w.connectionID, w.codec.RemoteAddr())
	metrics.TotalConnections.WithLabelValues("legacy").Inc()
	metrics.ActiveConnections.WithLabelValues("legacy").Inc()

	for w.state != closed {
		f, err := w.codec.ReadFrame()
		if err != nil {
			// Stream end or read failure: same cleanup as a sign-off, but
			// no acknowledgment is possible.
			log.Printf("Legacy stream ended: connectionId=%s: %v", w.connectionID, err)
			w.state = closed
			return
		}

		switch frame := f.(type) {
		case ConnectRequest:
			w.handleConnect(frame)
		case TextMessage:
			w.handleText(frame)
		case DisconnectRequest:
			w.handleDisconnect()
		case ConnectResponse, ShutdownNotice:
			// Server-to-client frames have no business arriving here.
			log.Printf("Ignoring server-bound frame from connectionId=%s", w.connectionID)
		default:
			log.Printf("Ignoring unknown frame %T from connectionId=%s", f, w.connectionID)
		}
	}
}

// handleConnect creates a session, registers the connection, and replies.
// A repeated ConnectRequest while already active is an explicit no-op.
func (w *Worker) handleConnect(req ConnectRequest) {
	if w.state != awaitingConnect {
		log.Printf("Ignoring repeated ConnectRequest: connectionId=%s", w.connectionID)
		return
	}

	sess, err := w.store.Create(w.connectionID, req.DisplayName)
	if err != nil {
		log.Printf("Session creation failed for connectionId=%s: %v", w.connectionID, err)
		w.reply(ConnectResponse{Success: false, Message: "could not create session"})
		return
	}
	w.sessionID = sess.ID

	w.registry.Register(relay.Connection{
		ID:          w.connectionID,
		Role:        relay.RoleClient,
		Transport:   w.transport,
		DisplayName: req.DisplayName,
		SessionID:   sess.ID,
	})

	w.reply(ConnectResponse{
		Success:   true,
		SessionID: sess.ID,
		Message:   "Connected. Session ID: " + sess.ID,
	})

	// A new unpaired session is on the queue now.
	w.notifier.BroadcastQueueUpdate()
	w.state = active

	log.Printf("Session created for legacy client: sessionId=%s connectionId=%s", sess.ID, w.connectionID)
}

// handleText routes one chat line to the paired supervisor.
func (w *Worker) handleText(frame TextMessage) {
	if w.state != active {
		log.Printf("Ignoring TextMessage before connect: connectionId=%s", w.connectionID)
		return
	}

	ts := frame.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	m := relay.Message{
		SessionID: w.sessionID,
		From:      relay.RoleClient,
		Type:      relay.TypeMessage,
		Payload: map[string]interface{}{
			"text":      frame.Content,
			"timestamp": ts.Format(time.RFC3339),
		},
		Timestamp: ts,
	}

	if !w.router.Route(w.connectionID, m) {
		// Not a fault: typically no supervisor paired yet. Waiting still
		// counts as activity, so the session does not expire mid-queue.
		// Routed messages are touched by the router itself.
		log.Printf("Message not routed: sessionId=%s", w.sessionID)
		w.store.Touch(w.sessionID)
	}
}

// handleDisconnect runs the sign-off path and acknowledges the close.
func (w *Worker) handleDisconnect() {
	if w.state != active {
		log.Printf("Ignoring DisconnectRequest before connect: connectionId=%s", w.connectionID)
		return
	}

	log.Printf("Legacy client signed off: connectionId=%s", w.connectionID)
	w.state = closed
}

// cleanup tears down whatever was established, in every exit path. Each
// step is best-effort; the worker exits regardless.
func (w *Worker) cleanup() {
	if w.sessionID != "" {
		w.router.NotifyDisconnect(w.connectionID)
		w.store.Remove(w.sessionID)
		w.registry.Remove(w.connectionID)
		w.notifier.BroadcastQueueUpdate()
	}
	w.transport.Close()
	metrics.ActiveConnections.WithLabelValues("legacy").Dec()
}

func (w *Worker) reply(resp ConnectResponse) {
	if err := w.codec.WriteFrame(resp); err != nil {
		log.Printf("Failed to send ConnectResponse to connectionId=%s: %v", w.connectionID, err)
	}
}
