package push

import (
	"errors"
	"log"
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/abdelmounim-dev/support-relay/config"
	"github.com/abdelmounim-dev/support-relay/metrics"
	"github.com/abdelmounim-dev/support-relay/relay"
)

// Upgrader for websocket connections
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// consoleCommand is one inbound frame from a supervisor console.
type consoleCommand struct {
	Action    string `json:"action"` // "pair", "message", "disconnect"
	SessionID string `json:"sessionId,omitempty"`
	Text      string `json:"text,omitempty"`
}

// Handler serves the supervisor console endpoint: it upgrades connections,
// registers them with the shared relay core, and translates console
// commands into pairing and routing calls.
type Handler struct {
	registry     *relay.ConnectionRegistry
	store        *relay.SessionStore
	router       *relay.Router
	notifier     *relay.QueueNotifier
	jwtValidator *JWTValidator
	authConfig   *config.AuthConfig
	pushConfig   *config.PushConfig
}

// NewHandler creates a new supervisor console handler. jwtValidator may be
// nil when auth is disabled.
func NewHandler(registry *relay.ConnectionRegistry, store *relay.SessionStore, router *relay.Router, notifier *relay.QueueNotifier, jwtValidator *JWTValidator, authConfig *config.AuthConfig, pushConfig *config.PushConfig) *Handler {
	return &Handler{
		registry:     registry,
		store:        store,
		router:       router,
		notifier:     notifier,
		jwtValidator: jwtValidator,
		authConfig:   authConfig,
		pushConfig:   pushConfig,
	}
}

// HandleWebSocket handles incoming supervisor console connections.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	var claims *ConsoleClaims
	var err error

	// --- Handshake Authentication ---
	if h.authConfig.Enabled {
		if h.jwtValidator == nil {
			log.Printf("Auth Error: Auth is enabled but JWT validator is not initialized.")
			http.Error(w, "Internal server configuration error", http.StatusInternalServerError)
			return
		}

		tokenString := r.URL.Query().Get(h.authConfig.TokenQueryParam)
		if tokenString == "" {
			log.Printf("Auth Error: Missing token in request from %s", r.RemoteAddr)
			metrics.AuthFailures.WithLabelValues("missing_token").Inc()
			http.Error(w, "Missing authentication token", http.StatusUnauthorized)
			return
		}

		claims, err = h.jwtValidator.ValidateToken(r.Context(), tokenString)
		if err != nil {
			log.Printf("Auth Error: Invalid token from %s. Reason: %v", r.RemoteAddr, err)
			metrics.AuthFailures.WithLabelValues(authFailureReason(err)).Inc()
			http.Error(w, "Invalid authentication token", http.StatusUnauthorized)
			return
		}
		metrics.AuthSuccess.Inc()
		log.Printf("Supervisor authenticated successfully. Subject: %s", claims.Subject)
	}
	// --- End Handshake Authentication ---

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	// Use subject from JWT as the connection id if available.
	var connectionID string
	if claims != nil && claims.Subject != "" {
		connectionID = claims.Subject
	} else {
		connectionID = uuid.New().String()
	}

	session := NewConsoleSession(connectionID, conn, h.pushConfig, claims)
	session.StartTimers()
	conn.SetPongHandler(session.GetPongHandler())
	conn.SetReadLimit(int64(h.pushConfig.MessageSizeLimit))

	h.registry.Register(relay.Connection{
		ID:        connectionID,
		Role:      relay.RoleSupervisor,
		Transport: NewConsoleTransport(session),
	})
	metrics.TotalConnections.WithLabelValues("push").Inc()
	metrics.ActiveConnections.WithLabelValues("push").Inc()
	log.Printf("Supervisor console connected: connectionId=%s", connectionID)

	defer func() {
		h.router.NotifyDisconnect(connectionID)
		h.registry.Remove(connectionID)
		session.Close(websocket.CloseNormalClosure, "Console disconnected")
		metrics.ActiveConnections.WithLabelValues("push").Dec()
		h.notifier.BroadcastQueueUpdate()
		log.Printf("Supervisor console disconnected: connectionId=%s", connectionID)
	}()

	// Tell the console who it is, then give it the current queue.
	if err := session.SafeWriteJSON(map[string]string{"connection_id": connectionID}); err != nil {
		log.Printf("Failed to send connection id to %s: %v", connectionID, err)
		return
	}
	h.notifier.BroadcastQueueUpdate()

	for {
		var cmd consoleCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) &&
				!errors.Is(err, net.ErrClosed) {
				log.Printf("Read error from console %s: %v", connectionID, err)
			}
			return
		}
		session.UpdateActivity()

		switch cmd.Action {
		case "pair":
			h.handlePair(connectionID, cmd.SessionID)
		case "message":
			h.handleMessage(connectionID, cmd)
		case "disconnect":
			return // defer runs the cleanup
		default:
			h.router.SendError(connectionID, "unknown action: "+cmd.Action)
		}
	}
}

// authFailureReason maps a validation error to its metrics label.
func authFailureReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingScope):
		return "missing_scope"
	case errors.Is(err, ErrTokenRevoked):
		return "revoked_token"
	default:
		return "invalid_token"
	}
}

// handlePair attaches the console to a waiting session.
func (h *Handler) handlePair(connectionID, sessionID string) {
	sess, ok := h.store.Pair(sessionID, connectionID)
	if !ok {
		h.router.SendError(connectionID, "session not found: "+sessionID)
		return
	}

	// Attach the session to the console's registry record so routing can
	// resolve it from either direction.
	if conn, found := h.registry.Get(connectionID); found {
		h.registry.Register(conn.WithSessionID(sess.ID))
	}

	metrics.SessionsPaired.Inc()
	log.Printf("Supervisor %s paired to session %s", connectionID, sess.ID)

	// Confirm to the console and tell the waiting client.
	if conn, found := h.registry.Get(connectionID); found && conn.Transport != nil {
		if err := conn.Transport.Send(relay.ConnectResponseMessage(sess.ID)); err != nil {
			log.Printf("Pairing confirmation to %s failed: %v", connectionID, err)
		}
	}
	if client, found := h.registry.Get(sess.ClientConnectionID); found && client.Transport != nil {
		notice := relay.NewMessage(sess.ID, relay.RoleServer, relay.TypeMessage, map[string]interface{}{
			"text": "A supervisor has joined the conversation.",
		})
		if err := client.Transport.Send(notice); err != nil {
			log.Printf("Pairing notice to client %s failed: %v", client.ID, err)
		}
	}

	// The session left the queue.
	h.notifier.BroadcastQueueUpdate()
}

// handleMessage routes one supervisor chat line to the paired client.
func (h *Handler) handleMessage(connectionID string, cmd consoleCommand) {
	m := relay.NewMessage(cmd.SessionID, relay.RoleSupervisor, relay.TypeMessage, map[string]interface{}{
		"text": cmd.Text,
	})
	if !h.router.Route(connectionID, m) {
		h.router.SendError(connectionID, "message could not be delivered")
	}
}
