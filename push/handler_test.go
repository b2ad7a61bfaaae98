package push

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdelmounim-dev/support-relay/config"
	"github.com/abdelmounim-dev/support-relay/relay"
)

// stubTransport records what a waiting client would have received.
type stubTransport struct {
	mu   sync.Mutex
	sent []relay.Message
}

func (s *stubTransport) IsOpen() bool { return true }

func (s *stubTransport) Send(m relay.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, m)
	return nil
}

func (s *stubTransport) messages() []relay.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]relay.Message(nil), s.sent...)
}

type handlerHarness struct {
	registry *relay.ConnectionRegistry
	store    *relay.SessionStore
	url      string
}

func startHandlerHarness(t *testing.T) *handlerHarness {
	t.Helper()

	registry := relay.NewConnectionRegistry()
	store := relay.NewSessionStore()
	router := relay.NewRouter(registry, store, nil)
	notifier := relay.NewQueueNotifier(registry, store)
	handler := NewHandler(registry, store, router, notifier, nil, &config.AuthConfig{}, testPushConfig())

	srv := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	t.Cleanup(srv.Close)

	return &handlerHarness{
		registry: registry,
		store:    store,
		url:      "ws" + strings.TrimPrefix(srv.URL, "http"),
	}
}

// dialConsole connects a supervisor console and consumes the greeting and
// the initial queue snapshot.
func (h *handlerHarness) dialConsole(t *testing.T) (*websocket.Conn, string, relay.Message) {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(h.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var hello map[string]string
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&hello))
	require.NotEmpty(t, hello["connection_id"])

	queue := readConsoleMessage(t, conn)
	require.Equal(t, relay.TypeQueueUpdate, queue.Type)
	return conn, hello["connection_id"], queue
}

func readConsoleMessage(t *testing.T, conn *websocket.Conn) relay.Message {
	t.Helper()
	var m relay.Message
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func TestHandler_PairCommand(t *testing.T) {
	h := startHandlerHarness(t)

	clientTransport := &stubTransport{}
	sess, err := h.store.Create("client-1", "Alice")
	require.NoError(t, err)
	h.registry.Register(relay.Connection{
		ID:        "client-1",
		Role:      relay.RoleClient,
		Transport: clientTransport,
		SessionID: sess.ID,
	})

	conn, connectionID, queue := h.dialConsole(t)
	assert.EqualValues(t, 1, queue.Payload["count"], "the waiting session is on the queue snapshot")

	require.NoError(t, conn.WriteJSON(consoleCommand{Action: "pair", SessionID: sess.ID}))

	confirm := readConsoleMessage(t, conn)
	assert.Equal(t, relay.TypeConnect, confirm.Type)
	assert.Equal(t, sess.ID, confirm.SessionID)

	refreshed := readConsoleMessage(t, conn)
	assert.Equal(t, relay.TypeQueueUpdate, refreshed.Type)
	assert.EqualValues(t, 0, refreshed.Payload["count"], "pairing takes the session off the queue")

	paired, ok := h.store.Get(sess.ID)
	require.True(t, ok)
	assert.Equal(t, connectionID, paired.SupervisorConnectionID)

	record, ok := h.registry.Get(connectionID)
	require.True(t, ok)
	assert.Equal(t, sess.ID, record.SessionID)

	assert.Eventually(t, func() bool {
		for _, m := range clientTransport.messages() {
			if m.Type == relay.TypeMessage && m.Payload["text"] == "A supervisor has joined the conversation." {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond, "waiting client never told a supervisor joined")
}

func TestHandler_MessageCommandRoutesToClient(t *testing.T) {
	h := startHandlerHarness(t)

	clientTransport := &stubTransport{}
	sess, err := h.store.Create("client-1", "Alice")
	require.NoError(t, err)
	h.registry.Register(relay.Connection{
		ID:        "client-1",
		Role:      relay.RoleClient,
		Transport: clientTransport,
		SessionID: sess.ID,
	})

	conn, _, _ := h.dialConsole(t)
	require.NoError(t, conn.WriteJSON(consoleCommand{Action: "pair", SessionID: sess.ID}))
	readConsoleMessage(t, conn) // pairing confirmation
	readConsoleMessage(t, conn) // queue update

	require.NoError(t, conn.WriteJSON(consoleCommand{
		Action:    "message",
		SessionID: sess.ID,
		Text:      "how can I help?",
	}))

	assert.Eventually(t, func() bool {
		for _, m := range clientTransport.messages() {
			if m.Type == relay.TypeMessage && m.From == relay.RoleSupervisor && m.Payload["text"] == "how can I help?" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond, "client never received the supervisor's line")
}

func TestHandler_PairUnknownSession(t *testing.T) {
	h := startHandlerHarness(t)

	conn, _, queue := h.dialConsole(t)
	assert.EqualValues(t, 0, queue.Payload["count"])

	require.NoError(t, conn.WriteJSON(consoleCommand{Action: "pair", SessionID: "ghost"}))

	errMsg := readConsoleMessage(t, conn)
	assert.Equal(t, relay.TypeError, errMsg.Type)
	assert.Equal(t, "session not found: ghost", errMsg.Payload["error"])
	assert.Equal(t, 0, h.store.Count(), "pairing a ghost session must not create one")
}

func TestHandler_UnknownAction(t *testing.T) {
	h := startHandlerHarness(t)
	conn, _, _ := h.dialConsole(t)

	require.NoError(t, conn.WriteJSON(consoleCommand{Action: "shout"}))

	errMsg := readConsoleMessage(t, conn)
	assert.Equal(t, relay.TypeError, errMsg.Type)
	assert.Equal(t, "unknown action: shout", errMsg.Payload["error"])
}

func TestHandler_DisconnectCommandCleansUp(t *testing.T) {
	h := startHandlerHarness(t)
	conn, connectionID, _ := h.dialConsole(t)

	_, ok := h.registry.Get(connectionID)
	require.True(t, ok)

	require.NoError(t, conn.WriteJSON(consoleCommand{Action: "disconnect"}))

	assert.Eventually(t, func() bool {
		_, stillThere := h.registry.Get(connectionID)
		return !stillThere
	}, 2*time.Second, 10*time.Millisecond, "console not removed after sign-off")
}
