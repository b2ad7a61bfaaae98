package integration

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdelmounim-dev/support-relay/legacy"
	"github.com/abdelmounim-dev/support-relay/relay"
)

const testTimeout = 5 * time.Second

// consoleStub records everything a supervisor console would have received.
type consoleStub struct {
	mu   sync.Mutex
	sent []relay.Message
}

func (c *consoleStub) IsOpen() bool { return true }

func (c *consoleStub) Send(m relay.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, m)
	return nil
}

func (c *consoleStub) messages() []relay.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]relay.Message(nil), c.sent...)
}

type relayFixture struct {
	registry *relay.ConnectionRegistry
	store    *relay.SessionStore
	router   *relay.Router
	notifier *relay.QueueNotifier
	server   *legacy.Server
}

// startRelay brings up the full relay core with a legacy server on an
// ephemeral port and returns once the listener is bound.
func startRelay(t *testing.T) *relayFixture {
	t.Helper()

	registry := relay.NewConnectionRegistry()
	store := relay.NewSessionStore()
	router := relay.NewRouter(registry, store, nil)
	notifier := relay.NewQueueNotifier(registry, store)
	server := legacy.NewServer(0, 16, registry, store, router, notifier)

	go func() {
		if err := server.Start(); err != nil {
			t.Errorf("legacy server exited: %v", err)
		}
	}()
	t.Cleanup(server.Shutdown)

	require.Eventually(t, func() bool {
		return server.Addr() != nil
	}, testTimeout, 10*time.Millisecond, "listener never bound")

	return &relayFixture{
		registry: registry,
		store:    store,
		router:   router,
		notifier: notifier,
		server:   server,
	}
}

// dialLegacy connects a raw stream client to the fixture's legacy port.
func dialLegacy(t *testing.T, f *relayFixture) *legacy.Codec {
	t.Helper()
	conn, err := net.DialTimeout("tcp", f.server.Addr().String(), testTimeout)
	require.NoError(t, err)
	codec := legacy.NewCodec(conn)
	t.Cleanup(func() { codec.Close() })
	return codec
}

// readFrames pumps inbound frames onto a channel so tests can select with
// a deadline instead of blocking on the stream.
func readFrames(codec *legacy.Codec) <-chan legacy.Frame {
	frames := make(chan legacy.Frame, 16)
	go func() {
		defer close(frames)
		for {
			f, err := codec.ReadFrame()
			if err != nil {
				return
			}
			frames <- f
		}
	}()
	return frames
}

func awaitFrame(t *testing.T, frames <-chan legacy.Frame) legacy.Frame {
	t.Helper()
	select {
	case f, ok := <-frames:
		require.True(t, ok, "stream closed before the expected frame arrived")
		return f
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for a frame")
		return nil
	}
}

func TestEndToEnd_ClientSupervisorConversation(t *testing.T) {
	f := startRelay(t)

	client := dialLegacy(t, f)
	frames := readFrames(client)

	// Client signs on and lands in the waiting queue.
	require.NoError(t, client.WriteFrame(legacy.ConnectRequest{DisplayName: "Alice"}))
	resp, ok := awaitFrame(t, frames).(legacy.ConnectResponse)
	require.True(t, ok, "expected ConnectResponse")
	require.True(t, resp.Success)
	require.NotEmpty(t, resp.SessionID)

	_, waiting := f.store.Get(resp.SessionID)
	require.True(t, waiting, "session exists after sign-on")

	// A supervisor console picks the session up.
	console := &consoleStub{}
	f.registry.Register(relay.Connection{
		ID:        "supervisor-1",
		Role:      relay.RoleSupervisor,
		Transport: console,
		SessionID: resp.SessionID,
	})
	sess, ok := f.store.Pair(resp.SessionID, "supervisor-1")
	require.True(t, ok)
	require.True(t, sess.IsPaired())

	// Client -> supervisor across the stream boundary.
	require.NoError(t, client.WriteFrame(legacy.TextMessage{
		SessionID:  resp.SessionID,
		SenderRole: "CLIENT",
		Content:    "my order never arrived",
		Timestamp:  time.Now(),
	}))
	require.Eventually(t, func() bool {
		for _, m := range console.messages() {
			if m.Type == relay.TypeMessage && m.Payload["text"] == "my order never arrived" {
				return true
			}
		}
		return false
	}, testTimeout, 10*time.Millisecond, "supervisor never saw the client message")

	// Supervisor -> client back over the same stream.
	reply := relay.NewMessage(resp.SessionID, relay.RoleSupervisor, relay.TypeMessage, map[string]interface{}{
		"text": "let me look that up for you",
	})
	require.True(t, f.router.Route("supervisor-1", reply))

	text, ok := awaitFrame(t, frames).(legacy.TextMessage)
	require.True(t, ok, "expected TextMessage")
	assert.Equal(t, resp.SessionID, text.SessionID)
	assert.Equal(t, "let me look that up for you", text.Content)
	assert.Equal(t, "SUPERVISOR", text.SenderRole)
}

func TestEndToEnd_ClientSignOffCleansUpAndNotifies(t *testing.T) {
	f := startRelay(t)

	client := dialLegacy(t, f)
	frames := readFrames(client)

	require.NoError(t, client.WriteFrame(legacy.ConnectRequest{DisplayName: "Bob"}))
	resp, ok := awaitFrame(t, frames).(legacy.ConnectResponse)
	require.True(t, ok)
	require.True(t, resp.Success)

	console := &consoleStub{}
	f.registry.Register(relay.Connection{
		ID:        "supervisor-1",
		Role:      relay.RoleSupervisor,
		Transport: console,
		SessionID: resp.SessionID,
	})
	_, ok = f.store.Pair(resp.SessionID, "supervisor-1")
	require.True(t, ok)

	require.NoError(t, client.WriteFrame(legacy.DisconnectRequest{}))

	require.Eventually(t, func() bool {
		_, stillThere := f.store.Get(resp.SessionID)
		return !stillThere
	}, testTimeout, 10*time.Millisecond, "session not removed after sign-off")

	require.Eventually(t, func() bool {
		for _, m := range console.messages() {
			if m.Type == relay.TypeDisconnect {
				return true
			}
		}
		return false
	}, testTimeout, 10*time.Millisecond, "supervisor never told about the disconnect")

	assert.Equal(t, 0, f.store.Count())
}

func TestEndToEnd_ShutdownNoticeReachesOpenClients(t *testing.T) {
	f := startRelay(t)

	client := dialLegacy(t, f)
	frames := readFrames(client)

	require.NoError(t, client.WriteFrame(legacy.ConnectRequest{DisplayName: "Carol"}))
	resp, ok := awaitFrame(t, frames).(legacy.ConnectResponse)
	require.True(t, ok)
	require.True(t, resp.Success)

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.server.Shutdown()
	}()

	// Drain frames until the shutdown notice shows up; queue updates or
	// other frames may precede it.
	deadline := time.After(testTimeout)
	var sawNotice bool
	for !sawNotice {
		select {
		case frame, open := <-frames:
			if !open {
				t.Fatal("stream closed before ShutdownNotice")
			}
			if _, isNotice := frame.(legacy.ShutdownNotice); isNotice {
				sawNotice = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for ShutdownNotice")
		}
	}

	select {
	case <-done:
	case <-time.After(testTimeout):
		t.Fatal("shutdown did not complete")
	}
}
