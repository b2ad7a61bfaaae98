package legacy

import (
	"fmt"
	"sync/atomic"

	"github.com/abdelmounim-dev/support-relay/relay"
)

// StreamTransport adapts one legacy stream to the relay.Transport contract.
// Routed messages are translated into the frames an old client understands.
type StreamTransport struct {
	codec  *Codec
	closed atomic.Bool
}

// NewStreamTransport wraps a codec for delivery.
func NewStreamTransport(codec *Codec) *StreamTransport {
	return &StreamTransport{codec: codec}
}

// IsOpen reports whether the stream is still usable.
func (t *StreamTransport) IsOpen() bool {
	return !t.closed.Load()
}

// Send translates a routing message to the legacy wire format. Legacy
// clients only know TextMessage frames, so server notices arrive as text
// from SERVER.
func (t *StreamTransport) Send(m relay.Message) error {
	if t.closed.Load() {
		return relay.ErrTransportClosed
	}

	var f Frame
	switch m.Type {
	case relay.TypeMessage:
		f = TextMessage{
			SessionID:  m.SessionID,
			SenderRole: string(m.From),
			Content:    payloadText(m, "text"),
			Timestamp:  m.Timestamp,
		}
	case relay.TypeError:
		f = TextMessage{
			SessionID:  m.SessionID,
			SenderRole: string(relay.RoleServer),
			Content:    payloadText(m, "error"),
			Timestamp:  m.Timestamp,
		}
	case relay.TypeDisconnect:
		f = TextMessage{
			SessionID:  m.SessionID,
			SenderRole: string(relay.RoleServer),
			Content:    fmt.Sprintf("%s disconnected", payloadText(m, "disconnected")),
			Timestamp:  m.Timestamp,
		}
	case relay.TypeConnect:
		f = ConnectResponse{
			Success:   true,
			SessionID: m.SessionID,
			Message:   "Connected. Session ID: " + m.SessionID,
		}
	default:
		// Queue updates target supervisor consoles, never legacy clients.
		return fmt.Errorf("legacy: unsupported message type %q", m.Type)
	}

	if err := t.codec.WriteFrame(f); err != nil {
		t.closed.Store(true)
		return err
	}
	return nil
}

// Close marks the transport dead and closes the stream. Safe to call more
// than once.
func (t *StreamTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	return t.codec.Close()
}

func payloadText(m relay.Message, key string) string {
	if m.Payload == nil {
		return ""
	}
	if v, ok := m.Payload[key].(string); ok {
		return v
	}
	return ""
}

var _ relay.Transport = (*StreamTransport)(nil)
