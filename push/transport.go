package push

import (
	"github.com/abdelmounim-dev/support-relay/relay"
)

// ConsoleTransport adapts a supervisor console to the relay.Transport
// contract: routing messages go out as JSON text frames.
type ConsoleTransport struct {
	session *ConsoleSession
}

// NewConsoleTransport wraps a console session for delivery.
func NewConsoleTransport(session *ConsoleSession) *ConsoleTransport {
	return &ConsoleTransport{session: session}
}

// IsOpen reports whether the console is still connected.
func (t *ConsoleTransport) IsOpen() bool {
	return t.session.IsOpen()
}

// Send serializes the routing message as a JSON frame.
func (t *ConsoleTransport) Send(m relay.Message) error {
	if !t.session.IsOpen() {
		return relay.ErrTransportClosed
	}
	return t.session.SafeWriteJSON(m)
}

var _ relay.Transport = (*ConsoleTransport)(nil)
