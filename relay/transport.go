package relay

import "errors"

// ErrTransportClosed is returned by Send when the peer is no longer
// reachable. Transports may also return their own write errors; the router
// treats any Send failure the same way.
var ErrTransportClosed = errors.New("relay: transport closed")

// Transport abstracts one live endpoint for delivery, isolating the core
// from whether the peer speaks the legacy stream protocol or WebSocket.
// Implementations serialize the message to their own wire format.
//
// Send must never panic; a failed or closed transport reports an error and
// the router converts it into its boolean / silent-failure contract.
type Transport interface {
	IsOpen() bool
	Send(m Message) error
}
