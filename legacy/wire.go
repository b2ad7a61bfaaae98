// Package legacy implements the persistent binary-stream protocol spoken
// by older chat clients: one TCP connection per client, gob-framed records
// in both directions, exactly one ConnectRequest before any other frame.
package legacy

import (
	"encoding/gob"
	"net"
	"sync"
	"time"
)

// Frame is the sealed set of records exchanged on a legacy stream. The
// worker matches the concrete kinds exhaustively; anything else on the wire
// fails gob decoding and tears the connection down.
type Frame interface {
	frame()
}

// ConnectRequest opens a chat session. Sent once, before anything else.
type ConnectRequest struct {
	SupervisorIDHint string
	DisplayName      string
}

// ConnectResponse acknowledges a ConnectRequest.
type ConnectResponse struct {
	Success   bool
	SessionID string
	Message   string
}

// TextMessage carries one chat line in either direction.
type TextMessage struct {
	SessionID  string
	SenderRole string
	Content    string
	Timestamp  time.Time
}

// DisconnectRequest is the client's sign-off. No payload.
type DisconnectRequest struct{}

// ShutdownNotice is server-initiated, sent to every legacy connection on
// graceful shutdown. No response expected.
type ShutdownNotice struct{}

func (ConnectRequest) frame()    {}
func (ConnectResponse) frame()   {}
func (TextMessage) frame()       {}
func (DisconnectRequest) frame() {}
func (ShutdownNotice) frame()    {}

func init() {
	gob.Register(ConnectRequest{})
	gob.Register(ConnectResponse{})
	gob.Register(TextMessage{})
	gob.Register(DisconnectRequest{})
	gob.Register(ShutdownNotice{})
}

// Codec frames gob records over one persistent stream. Reads are only ever
// issued by the owning worker; writes come from the worker and the router
// concurrently, so they serialize on a mutex.
type Codec struct {
	conn net.Conn
	dec  *gob.Decoder

	wmu sync.Mutex
	enc *gob.Encoder
}

// NewCodec wraps a stream connection.
func NewCodec(conn net.Conn) *Codec {
	return &Codec{
		conn: conn,
		dec:  gob.NewDecoder(conn),
		enc:  gob.NewEncoder(conn),
	}
}

// ReadFrame blocks until the next inbound frame or a stream error.
func (c *Codec) ReadFrame() (Frame, error) {
	var f Frame
	if err := c.dec.Decode(&f); err != nil {
		return nil, err
	}
	return f, nil
}

// WriteFrame sends one frame, serializing concurrent writers.
func (c *Codec) WriteFrame(f Frame) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.enc.Encode(&f)
}

// Close closes the underlying stream.
func (c *Codec) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the peer address for logging.
func (c *Codec) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
