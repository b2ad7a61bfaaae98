package legacy

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_FrameExchange(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	client := NewCodec(clientConn)
	server := NewCodec(serverConn)

	go func() {
		client.WriteFrame(ConnectRequest{DisplayName: "Alice"})
		client.WriteFrame(TextMessage{
			SessionID:  "session-1",
			SenderRole: "CLIENT",
			Content:    "hello",
			Timestamp:  time.Now(),
		})
		client.WriteFrame(DisconnectRequest{})
	}()

	f, err := server.ReadFrame()
	require.NoError(t, err)
	req, ok := f.(ConnectRequest)
	require.True(t, ok, "expected ConnectRequest, got %T", f)
	assert.Equal(t, "Alice", req.DisplayName)

	f, err = server.ReadFrame()
	require.NoError(t, err)
	msg, ok := f.(TextMessage)
	require.True(t, ok, "expected TextMessage, got %T", f)
	assert.Equal(t, "session-1", msg.SessionID)
	assert.Equal(t, "hello", msg.Content)

	f, err = server.ReadFrame()
	require.NoError(t, err)
	_, ok = f.(DisconnectRequest)
	assert.True(t, ok, "expected DisconnectRequest, got %T", f)
}

func TestCodec_ServerFrames(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	client := NewCodec(clientConn)
	server := NewCodec(serverConn)

	go func() {
		server.WriteFrame(ConnectResponse{Success: true, SessionID: "session-9", Message: "ok"})
		server.WriteFrame(ShutdownNotice{})
	}()

	f, err := client.ReadFrame()
	require.NoError(t, err)
	resp, ok := f.(ConnectResponse)
	require.True(t, ok)
	assert.True(t, resp.Success)
	assert.Equal(t, "session-9", resp.SessionID)

	f, err = client.ReadFrame()
	require.NoError(t, err)
	_, ok = f.(ShutdownNotice)
	assert.True(t, ok)
}

func TestCodec_ReadAfterClose(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	client := NewCodec(clientConn)
	serverConn.Close()
	clientConn.Close()

	_, err := client.ReadFrame()
	assert.Error(t, err)
}
