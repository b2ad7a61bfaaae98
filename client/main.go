// Command client is the legacy chat client: it dials the relay's socket
// server, opens a session, and relays lines between stdin and the paired
// supervisor.
package main

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"os"
	"strings"
	"time"

	"github.com/abdelmounim-dev/support-relay/legacy"
)

const (
	defaultHost    = "localhost"
	defaultPort    = "3000"
	connectTimeout = 10 * time.Second
)

func main() {
	if len(os.Args) > 3 {
		fmt.Fprintln(os.Stderr, "usage: client [HOST [PORT]]")
		return
	}

	host, port := defaultHost, defaultPort
	if len(os.Args) > 1 {
		host = os.Args[1]
	}
	if len(os.Args) == 3 {
		port = os.Args[2]
	}
	addr := net.JoinHostPort(host, port)

	fmt.Printf("Connecting to %s...\n", addr)
	conn, err := net.DialTimeout("tcp", addr, connectTimeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not connect: %v\n", err)
		fmt.Fprintf(os.Stderr, "Check that the relay is running on %s\n", addr)
		return
	}
	codec := legacy.NewCodec(conn)
	defer codec.Close()

	// Exactly one ConnectRequest precedes everything else on the stream.
	if err := codec.WriteFrame(legacy.ConnectRequest{DisplayName: "Legacy client"}); err != nil {
		fmt.Fprintf(os.Stderr, "Connect request failed: %v\n", err)
		return
	}

	sessionID, err := awaitConnectResponse(codec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return
	}
	fmt.Printf("Connected. Session ID: %s\n", sessionID)
	fmt.Println("Waiting for a supervisor...")
	fmt.Println()
	fmt.Println("Type your messages (or 'quit' to leave):")

	// Inbound frames print as they arrive; done closes on stream end.
	done := make(chan struct{})
	go receiveLoop(codec, done)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(line, "quit") {
			break
		}
		if line == "" {
			continue
		}

		msg := legacy.TextMessage{
			SessionID:  sessionID,
			SenderRole: "CLIENT",
			Content:    line,
			Timestamp:  time.Now(),
		}
		if err := codec.WriteFrame(msg); err != nil {
			fmt.Fprintf(os.Stderr, "Send failed: %v\n", err)
		}

		select {
		case <-done:
			// Server side closed while we were typing.
			fmt.Println("Connection closed by server.")
			return
		default:
		}
	}

	fmt.Println("\nSigning off...")
	if err := codec.WriteFrame(legacy.DisconnectRequest{}); err != nil {
		log.Printf("Sign-off failed: %v", err)
	}
	fmt.Println("Goodbye!")
}

// awaitConnectResponse blocks for the server's reply to the connect request.
func awaitConnectResponse(codec *legacy.Codec) (string, error) {
	f, err := codec.ReadFrame()
	if err != nil {
		return "", fmt.Errorf("no response from server: %w", err)
	}
	resp, ok := f.(legacy.ConnectResponse)
	if !ok {
		return "", fmt.Errorf("unexpected frame %T before connect response", f)
	}
	if !resp.Success {
		return "", fmt.Errorf("server refused connection: %s", resp.Message)
	}
	return resp.SessionID, nil
}

// receiveLoop prints inbound frames until the stream ends.
func receiveLoop(codec *legacy.Codec, done chan<- struct{}) {
	defer close(done)

	for {
		f, err := codec.ReadFrame()
		if err != nil {
			return
		}

		switch frame := f.(type) {
		case legacy.TextMessage:
			fmt.Printf("[%s] %s\n", frame.SenderRole, frame.Content)
		case legacy.ShutdownNotice:
			fmt.Println("Server is shutting down.")
			return
		default:
			// Late ConnectResponse duplicates and the like.
		}
	}
}
