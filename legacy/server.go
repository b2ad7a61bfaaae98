package legacy

import (
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/abdelmounim-dev/support-relay/relay"
)

// Server accepts legacy stream connections and runs one worker per
// connection. It owns the set of live peers so a graceful shutdown can
// notify and release every still-open connection before exiting.
type Server struct {
	addr           string
	maxConnections int

	registry *relay.ConnectionRegistry
	store    *relay.SessionStore
	router   *relay.Router
	notifier *relay.QueueNotifier

	mu       sync.Mutex
	listener net.Listener
	peers    map[*Codec]struct{}
	draining bool

	wg sync.WaitGroup
}

// NewServer builds a legacy server listening on port.
func NewServer(port, maxConnections int, registry *relay.ConnectionRegistry, store *relay.SessionStore, router *relay.Router, notifier *relay.QueueNotifier) *Server {
	return &Server{
		addr:           fmt.Sprintf(":%d", port),
		maxConnections: maxConnections,
		registry:       registry,
		store:          store,
		router:         router,
		notifier:       notifier,
		peers:          make(map[*Codec]struct{}),
	}
}

// Start binds the listener and runs the accept loop until Shutdown.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("legacy listen on %s failed: %w", s.addr, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	log.Printf("Legacy socket server listening on %s", listener.Addr())

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			draining := s.draining
			s.mu.Unlock()
			if draining {
				return nil
			}
			return fmt.Errorf("legacy accept failed: %w", err)
		}

		if s.overCapacity(conn) {
			continue
		}

		codec := NewCodec(conn)
		s.trackPeer(codec)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.releasePeer(codec)
			NewWorker(codec, s.registry, s.store, s.router, s.notifier).Run()
		}()
	}
}

// Addr returns the bound listener address, for tests using port 0.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown drains gracefully: stop accepting, send ShutdownNotice to every
// open peer, close their streams, and wait for the workers to finish their
// cleanup. Never an abrupt kill, so no peer is left orphaned.
func (s *Server) Shutdown() {
	s.mu.Lock()
	s.draining = true
	if s.listener != nil {
		s.listener.Close()
	}
	snapshot := make([]*Codec, 0, len(s.peers))
	for codec := range s.peers {
		snapshot = append(snapshot, codec)
	}
	s.mu.Unlock()

	log.Printf("Draining %d legacy connection(s)", len(snapshot))
	for _, codec := range snapshot {
		if err := codec.WriteFrame(ShutdownNotice{}); err != nil {
			log.Printf("Shutdown notice to %s failed: %v", codec.RemoteAddr(), err)
		}
		codec.Close()
	}

	s.wg.Wait()
	log.Println("Legacy socket server stopped")
}

func (s *Server) overCapacity(conn net.Conn) bool {
	s.mu.Lock()
	over := len(s.peers) >= s.maxConnections
	s.mu.Unlock()
	if over {
		log.Printf("Rejecting legacy connection from %s: at capacity (%d)", conn.RemoteAddr(), s.maxConnections)
		conn.Close()
	}
	return over
}

func (s *Server) trackPeer(codec *Codec) {
	s.mu.Lock()
	s.peers[codec] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) releasePeer(codec *Codec) {
	s.mu.Lock()
	delete(s.peers, codec)
	s.mu.Unlock()
}
