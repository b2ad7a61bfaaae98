// Package push implements the modern push-capable transport used by
// supervisor consoles: a WebSocket endpoint carrying JSON frames of the
// internal routing message format plus a small console command protocol.
package push

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/abdelmounim-dev/support-relay/config"
)

const websocketRetryDelay = 200 * time.Millisecond

// ConsoleSession represents one connected supervisor console.
type ConsoleSession struct {
	ID            string
	conn          *websocket.Conn
	ctx           context.Context
	cfg           *config.PushConfig
	claims        *ConsoleClaims
	lastActivity  atomic.Int64
	pingTicker    *time.Ticker
	activityTimer *time.Timer
	cancel        context.CancelFunc
	mu            sync.Mutex
	closed        atomic.Bool
}

// NewConsoleSession creates a new console session. claims is nil when auth
// is disabled.
func NewConsoleSession(id string, conn *websocket.Conn, cfg *config.PushConfig, claims *ConsoleClaims) *ConsoleSession {
	ctx, cancel := context.WithCancel(context.Background())
	cs := &ConsoleSession{
		ID:     id,
		conn:   conn,
		cfg:    cfg,
		claims: claims,
		cancel: cancel,
		ctx:    ctx,
	}
	cs.lastActivity.Store(time.Now().Unix())
	return cs
}

// SafeWriteJSON writes data to the websocket with retry capability.
func (s *ConsoleSession) SafeWriteJSON(data interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	operation := func() error {
		return s.conn.WriteJSON(data)
	}

	backoffStrategy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewConstantBackOff(websocketRetryDelay),
			uint64(s.cfg.MaxRetries),
		),
		s.ctx,
	)

	return backoff.RetryNotify(operation, backoffStrategy, func(err error, d time.Duration) {
		log.Printf("Retrying WebSocket write to %s: %v (next attempt in %s)", s.ID, err, d)
	})
}

// UpdateActivity updates the last activity timestamp and resets the
// inactivity timer. Called for actual console messages, not pongs.
func (s *ConsoleSession) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActivity.Store(time.Now().Unix())

	if s.activityTimer != nil {
		s.activityTimer.Stop()
		s.activityTimer = time.AfterFunc(
			time.Duration(s.cfg.ActivityTimeout)*time.Second,
			s.onActivityTimeout,
		)
	}
}

// IsOpen reports whether the console is still connected.
func (s *ConsoleSession) IsOpen() bool {
	return !s.closed.Load()
}

// StartTimers arms the inactivity timer and the ping loop.
func (s *ConsoleSession) StartTimers() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activityTimer = time.AfterFunc(
		time.Duration(s.cfg.ActivityTimeout)*time.Second,
		s.onActivityTimeout,
	)

	s.pingTicker = time.NewTicker(
		time.Duration(s.cfg.PingInterval) * time.Second,
	)
	go s.pingLoop()
}

func (s *ConsoleSession) pingLoop() {
	defer s.pingTicker.Stop()

	for {
		select {
		case <-s.pingTicker.C:
			if err := s.sendPing(); err != nil {
				log.Printf("Failed to send ping to %s: %v", s.ID, err)
				s.Close(websocket.CloseInternalServerErr, "Ping failure")
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *ConsoleSession) onActivityTimeout() {
	log.Printf("Supervisor console %s timed out", s.ID)
	s.Close(websocket.ClosePolicyViolation, "Inactivity timeout")
}

func (s *ConsoleSession) sendPing() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conn.WriteControl(
		websocket.PingMessage,
		[]byte{},
		time.Now().Add(time.Duration(s.cfg.WriteTimeout)*time.Second),
	)
}

// GetPongHandler returns a pong handler that refreshes the timestamp
// without rearming the inactivity timer.
func (s *ConsoleSession) GetPongHandler() func(string) error {
	return func(string) error {
		s.lastActivity.Store(time.Now().Unix())
		return nil
	}
}

// Close closes the websocket connection. Safe to call more than once.
func (s *ConsoleSession) Close(code int, text string) error {
	if s.closed.Swap(true) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pingTicker != nil {
		s.pingTicker.Stop()
	}
	if s.activityTimer != nil {
		s.activityTimer.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}

	writeTimeout := time.Duration(s.cfg.WriteTimeout) * time.Second
	err := s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text),
		time.Now().Add(writeTimeout),
	)
	if err != nil {
		log.Printf("Error sending close message to %s: %v", s.ID, err)
	}

	return s.conn.Close()
}
