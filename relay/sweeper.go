package relay

import (
	"context"
	"log"
	"time"

	"github.com/abdelmounim-dev/support-relay/metrics"
)

// Sweeper expires sessions idle beyond the configured timeout. Each sweep
// removes the expired sessions, tells both parties best-effort, and pushes
// a fresh queue update to the supervisor consoles.
type Sweeper struct {
	store    *SessionStore
	registry *ConnectionRegistry
	router   *Router
	notifier *QueueNotifier
	timeout  time.Duration
	interval time.Duration
}

// NewSweeper builds a sweeper with the given idle timeout and sweep interval.
func NewSweeper(store *SessionStore, registry *ConnectionRegistry, router *Router, notifier *QueueNotifier, timeout, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:    store,
		registry: registry,
		router:   router,
		notifier: notifier,
		timeout:  timeout,
		interval: interval,
	}
}

// Run sweeps on a ticker until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce()
		}
	}
}

// SweepOnce performs a single expiry pass.
func (s *Sweeper) SweepOnce() {
	expired := s.store.Sweep(s.timeout)
	if len(expired) == 0 {
		return
	}

	for _, sess := range expired {
		log.Printf("Session %s expired after %s idle", sess.ID, s.timeout)
		metrics.SessionsExpired.Inc()

		s.expireParty(sess, sess.ClientConnectionID)
		if sess.IsPaired() {
			s.expireParty(sess, sess.SupervisorConnectionID)
		}
	}

	s.notifier.BroadcastQueueUpdate()
}

// expireParty sends the expiry notice and detaches the session from the
// connection record. The connection itself stays registered; its transport
// handler owns the close.
func (s *Sweeper) expireParty(sess Session, connectionID string) {
	s.router.SendError(connectionID, "session expired due to inactivity")
	if conn, ok := s.registry.Get(connectionID); ok && conn.SessionID == sess.ID {
		s.registry.Register(conn.WithSessionID(""))
	}
}
