// Package server wraps the HTTP server hosting the supervisor console
// endpoint.
package server

import (
	"context"
	"log"
	"net/http"
	"time"
)

// Server hosts the push transport endpoint.
type Server struct {
	httpServer *http.Server
}

// NewServer builds a server for the given address and websocket handler.
func NewServer(addr string, wsHandler http.HandlerFunc, readTimeout, writeTimeout int) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return &Server{
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     mux,
			ReadTimeout: time.Duration(readTimeout) * time.Second,
			// WriteTimeout would kill long-lived websocket upgrades, so the
			// per-write deadline lives in the console session instead.
			IdleTimeout: time.Duration(writeTimeout) * time.Second,
		},
	}
}

// Start runs the server until Shutdown.
func (s *Server) Start() {
	log.Printf("Push server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Push server failed: %v", err)
	}
}

// Shutdown stops accepting and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("Push server shutdown error: %v", err)
	}
}
