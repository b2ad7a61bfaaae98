package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/abdelmounim-dev/support-relay/broker"
	"github.com/abdelmounim-dev/support-relay/config"
	"github.com/abdelmounim-dev/support-relay/history"
	"github.com/abdelmounim-dev/support-relay/legacy"
	"github.com/abdelmounim-dev/support-relay/metrics"
	"github.com/abdelmounim-dev/support-relay/push"
	"github.com/abdelmounim-dev/support-relay/relay"
	"github.com/abdelmounim-dev/support-relay/server"
	"github.com/abdelmounim-dev/support-relay/services"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize config
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}
	if err := config.Initialize(env); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	cfg := config.Get()

	// Redis backs the history archive, the redis broker, and JWT revocation.
	redisClient, err := services.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// --- Dynamic Broker Initialization ---
	var messageBroker broker.MessageBroker

	log.Printf("Initializing message broker of type: %s", cfg.Broker.Type)
	switch strings.ToLower(cfg.Broker.Type) {
	case "redis":
		messageBroker = broker.NewRedisBroker(redisClient)
	case "kafka":
		messageBroker, err = broker.NewKafkaBroker(cfg.Broker.Kafka)
		if err != nil {
			log.Fatalf("Failed to create Kafka broker: %v", err)
		}
	default:
		// Caught by config validation, but checked again as a safeguard.
		log.Fatalf("Invalid broker type specified: %s", cfg.Broker.Type)
	}
	defer messageBroker.Close()
	// --- End of Broker Initialization ---

	// Message archive (the router's best-effort storage collaborator)
	var archive relay.Archiver
	if cfg.History.Enabled {
		store := history.NewRedisStore(
			redisClient,
			time.Duration(cfg.History.TTLHours)*time.Hour,
			cfg.History.MaxEntries,
		)
		archive = history.NewService(store, messageBroker, cfg.Broker.Channel)
		log.Println("Message history is ENABLED.")
	} else {
		log.Println("Message history is DISABLED.")
	}

	// Shared relay core
	registry := relay.NewConnectionRegistry()
	sessionStore := relay.NewSessionStore()
	router := relay.NewRouter(registry, sessionStore, archive)
	notifier := relay.NewQueueNotifier(registry, sessionStore)

	// Idle-session expiry
	sweeper := relay.NewSweeper(
		sessionStore, registry, router, notifier,
		time.Duration(cfg.Session.TimeoutMinutes)*time.Minute,
		time.Duration(cfg.Session.SweepIntervalSeconds)*time.Second,
	)
	go sweeper.Run(ctx)

	// Auth Initialization
	var jwtValidator *push.JWTValidator
	if cfg.Auth.Enabled {
		jwtValidator = push.NewJWTValidator(&cfg.Auth, redisClient)
		log.Println("JWT Authentication is ENABLED.")
	} else {
		log.Println("JWT Authentication is DISABLED.")
	}
	// --- End of Auth Initialization ---

	// Supervisor console endpoint
	handler := push.NewHandler(registry, sessionStore, router, notifier, jwtValidator, &cfg.Auth, &cfg.Push)
	pushSrv := server.NewServer(":"+strconv.Itoa(cfg.Push.Port), handler.HandleWebSocket, cfg.Push.ReadTimeout, cfg.Push.WriteTimeout)
	go pushSrv.Start()

	// Legacy socket server
	var legacySrv *legacy.Server
	if cfg.Legacy.Enabled {
		legacySrv = legacy.NewServer(cfg.Legacy.Port, cfg.Legacy.MaxConnections, registry, sessionStore, router, notifier)
		go func() {
			if err := legacySrv.Start(); err != nil {
				log.Fatalf("Legacy server failed: %v", err)
			}
		}()
	} else {
		log.Println("Legacy socket server is DISABLED.")
	}

	// Metrics
	if cfg.Metrics.Enabled {
		metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path)
	}

	log.Println("Support relay started")

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("Shutdown signal received")

	// Graceful shutdown: stop transports first, then the broker.
	cancel()
	if legacySrv != nil {
		legacySrv.Shutdown()
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	pushSrv.Shutdown(shutdownCtx)
}
