package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pawpals/social-app/internal/chat"
	"github.com/pawpals/social-app/internal/config"
	"github.com/pawpals/social-app/internal/database"
	"github.com/pawpals/social-app/internal/friend"
	"github.com/pawpals/social-app/internal/identity"
	"github.com/pawpals/social-app/internal/message"
	"github.com/pawpals/social-app/internal/metrics"
	"github.com/pawpals/social-app/internal/notify"
	"github.com/pawpals/social-app/internal/presence"
	"github.com/pawpals/social-app/internal/ratelimit"
	"github.com/pawpals/social-app/internal/registry"
	"github.com/pawpals/social-app/internal/ws"
)

func main() {
	cfg := config.Load()

	// --- PostgreSQL ---
	db, err := database.Open(cfg.Database.URL)
	if err != nil {
		log.Fatalf("failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	// --- Redis ---
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(ctx).Err(); err != nil {
		cancel()
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	cancel()
	defer rdb.Close()

	// --- NATS push publisher ---
	natsConfig := notify.DefaultConfig()
	natsConfig.URL = cfg.NATS.URL

	tokenStore := notify.NewTokenStore(rdb)
	publisher, err := notify.NewPublisher(natsConfig, tokenStore)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}
	defer publisher.Close()

	// --- Delivery core ---
	resolver := identity.NewResolver(cfg.JWT.Secret)
	limiter := ratelimit.NewLimiter(rdb)

	messageStore := message.NewStore(db)
	friendStore := friend.NewStore(db)

	core := chat.NewService(
		registry.New(),
		presence.NewStore(),
		messageStore,
		friendStore,
		friendStore,
		publisher,
	)
	core.SetLimiter(limiter)

	// --- Transport ---
	serverConfig := ws.ServerConfig{
		ListenAddr:     cfg.Server.ListenAddr,
		WorkerPoolSize: cfg.Server.WorkerPoolSize,
		MaxConnections: cfg.Server.MaxConnections,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
	}

	server := ws.NewServer(serverConfig, resolver, core)
	server.SetConnLimiter(limiter)
	server.Handle("/metrics", metrics.Handler())
	server.Handle("/api/chat/history/", message.HistoryHandler(messageStore, resolver))
	server.Handle("/api/devices", notify.DeviceHandler(tokenStore, resolver))

	log.Printf("pawpals real-time server starting")
	log.Printf("  listen_addr:     %s", cfg.Server.ListenAddr)
	log.Printf("  worker_pool:     %d", cfg.Server.WorkerPoolSize)
	log.Printf("  max_connections: %d", cfg.Server.MaxConnections)
	log.Printf("  database_url:    %s", cfg.Database.URL)
	log.Printf("  redis_addr:      %s", cfg.Redis.Addr)
	log.Printf("  nats_url:        %s", cfg.NATS.URL)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, shutting down...", sig)
		if err := server.Shutdown(); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}()

	if err := server.Start(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
