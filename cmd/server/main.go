package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ignite/delivery-relay/internal/api"
	"github.com/ignite/delivery-relay/internal/catalog"
	"github.com/ignite/delivery-relay/internal/config"
	"github.com/ignite/delivery-relay/internal/dedup"
	"github.com/ignite/delivery-relay/internal/delivery"
	"github.com/ignite/delivery-relay/internal/directory"
	"github.com/ignite/delivery-relay/internal/filestore"
	"github.com/ignite/delivery-relay/internal/gateway/telegram"
	"github.com/ignite/delivery-relay/internal/history"
	"github.com/ignite/delivery-relay/internal/repository/memory"
	"github.com/ignite/delivery-relay/internal/repository/postgres"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"
)

// checkPortAvailable verifies that the target port is not already in use.
// This prevents confusion from stale/stub processes occupying the port.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v\n"+
			"  Hint: Run 'lsof -i :%d' to find the blocking process", port, addr, err, port)
	}
	ln.Close()
	return nil
}

func extractHost(dsn string) string {
	at := strings.Index(dsn, "@")
	if at < 0 {
		return "(unknown)"
	}
	rest := dsn[at+1:]
	slash := strings.Index(rest, "/")
	if slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}

func main() {
	log.Println("╔════════════════════════════════════════════════════════════╗")
	log.Println("║  Delivery Relay (cmd/server/main.go)                      ║")
	log.Println("║  Purchase webhook → Telegram product delivery             ║")
	log.Println("╚════════════════════════════════════════════════════════════╝")

	// Load configuration
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if os.Getenv("DATABASE_URL") != "" {
		log.Println("[config] DATABASE_URL env override active")
	}
	if cfg.Telegram.BotToken == "" {
		log.Fatal("Telegram bot token not configured (set TELEGRAM_BOT_TOKEN)")
	}

	// Pre-flight check: verify the target port is available
	host := cfg.Server.GetHost()
	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	if err := checkPortAvailable(host, port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}
	log.Printf("Pre-flight check passed: port %d is available", port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Build the catalog and provider mapping. Both are validated here so a
	// malformed product can never surface mid-delivery.
	cat, err := catalog.New(cfg.Catalog)
	if err != nil {
		log.Fatalf("Catalog validation FAILED: %v", err)
	}
	resolver, err := catalog.NewResolver(cfg.Catalog.Mapping, cat)
	if err != nil {
		log.Fatalf("Product mapping validation FAILED: %v", err)
	}
	log.Printf("Catalog loaded: %d products, %d provider mappings", len(cat.Keys()), len(cfg.Catalog.Mapping))

	// Recipient directory: PostgreSQL when configured, in-memory otherwise.
	var db *sql.DB
	var dirService *directory.Service
	if cfg.Directory.DatabaseURL != "" {
		dbURL := cfg.Directory.DatabaseURL
		if !strings.Contains(dbURL, "connect_timeout") {
			sep := "?"
			if strings.Contains(dbURL, "?") {
				sep = "&"
			}
			dbURL += sep + "connect_timeout=5"
		}
		log.Printf("DB URL host portion: ...@%s/...", extractHost(dbURL))
		db, err = sql.Open("postgres", dbURL)
		if err != nil {
			log.Fatalf("Failed to open recipient database: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(3)
		db.SetConnMaxLifetime(5 * time.Minute)

		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := db.PingContext(pingCtx); err != nil {
			log.Printf("Warning: recipient database ping failed: %v — lookups will fail until it recovers", err)
		} else {
			log.Println("Recipient database connected")
		}
		pingCancel()

		dirService = directory.NewService(postgres.NewRecipientRepo(db))
	} else {
		log.Println("Warning: DATABASE_URL not set — using in-memory recipient directory (registrations lost on restart)")
		dirService = directory.NewService(memory.NewRecipientRepo())
	}

	// Redis deduplication: optional. Without it webhook retries are
	// processed at-least-once.
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Printf("Warning: Redis connection failed (%s): %v — webhook deduplication disabled", cfg.Redis.Addr, err)
			redisClient.Close()
			redisClient = nil
		} else {
			log.Printf("Redis connected: %s (webhook deduplication enabled)", cfg.Redis.Addr)
		}
		pingCancel()
	} else {
		log.Println("Redis not configured (REDIS_ADDR not set) — webhook deduplication disabled")
	}
	claimer := dedup.New(redisClient, cfg.Redis.DedupTTL())

	// Product file store
	files, err := filestore.New(ctx, cfg.FileStore)
	if err != nil {
		log.Fatalf("Failed to initialize file store: %v", err)
	}
	log.Printf("File store initialized (type: %s)", cfg.FileStore.Type)

	// Telegram gateway and the delivery pipeline
	gw := telegram.NewClient(cfg.Telegram, files)
	templates := delivery.NewTemplateService()
	orchestrator := delivery.NewOrchestrator(resolver, cat, dirService, gw, templates, delivery.Messages{
		WelcomeWrapper: cfg.Catalog.WelcomeWrapper,
		Confirmation:   cfg.Catalog.Confirmation,
	})

	// Delivery history: in-memory ring, DynamoDB sink when configured
	hist, err := history.New(ctx, cfg.History)
	if err != nil {
		log.Fatalf("Failed to initialize history store: %v", err)
	}
	if cfg.History.DynamoDBTable != "" {
		log.Printf("Delivery history DynamoDB sink enabled (table: %s)", cfg.History.DynamoDBTable)
	}

	handlers := api.NewHandlers(orchestrator, dirService, hist, claimer, cfg.Gumroad.SharedSecret)
	healthChecker := api.NewHealthChecker(db, redisClient, files)
	server := api.NewServer(cfg.Server, handlers, healthChecker, cfg.Admin.Token)

	if cfg.Admin.Token == "" {
		log.Println("Warning: RELAY_ADMIN_TOKEN not set — operator endpoints are unauthenticated")
	}

	// Setup graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	log.Println("All services initialized — server is ready")

	<-done
	log.Println("Shutting down...")

	cancel()

	// Graceful shutdown with timeout. In-flight deliveries already run on
	// detached contexts and finish their send sequences.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if db != nil {
		db.Close()
	}
	if redisClient != nil {
		redisClient.Close()
	}

	log.Println("Server stopped")
}
