package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/protegacloudpay/cloudpay/internal/config"
	"github.com/protegacloudpay/cloudpay/internal/identity"
	"github.com/protegacloudpay/cloudpay/internal/inventory"
	"github.com/protegacloudpay/cloudpay/internal/ledger"
	"github.com/protegacloudpay/cloudpay/internal/publisher"
	"github.com/protegacloudpay/cloudpay/internal/server"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	// Identity: MongoDB customer store fronted by a Redis fingerprint cache.
	mongoDB, err := identity.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	identityRepo := identity.NewMongoRepository(mongoDB)
	if idx, ok := identityRepo.(interface{ CreateIndexes(context.Context) error }); ok {
		if err := idx.CreateIndexes(ctx); err != nil {
			log.Fatalf("Failed to create customer indexes: %v", err)
		}
	}
	log.Printf("Connected to MongoDB at %s", cfg.MongoURI)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	identitySvc := identity.NewService(identityRepo, identity.NewRedisCache(redisClient))

	// Ledger: PostgreSQL transaction store with the outbox table.
	ledgerRepo, err := ledger.NewPostgresRepository(&cfg.Ledger)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer ledgerRepo.Close()
	if err := ledgerRepo.RunMigrations(&cfg.Ledger); err != nil {
		log.Fatalf("Failed to run ledger migrations: %v", err)
	}
	ledgerSvc := ledger.NewService(ledgerRepo)

	// Inventory: per-merchant SQLite catalog.
	inventoryStore, err := inventory.NewSQLiteStore(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("Failed to open inventory database: %v", err)
	}
	defer inventoryStore.Close()
	if err := inventoryStore.RunMigrations(cfg.SQLiteMigrations); err != nil {
		log.Fatalf("Failed to run inventory migrations: %v", err)
	}

	// Outbox publisher drains completed transactions to Kafka.
	poller := publisher.NewOutboxPoller(ledgerRepo, cfg.KafkaBrokers...)
	pollerCtx, stopPoller := context.WithCancel(ctx)
	go poller.Run(pollerCtx)
	defer poller.Close()

	api := server.New(server.NewAccountStore(), identitySvc, ledgerSvc, inventoryStore)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      api.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		log.Printf("CloudPay API starting on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	stopPoller()

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("server exited")
}
