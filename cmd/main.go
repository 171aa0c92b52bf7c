/**
 * @description
 * Entry point for the fee ledger service.
 */
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/waspershola/hospitech-nexus-sub003/internal/api"
	"github.com/waspershola/hospitech-nexus-sub003/internal/app"
	"github.com/waspershola/hospitech-nexus-sub003/internal/config"
	"github.com/waspershola/hospitech-nexus-sub003/internal/store"
	"github.com/waspershola/hospitech-nexus-sub003/pkg/providerclient"
	ledgerrabbit "github.com/waspershola/hospitech-nexus-sub003/pkg/rabbitmq"
	"github.com/waspershola/hospitech-nexus-sub003/pkg/tenantclient"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, relying on environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	pgConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("unable to parse database URL", "error", err)
		os.Exit(1)
	}
	pgConfig.MaxConns = 100
	pgConfig.MinConns = 20
	pgConfig.MaxConnLifetime = 30 * time.Minute
	pgConfig.MaxConnIdleTime = 5 * time.Minute
	pgConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, pgConfig)
	if err != nil {
		logger.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	logger.Info("database connection established")

	repository := store.NewPostgresRepository(dbpool)
	tenants := tenantclient.NewClient(cfg.TenantServiceURL, cfg.InternalAPIKey)
	providers := providerclient.NewClient(providerclient.Secrets{
		PaystackSecretKey:    cfg.PaystackSecretKey,
		StripeSecretKey:      cfg.StripeSecretKey,
		FlutterwaveSecretKey: cfg.FlutterwaveSecretKey,
	})

	var locker app.TenantLocker = app.NoopLocker{}
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("unable to parse Redis URL", "error", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(redisOpts)
		defer redisClient.Close()
		locker = app.NewRedisTenantLocker(redisClient, "hospitech:lock")
		logger.Info("redis connection configured")
	} else {
		logger.Warn("REDIS_URL not set, tenant locking disabled")
	}

	var publisher ledgerrabbit.Publisher = &ledgerrabbit.EventProducerFallback{}
	if cfg.RabbitMQURL != "" {
		if producer, err := ledgerrabbit.NewEventProducer(cfg.RabbitMQURL); err == nil {
			publisher = producer
			defer producer.Close()
		} else {
			logger.Warn("failed to connect to RabbitMQ, using fallback publisher", "error", err)
		}
	}

	service := app.NewService(repository, tenants, providers, locker)

	dispatcher := app.NewOutboxDispatcher(repository, publisher)
	go dispatcher.Run(ctx)

	scheduler := app.NewScheduler(service, logger, cfg)
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(service, cfg)
	router := api.NewRouter(handler, cfg.ClerkJWKSURL, cfg.InternalAPIKey)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	go func() {
		logger.Info("starting server", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	logger.Info("shutdown signal received, gracefully shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	logger.Info("server stopped")
}
