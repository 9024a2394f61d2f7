package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/offerhub/backend/internal/auth"
	"github.com/offerhub/backend/internal/config"
	"github.com/offerhub/backend/internal/handlers"
	"github.com/offerhub/backend/internal/middleware"
	"github.com/offerhub/backend/internal/notify"
	"github.com/offerhub/backend/internal/repository"
	"github.com/offerhub/backend/internal/router"
	"github.com/offerhub/backend/internal/services"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(".")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL (connection refused or invalid). Ensure Postgres is running", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL")

	// River migrations (job queue tables)
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed. If the error is 'connection refused', start PostgreSQL first", "error", err)
		os.Exit(1)
	}

	// Repositories
	providerRepo := repository.NewProviderRepo(pool)
	requestRepo := repository.NewRequestRepo(pool)
	offerRepo := repository.NewOfferRepo(pool)
	ledgerRepo := repository.NewLedgerRepo(pool)
	identityRepo := repository.NewIdentityRepo(pool)
	fraudFlagRepo := repository.NewFraudFlagRepo(pool)
	auditRepo := repository.NewAuditRepo(pool)

	// Notification worker + queue
	workers := river.NewWorkers()
	river.AddWorker(workers, notify.NewDeliverWorker(&notify.LogDispatcher{Logger: logger}, logger))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers: workers,
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}
	enqueuer := notify.NewEnqueuer(riverClient)

	// Services
	fraudSvc := services.NewFraudService(identityRepo, fraudFlagRepo, logger)
	placementSvc := services.NewPlacementService(
		pool, providerRepo, requestRepo, offerRepo, ledgerRepo,
		services.DefaultPricing, enqueuer,
		cfg.OfferMessageMaxLen, time.Duration(cfg.OfferRefundWindowHours)*time.Hour, logger,
	)
	bulkSvc := services.NewBulkService(pool, providerRepo, requestRepo, ledgerRepo, auditRepo, enqueuer, cfg.BulkMaxEntities, logger)
	scanSvc := services.NewDupeScanService(requestRepo, auditRepo, time.Duration(cfg.DuplicateScanWindowHrs)*time.Hour, logger)
	authSvc := auth.NewService(pool, providerRepo, ledgerRepo, cfg.JWTSecret, cfg.WelcomeCredits)

	// Rate limiter (nil limiter disables throttling)
	var limiter middleware.RateLimiter
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("Invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		limiter = middleware.NewRedisRateLimiter(redis.NewClient(opts), "offerhub:rate_limit")
	} else {
		slog.Warn("REDIS_URL not set; offer rate limiting disabled")
	}

	// Handlers & routes
	authHandler := auth.NewHandler(authSvc, fraudSvc, logger)
	offerHandler := &handlers.OfferHandler{Placement: placementSvc, Offers: offerRepo, Ledger: ledgerRepo, Logger: logger}
	adminHandler := &handlers.AdminHandler{Bulk: bulkSvc, Scanner: scanSvc, Flags: fraudFlagRepo, Logger: logger}

	authMW := middleware.BearerAuth(authSvc, providerRepo)
	rateMW := middleware.RateLimit(limiter, "place_offer", cfg.OfferRateLimitPerMinute, time.Minute)

	apiRouter := router.New(authHandler, offerHandler, adminHandler, authMW, rateMW)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Device-ID"},
		AllowCredentials: true,
	}).Handler(apiRouter)

	// Start River client (delivers notifications)
	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	serverAddr := "0.0.0.0:" + cfg.Port
	slog.Info("Starting HTTP server", "addr", serverAddr)
	if err := http.ListenAndServe(serverAddr, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
