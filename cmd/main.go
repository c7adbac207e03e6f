/**
 * @description
 * Main entrypoint for the payment service. Wires together configuration,
 * the Postgres pool, schema migrations, the RabbitMQ event producer, the
 * Redis rate limiter, the payment provider adapter, the AutoPay scheduler,
 * and the HTTP server, then runs until interrupted.
 *
 * Infrastructure that is optional for correctness (RabbitMQ, Redis) degrades
 * to a fallback rather than blocking startup; the database and the provider
 * secret are mandatory.
 */

package main

import (
	"context"
	"errors"
	"log"
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

	"github.com/happytenant/payment-service/internal/api"
	"github.com/happytenant/payment-service/internal/app"
	"github.com/happytenant/payment-service/internal/config"
	"github.com/happytenant/payment-service/internal/provider"
	_ "github.com/happytenant/payment-service/internal/provider/stripepayment"
	"github.com/happytenant/payment-service/internal/store"
	"github.com/happytenant/payment-service/pkg/rabbitmq"
)

func main() {
	// Best-effort .env load for local development; real deployments set
	// environment variables directly.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: could not load configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Database ---
	if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
		log.Fatalf("FATAL: could not run database migrations: %v", err)
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("FATAL: could not parse database config: %v", err)
	}
	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Fatalf("FATAL: could not connect to database: %v", err)
	}
	defer dbpool.Close()

	if err := dbpool.Ping(ctx); err != nil {
		log.Fatalf("FATAL: database is unreachable: %v", err)
	}
	log.Println("Successfully connected to the database.")

	repo := store.NewPostgresRepository(dbpool)

	// --- RabbitMQ ---
	var producer rabbitmq.Publisher
	eventProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("WARN: RabbitMQ unavailable, event publishing disabled: %v", err)
		producer = &rabbitmq.EventProducerFallback{}
	} else {
		producer = eventProducer
		defer eventProducer.Close()
	}

	// --- Redis rate limiter ---
	var limiter api.RateLimiter
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Printf("WARN: invalid REDIS_URL, charge rate limiting disabled: %v", err)
		} else {
			redisClient := redis.NewClient(redisOpts)
			if err := redisClient.Ping(ctx).Err(); err != nil {
				log.Printf("WARN: Redis unreachable, charge rate limiting disabled: %v", err)
			} else {
				limiter = app.NewRedisChargeRateLimiter(redisClient, cfg.RedisRateLimitPrefix)
				defer redisClient.Close()
			}
		}
	}

	// --- Payment provider ---
	if err := provider.Initialize(provider.Kind(cfg.PaymentProvider), provider.Config{
		SecretKey:            cfg.StripeSecretKey,
		WebhookSecret:        cfg.StripeWebhookSecret,
		ConnectWebhookSecret: cfg.StripeConnectSecret,
	}); err != nil {
		log.Fatalf("FATAL: could not initialize payment provider: %v", err)
	}
	prov, err := provider.Get()
	if err != nil {
		log.Fatalf("FATAL: could not get payment provider: %v", err)
	}

	service := app.NewService(repo, prov, producer, app.ServiceConfig{
		Currency:             cfg.Currency,
		FeeMode:              app.FeeMode(cfg.FeeMode),
		StatementDescriptor:  cfg.StatementDescriptor,
		OnboardingRefreshURL: cfg.OnboardingRefreshURL,
		OnboardingReturnURL:  cfg.OnboardingReturnURL,
	})

	// --- AutoPay scheduler ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	jobs := app.NewJobs(service, repo, producer, logger, cfg.AutoPayWorkerLimit)
	scheduler := app.NewScheduler(jobs, logger, app.SchedulerConfig{
		DailyChargeSchedule: cfg.AutoPayChargeSchedule,
		RetrySchedule:       cfg.AutoPayRetrySchedule,
	})
	scheduler.Start()

	// --- HTTP server ---
	handlers := api.NewPaymentHandlers(service, limiter, cfg.ChargeRateLimitPerMinute)
	router := api.PaymentRoutes(handlers, cfg.ClerkJWKSURL)

	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		log.Printf("Payment service starting on port %s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: could not start server: %v", err)
		}
	}()

	// Block until we receive a termination signal.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down payment service...")

	// Stop cron first so no new charge runs start, then drain HTTP.
	<-scheduler.Stop().Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARN: server forced to shutdown: %v", err)
	}

	log.Println("Payment service stopped.")
}
