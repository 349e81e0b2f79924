package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/utkarshsingh/money-manager-backend/internal/activation"
	"github.com/utkarshsingh/money-manager-backend/internal/cron"
	"github.com/utkarshsingh/money-manager-backend/internal/emailoutbox"
	"github.com/utkarshsingh/money-manager-backend/internal/ledger"
	"github.com/utkarshsingh/money-manager-backend/pkg/bus"
	"github.com/utkarshsingh/money-manager-backend/pkg/config"
	"github.com/utkarshsingh/money-manager-backend/pkg/db"
	"github.com/utkarshsingh/money-manager-backend/pkg/logger"
	"github.com/utkarshsingh/money-manager-backend/pkg/mailer"
	"github.com/utkarshsingh/money-manager-backend/pkg/metrics"
	"github.com/utkarshsingh/money-manager-backend/pkg/migrate"
	"github.com/utkarshsingh/money-manager-backend/pkg/outbox/idempotency"
	"github.com/utkarshsingh/money-manager-backend/pkg/pubsub"
	"github.com/utkarshsingh/money-manager-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "email-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "email-worker"

	logg = logger.New(logger.Options{
		ServiceName: "email-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	registry := prometheus.NewRegistry()
	pipeMetrics := metrics.NewPipelineMetrics(registry)
	cronMetrics := metrics.NewCronJobMetrics(registry)

	sender, err := mailer.NewSMTPSender(cfg.Mail)
	if err != nil {
		logg.Error(context.Background(), "failed to create smtp sender", err)
		os.Exit(1)
	}

	emailRepo := emailoutbox.NewRepository(dbClient.DB())
	processor, err := emailoutbox.NewProcessor(emailoutbox.ProcessorParams{
		Repo:    emailRepo,
		Sender:  sender,
		Logger:  logg,
		Metrics: pipeMetrics,
		Batch:   cfg.EmailOutbox.SweepBatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create email outbox processor", err)
		os.Exit(1)
	}

	idemManager, err := idempotency.NewManager(redisClient, cfg.Eventing.IdempotencyTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency manager", err)
		os.Exit(1)
	}

	signals := bus.New(cfg.EmailOutbox.EagerBufferSize)
	defer signals.Close()

	consumer, err := activation.NewConsumer(activation.ConsumerParams{
		DB:           dbClient,
		Ledger:       ledger.NewRepository(dbClient.DB()),
		Emails:       emailRepo,
		Subscription: pubsubClient.ActivationSubscription(),
		Idempotency:  idemManager,
		Signals:      signals,
		Logger:       logg,
		Metrics:      pipeMetrics,
		Activation:   cfg.Activation,
		Concurrency:  cfg.PubSub.ConsumerConcurrency,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create activation consumer", err)
		os.Exit(1)
	}

	sweepJob, err := cron.NewEmailSweepJob(cron.EmailSweepJobParams{
		Logger:    logg,
		Processor: processor,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create email sweep job", err)
		os.Exit(1)
	}

	sweepLock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("email-outbox-sweep"), cfg.EmailOutbox.SweepInterval)
	if err != nil {
		logg.Error(context.Background(), "failed to create sweep lock", err)
		os.Exit(1)
	}

	sweeper, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(sweepJob),
		Lock:     sweepLock,
		Metrics:  cronMetrics,
		Interval: cfg.EmailOutbox.SweepInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sweep service", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Config:    cfg,
		Logger:    logg,
		DB:        dbClient,
		Redis:     redisClient,
		PubSub:    pubsubClient,
		Consumer:  consumer,
		Processor: processor,
		Signals:   signals,
		Sweeper:   sweeper,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create email worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "email-worker",
	})
	logg.Info(ctx, "starting email worker")

	go func() {
		if err := metrics.Serve(ctx, cfg.Service.MetricsAddr, registry); err != nil {
			logg.Error(ctx, "metrics listener stopped unexpectedly", err)
		}
	}()

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "email worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "email worker shutting down gracefully")
}
