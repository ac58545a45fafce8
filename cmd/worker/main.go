package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ksefonte/spicy-pickle/internal/bundles"
	syncsvc "github.com/ksefonte/spicy-pickle/internal/sync"
	"github.com/ksefonte/spicy-pickle/internal/sync/consumer"
	"github.com/ksefonte/spicy-pickle/internal/synclock"
	"github.com/ksefonte/spicy-pickle/pkg/config"
	"github.com/ksefonte/spicy-pickle/pkg/db"
	"github.com/ksefonte/spicy-pickle/pkg/logger"
	"github.com/ksefonte/spicy-pickle/pkg/metrics"
	"github.com/ksefonte/spicy-pickle/pkg/pubsub"
	"github.com/ksefonte/spicy-pickle/pkg/redis"
	"github.com/ksefonte/spicy-pickle/pkg/shopify"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer pubsubClient.Close()

	shopifyClient, err := shopify.NewClient(cfg.Shopify, logg)
	if err != nil {
		logg.Error(ctx, "failed to create shopify client", err)
		os.Exit(1)
	}

	lockManager, err := synclock.NewManager(dbClient.DB())
	if err != nil {
		logg.Error(ctx, "failed to create lock manager", err)
		os.Exit(1)
	}

	syncMetrics := metrics.NewSyncMetrics(prometheus.NewRegistry())

	syncService, err := syncsvc.NewService(syncsvc.Params{
		Bundles:      bundles.NewRepository(dbClient.DB()),
		Gateway:      shopifyClient,
		Locks:        lockManager,
		Logger:       logg,
		Metrics:      syncMetrics,
		LockTTL:      cfg.Sync.LockTTL,
		AdjustReason: cfg.Sync.AdjustReason,
	})
	if err != nil {
		logg.Error(ctx, "failed to create sync service", err)
		os.Exit(1)
	}

	stockConsumer, err := consumer.New(consumer.Params{
		Processor:    syncService,
		Subscription: pubsubClient.StockEventsSubscription(),
		Guard:        redisClient,
		DedupTTL:     cfg.Sync.DedupTTL,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create stock events consumer", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Redis:         redisClient,
		PubSub:        pubsubClient,
		StockConsumer: stockConsumer,
	})
	if err != nil {
		logg.Error(ctx, "failed to create worker service", err)
		os.Exit(1)
	}

	logg.Info(logg.WithField(ctx, "env", cfg.App.Env), "starting worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "worker shut down gracefully")
}
