package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ksefonte/spicy-pickle/api/controllers"
	"github.com/ksefonte/spicy-pickle/api/routes"
	"github.com/ksefonte/spicy-pickle/internal/binlocations"
	"github.com/ksefonte/spicy-pickle/internal/bundles"
	"github.com/ksefonte/spicy-pickle/internal/picklist"
	syncsvc "github.com/ksefonte/spicy-pickle/internal/sync"
	"github.com/ksefonte/spicy-pickle/internal/synclock"
	shopifywebhook "github.com/ksefonte/spicy-pickle/internal/webhooks/shopify"
	"github.com/ksefonte/spicy-pickle/pkg/config"
	"github.com/ksefonte/spicy-pickle/pkg/db"
	"github.com/ksefonte/spicy-pickle/pkg/logger"
	"github.com/ksefonte/spicy-pickle/pkg/metrics"
	"github.com/ksefonte/spicy-pickle/pkg/migrate"
	"github.com/ksefonte/spicy-pickle/pkg/redis"
	"github.com/ksefonte/spicy-pickle/pkg/shopify"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	shopifyClient, err := shopify.NewClient(cfg.Shopify, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create shopify client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	syncMetrics := metrics.NewSyncMetrics(registry)

	bundleRepo := bundles.NewRepository(dbClient.DB())
	binRepo := binlocations.NewRepository(dbClient.DB())

	bundleService, err := bundles.NewService(bundleRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create bundle service", err)
		os.Exit(1)
	}

	lockManager, err := synclock.NewManager(dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to create lock manager", err)
		os.Exit(1)
	}

	syncService, err := syncsvc.NewService(syncsvc.Params{
		Bundles:      bundleRepo,
		Gateway:      shopifyClient,
		Locks:        lockManager,
		Logger:       logg,
		Metrics:      syncMetrics,
		LockTTL:      cfg.Sync.LockTTL,
		AdjustReason: cfg.Sync.AdjustReason,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sync service", err)
		os.Exit(1)
	}

	webhookGuard, err := shopifywebhook.NewIdempotencyGuard(redisClient, cfg.Sync.DedupTTL, shopifywebhook.DedupScope)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}
	webhookService, err := shopifywebhook.NewService(shopifywebhook.ServiceParams{
		Processor: syncService,
		Guard:     webhookGuard,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	picklistService, err := picklist.NewService(shopifyClient, bundleRepo, binRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create picklist service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config: cfg,
			Logger: logg,
			Pingers: map[string]controllers.Pinger{
				"database": dbClient,
				"redis":    redisClient,
			},
			BundleService:   bundleService,
			BinLocationRepo: binRepo,
			PicklistService: picklistService,
			SyncService:     syncService,
			WebhookService:  webhookService,
			ShopifyClient:   shopifyClient,
			MetricsGatherer: registry,
		}),
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-shutdownCtx.Done():
		logg.Info(ctx, "shutting down api server")
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(timeoutCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
	}
}
